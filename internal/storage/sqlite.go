package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/portfolio-rag/internal/models"
)

// ErrRunNotFound is returned when a run ID is unknown or no run exists yet.
var ErrRunNotFound = errors.New("run not found")

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		documents INTEGER NOT NULL DEFAULT 0,
		chunks INTEGER NOT NULL DEFAULT 0,
		dimension INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS documents (
		run_id TEXT NOT NULL,
		id TEXT NOT NULL,
		title TEXT,
		source TEXT,
		file_type TEXT,
		created_at TEXT,
		extra TEXT,
		PRIMARY KEY (run_id, id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chunks (
		run_id TEXT NOT NULL,
		global_chunk_id INTEGER NOT NULL,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL,
		tokens INTEGER NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (run_id, global_chunk_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(run_id, document_id, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// StartRun records a new running ingestion with a fresh UUID.
func (s *SQLiteCatalog) StartRun(ctx context.Context) (*Run, error) {
	run := &Run{ID: uuid.NewString(), Status: RunRunning, StartedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

// CompleteRun stores the run's documents and chunks, marks it completed, and drops the
// documents and chunks of every earlier run, all in one transaction.
func (s *SQLiteCatalog) CompleteRun(ctx context.Context, run *Run, docs []models.Document, chunks []models.Chunk, dimension int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO documents (run_id, id, title, source, file_type, created_at, extra)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer docStmt.Close()
	for _, d := range docs {
		extra, err := marshalExtra(d.Extra)
		if err != nil {
			return fmt.Errorf("document %s: %w", d.ID, err)
		}
		if _, err := docStmt.ExecContext(ctx, run.ID, d.ID, d.Title, d.Source, d.FileType, d.CreatedAt, extra); err != nil {
			return fmt.Errorf("insert document %s: %w", d.ID, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (run_id, global_chunk_id, document_id, chunk_index, total_chunks, tokens, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()
	for _, c := range chunks {
		if _, err := chunkStmt.ExecContext(ctx, run.ID, c.GlobalChunkID, c.ID, c.ChunkIndex, c.TotalChunks, c.Tokens, c.Text); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.GlobalChunkID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE run_id != ?`, run.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE run_id != ?`, run.ID); err != nil {
		return err
	}

	finished := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, documents = ?, chunks = ?, dimension = ?, error = ''
		 WHERE id = ?`,
		RunCompleted, finished, len(docs), len(chunks), dimension, run.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	run.Status = RunCompleted
	run.FinishedAt = &finished
	run.Documents = len(docs)
	run.Chunks = len(chunks)
	run.Dimension = dimension
	run.Error = ""
	return nil
}

// FailRun marks the run failed with cause.
func (s *SQLiteCatalog) FailRun(ctx context.Context, run *Run, cause error) error {
	finished := time.Now().UTC()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error = ? WHERE id = ?`,
		RunFailed, finished, msg, run.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	run.Status = RunFailed
	run.FinishedAt = &finished
	run.Error = msg
	return nil
}

const runColumns = `id, status, started_at, finished_at, documents, chunks, dimension, error`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &run.Status, &run.StartedAt, &finished, &run.Documents, &run.Chunks, &run.Dimension, &run.Error); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// GetRun returns a run by ID.
func (s *SQLiteCatalog) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (s *SQLiteCatalog) LatestRun(ctx context.Context) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first.
func (s *SQLiteCatalog) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListDocuments returns the documents of the latest completed run, ordered by ID.
func (s *SQLiteCatalog) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, source, file_type, created_at, extra FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		var extra sql.NullString
		if err := rows.Scan(&d.ID, &d.Title, &d.Source, &d.FileType, &d.CreatedAt, &extra); err != nil {
			return nil, err
		}
		if extra.Valid && extra.String != "" {
			if err := json.Unmarshal([]byte(extra.String), &d.Extra); err != nil {
				return nil, fmt.Errorf("document %s: failed to unmarshal extra: %w", d.ID, err)
			}
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ChunksByDocument returns the chunks of one document ordered by chunk_index.
func (s *SQLiteCatalog) ChunksByDocument(ctx context.Context, docID string) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT global_chunk_id, document_id, chunk_index, total_chunks, tokens, text
		 FROM chunks WHERE document_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.GlobalChunkID, &c.ID, &c.ChunkIndex, &c.TotalChunks, &c.Tokens, &c.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CountDocuments returns the number of catalogued documents.
func (s *SQLiteCatalog) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the number of catalogued chunks.
func (s *SQLiteCatalog) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Stats returns run and content counts plus the latest run.
func (s *SQLiteCatalog) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.Runs); err != nil {
		return nil, err
	}
	docs, err := s.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := s.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	st.Documents, st.Chunks = int(docs), int(chunks)
	if run, err := s.LatestRun(ctx); err == nil {
		st.LastRun = run
	} else if !errors.Is(err, ErrRunNotFound) {
		return nil, err
	}
	return &st, nil
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

func marshalExtra(extra map[string]interface{}) (string, error) {
	if len(extra) == 0 {
		return "", nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("failed to marshal extra: %w", err)
	}
	return string(b), nil
}
