package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/portfolio-rag/internal/models"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	cat, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "db", "catalog.db"))
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func sampleDocs() ([]models.Document, []models.Chunk) {
	docs := []models.Document{
		{ID: "cv", Title: "CV", Source: "cv.md", FileType: "md", CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "projects", Title: "Projects", Source: "projects.json", Extra: map[string]interface{}{"year": "2023"}},
	}
	chunks := []models.Chunk{
		{Text: "Senior engineer", ChunkIndex: 0, TotalChunks: 2, Tokens: 4, GlobalChunkID: 0, ID: "cv"},
		{Text: "Go and Python", ChunkIndex: 1, TotalChunks: 2, Tokens: 3, GlobalChunkID: 1, ID: "cv"},
		{Text: "RAG backend", ChunkIndex: 0, TotalChunks: 1, Tokens: 3, GlobalChunkID: 2, ID: "projects"},
	}
	return docs, chunks
}

func TestSQLiteCatalog_CompleteRun(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	run, err := cat.StartRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if run.ID == "" || run.Status != RunRunning {
		t.Fatalf("unexpected run %+v", run)
	}

	docs, chunks := sampleDocs()
	if err := cat.CompleteRun(ctx, run, docs, chunks, 1024); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	if run.Status != RunCompleted || run.FinishedAt == nil {
		t.Errorf("run not marked completed: %+v", run)
	}

	got, err := cat.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != RunCompleted || got.Documents != 2 || got.Chunks != 3 || got.Dimension != 1024 {
		t.Errorf("stored run = %+v", got)
	}

	listed, err := cat.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 || listed[0].ID != "cv" || listed[1].Extra["year"] != "2023" {
		t.Errorf("ListDocuments = %+v", listed)
	}

	cvChunks, err := cat.ChunksByDocument(ctx, "cv")
	if err != nil {
		t.Fatal(err)
	}
	if len(cvChunks) != 2 || cvChunks[1].Text != "Go and Python" {
		t.Errorf("ChunksByDocument = %+v", cvChunks)
	}
}

func TestSQLiteCatalog_LaterRunReplacesContent(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	docs, chunks := sampleDocs()

	first, _ := cat.StartRun(ctx)
	if err := cat.CompleteRun(ctx, first, docs, chunks, 8); err != nil {
		t.Fatal(err)
	}
	second, _ := cat.StartRun(ctx)
	if err := cat.CompleteRun(ctx, second, docs[:1], chunks[:2], 8); err != nil {
		t.Fatal(err)
	}

	nDocs, _ := cat.CountDocuments(ctx)
	nChunks, _ := cat.CountChunks(ctx)
	if nDocs != 1 || nChunks != 2 {
		t.Errorf("counts = %d docs, %d chunks; want 1, 2", nDocs, nChunks)
	}

	runs, err := cat.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != second.ID {
		t.Errorf("ListRuns order wrong: %+v", runs)
	}
}

func TestSQLiteCatalog_FailRunKeepsPreviousContent(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	docs, chunks := sampleDocs()

	ok, _ := cat.StartRun(ctx)
	if err := cat.CompleteRun(ctx, ok, docs, chunks, 8); err != nil {
		t.Fatal(err)
	}
	bad, _ := cat.StartRun(ctx)
	if err := cat.FailRun(ctx, bad, errors.New("provider down")); err != nil {
		t.Fatal(err)
	}

	stats, err := cat.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Runs != 2 || stats.Documents != 2 || stats.Chunks != 3 {
		t.Errorf("Stats = %+v", stats)
	}
	if stats.LastRun == nil || stats.LastRun.Status != RunFailed || stats.LastRun.Error != "provider down" {
		t.Errorf("LastRun = %+v", stats.LastRun)
	}
}

func TestSQLiteCatalog_NotFound(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	if _, err := cat.LatestRun(ctx); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRun on empty catalog: got %v", err)
	}
	if _, err := cat.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun: got %v", err)
	}
	if err := cat.FailRun(ctx, &Run{ID: "missing"}, nil); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FailRun: got %v", err)
	}

	stats, err := cat.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Runs != 0 || stats.LastRun != nil {
		t.Errorf("empty Stats = %+v", stats)
	}
}
