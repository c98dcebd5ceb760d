package vector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hyperjump/portfolio-rag/internal/models"
)

// Vector blob layout (little endian): magic "PRAG", version, dimension, count, then count rows
// of dimension float32 values. The chunk stream is JSONL: a metadata header record followed by
// one chunk per line in row order.
var blobMagic = [4]byte{'P', 'R', 'A', 'G'}

const (
	blobVersion   uint32 = 1
	maxChunkLine         = 16 << 20
	blobHeaderLen        = 16
)

// Header is record 0 of the chunk stream.
type Header struct {
	Dimension   int    `json:"dimension"`
	TotalChunks int    `json:"total_chunks"`
	IndexKind   string `json:"index_kind"`
}

// Save writes the vector blob and the chunk stream. Each file is written to a temporary
// file in the same directory and renamed into place.
func (f *FlatIndex) Save(vectorPath, chunksPath string) error {
	if f == nil || len(f.chunks) == 0 {
		return fmt.Errorf("save index: %w", models.ErrNotLoaded)
	}
	if err := writeAtomic(vectorPath, f.writeBlob); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}
	if err := writeAtomic(chunksPath, f.writeChunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	return nil
}

func (f *FlatIndex) writeBlob(w io.Writer) error {
	if _, err := w.Write(blobMagic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	for _, v := range []uint32{blobVersion, uint32(f.dimension), uint32(len(f.chunks))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if _, err := w.Write(float32SliceToBytes(f.vectors)); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	return nil
}

func (f *FlatIndex) writeChunks(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Header{Dimension: f.dimension, TotalChunks: len(f.chunks), IndexKind: string(f.kind)}); err != nil {
		return fmt.Errorf("write header record: %w", err)
	}
	for i := range f.chunks {
		if err := enc.Encode(f.chunks[i]); err != nil {
			return fmt.Errorf("write chunk %d: %w", i, err)
		}
	}
	return nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads an index saved by Save. Missing files return an error wrapping fs.ErrNotExist.
// Any disagreement between the blob and the chunk stream returns ErrCorruptIndex and
// nothing is loaded.
func Load(vectorPath, chunksPath string) (*FlatIndex, error) {
	dim, count, vectors, err := readBlob(vectorPath)
	if err != nil {
		return nil, err
	}
	header, chunks, err := readChunks(chunksPath)
	if err != nil {
		return nil, err
	}
	kind, err := ParseKind(header.IndexKind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCorruptIndex, err)
	}
	switch {
	case header.Dimension != dim:
		return nil, fmt.Errorf("%w: blob dimension %d, metadata dimension %d", models.ErrCorruptIndex, dim, header.Dimension)
	case header.TotalChunks != len(chunks):
		return nil, fmt.Errorf("%w: metadata declares %d chunks, found %d", models.ErrCorruptIndex, header.TotalChunks, len(chunks))
	case count != len(chunks):
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", models.ErrCorruptIndex, count, len(chunks))
	case count == 0:
		return nil, fmt.Errorf("%w: index is empty", models.ErrCorruptIndex)
	}
	return &FlatIndex{dimension: dim, kind: kind, vectors: vectors, chunks: chunks}, nil
}

func readBlob(path string) (dim, count int, vectors []float32, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("read vectors: %w", err)
	}
	if len(data) < blobHeaderLen || !bytes.Equal(data[:4], blobMagic[:]) {
		return 0, 0, nil, fmt.Errorf("%w: %s is not a vector blob", models.ErrCorruptIndex, path)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != blobVersion {
		return 0, 0, nil, fmt.Errorf("%w: unsupported blob version %d", models.ErrCorruptIndex, version)
	}
	dim = int(binary.LittleEndian.Uint32(data[8:12]))
	count = int(binary.LittleEndian.Uint32(data[12:16]))
	body := data[blobHeaderLen:]
	if dim <= 0 || uint64(len(body)) != uint64(dim)*uint64(count)*4 {
		return 0, 0, nil, fmt.Errorf("%w: blob holds %d bytes, header declares %d x %d vectors", models.ErrCorruptIndex, len(body), count, dim)
	}
	return dim, count, bytesToFloat32Slice(body), nil
}

func readChunks(path string) (Header, []models.Chunk, error) {
	var header Header
	file, err := os.Open(path)
	if err != nil {
		return header, nil, fmt.Errorf("read chunks: %w", err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 64*1024), maxChunkLine)
	var chunks []models.Chunk
	sawHeader := false
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		if !sawHeader {
			if err := json.Unmarshal(raw, &header); err != nil {
				return header, nil, fmt.Errorf("%w: header record: %v", models.ErrCorruptIndex, err)
			}
			sawHeader = true
			continue
		}
		var c models.Chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			return header, nil, fmt.Errorf("%w: line %d: %v", models.ErrCorruptIndex, line, err)
		}
		chunks = append(chunks, c)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return header, nil, fmt.Errorf("%w: line %d exceeds %d bytes", models.ErrCorruptIndex, line+1, maxChunkLine)
		}
		return header, nil, fmt.Errorf("read chunks: %w", err)
	}
	if !sawHeader {
		return header, nil, fmt.Errorf("%w: %s has no header record", models.ErrCorruptIndex, path)
	}
	return header, chunks, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
