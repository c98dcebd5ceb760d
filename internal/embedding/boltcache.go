package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var embeddingsBucket = []byte("embeddings")

// BoltCache persists embeddings on disk so re-ingesting unchanged text skips the provider.
type BoltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens (or creates) the cache database at path.
func OpenBoltCache(path string) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(embeddingsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	return &BoltCache{db: db}, nil
}

// CacheKey derives the storage key for text embedded by model.
func CacheKey(model, text string) []byte {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return sum[:]
}

// GetMany looks up every text and returns the hits by input position.
func (c *BoltCache) GetMany(model string, texts []string) (map[int][]float32, error) {
	hits := make(map[int][]float32)
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(embeddingsBucket)
		for i, text := range texts {
			if v := b.Get(CacheKey(model, text)); v != nil {
				hits[i] = decodeVector(v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}
	return hits, nil
}

// PutMany stores vecs[i] as the embedding of texts[i] in one transaction.
func (c *BoltCache) PutMany(model string, texts []string, vecs [][]float32) error {
	if len(texts) != len(vecs) {
		return fmt.Errorf("embedding cache: %d texts but %d vectors", len(texts), len(vecs))
	}
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(embeddingsBucket)
		for i, text := range texts {
			if err := b.Put(CacheKey(model, text), encodeVector(vecs[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write embedding cache: %w", err)
	}
	return nil
}

// Len returns the number of stored embeddings.
func (c *BoltCache) Len() int {
	n := 0
	_ = c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(embeddingsBucket).Stats().KeyN
		return nil
	})
	return n
}

// Close closes the database.
func (c *BoltCache) Close() error {
	return c.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector copies out of b, which bbolt only keeps valid inside the transaction.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
