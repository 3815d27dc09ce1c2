package embeddings

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/go-crypt/x/blake2b"
	"github.com/rs/zerolog"
)

// CachedEmbedder memoizes another Embedder in badger. Embeddings are a pure
// function of (model, text), so entries never expire.
type CachedEmbedder struct {
	inner Embedder
	db    *badger.DB
	log   zerolog.Logger
}

// OpenCache opens (or creates) a cache in dir in front of inner. An empty
// dir keeps the cache in memory.
func OpenCache(dir string, inner Embedder, log zerolog.Logger) (*CachedEmbedder, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = badgerLogger{log: log}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}

	return &CachedEmbedder{inner: inner, db: db, log: log}, nil
}

func (c *CachedEmbedder) Name() string    { return c.inner.Name() }
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Embed serves hits from the cache and forwards misses to the wrapped
// embedder in a single batch.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	keys := make([][]byte, len(texts))
	var missIdx []int

	err := c.db.View(func(txn *badger.Txn) error {
		for i, text := range texts {
			keys[i] = c.key(text)
			item, err := txn.Get(keys[i])
			if errors.Is(err, badger.ErrKeyNotFound) {
				missIdx = append(missIdx, i)
				continue
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[i] = decodeVector(raw)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}

	if len(missIdx) == 0 {
		return out, nil
	}

	missing := make([]string, len(missIdx))
	for j, i := range missIdx {
		missing[j] = texts[i]
	}
	vecs, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("%s returned %d embeddings, expected %d", c.inner.Name(), len(vecs), len(missing))
	}

	wb := c.db.NewWriteBatch()
	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := wb.Set(keys[i], encodeVector(vecs[j])); err != nil {
			wb.Cancel()
			return nil, fmt.Errorf("write embedding cache: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		// The embeddings are still valid; only memoization failed.
		c.log.Warn().Err(err).Msg("flush embedding cache")
	}

	c.log.Debug().Int("hits", len(texts)-len(missIdx)).Int("misses", len(missIdx)).Msg("embedding cache")
	return out, nil
}

// Close closes the underlying badger database.
func (c *CachedEmbedder) Close() error {
	return c.db.Close()
}

// key hashes model and text so keys stay fixed-size regardless of chunk length.
func (c *CachedEmbedder) key(text string) []byte {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(c.inner.Name()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return append([]byte("emb/"), h.Sum(nil)...)
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...any)   { l.log.Error().Msgf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...any) { l.log.Warn().Msgf(f, v...) }
func (l badgerLogger) Infof(f string, v ...any)    { l.log.Debug().Msgf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...any)   { l.log.Debug().Msgf(f, v...) }
