package vectordb

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"

	"github.com/regolith-ai/regolith/internal/embeddings"
)

const (
	collectionName = "lunar_corpus"
	snapshotFile   = "chromem.gob.gz"
	// ManifestFile is written after the snapshot, so its appearance marks
	// a complete snapshot.
	ManifestFile = "manifest.json"
)

// manifest records what chromem's export does not expose: insertion
// order of ids and the model the vectors came from.
type manifest struct {
	Embedder   string   `json:"embedder"`
	Dimensions int      `json:"dimensions"`
	IDs        []string `json:"ids"`
}

// ChromemStore implements VectorStore using chromem-go.
//
// The whole corpus state (collection, id list) sits behind mu. Writers
// embed outside the lock and only take it to publish, so a batch becomes
// visible to readers all at once.
type ChromemStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	ids        []string
	// known maps an id to its position in ids.
	known map[string]int

	embedder  embeddings.Embedder
	embedFunc chromem.EmbeddingFunc
	log       zerolog.Logger
}

// Option configures a ChromemStore.
type Option func(*ChromemStore)

// WithLogger sets the store's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *ChromemStore) { s.log = log }
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder, opts ...Option) (*ChromemStore, error) {
	s := &ChromemStore{
		embedder:  embedder,
		embedFunc: embeddings.ToChromemFunc(embedder),
		log:       zerolog.Nop(),
		known:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, s.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.db = db
	s.collection = col

	return s, nil
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	docs = slices.Clone(docs)
	texts := make([]string, len(docs))
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = docs[i].Metadata.ID
		}
		if docs[i].Metadata.ID == "" {
			docs[i].Metadata.ID = docs[i].ID
		}
		if docs[i].ID == "" || docs[i].ID != docs[i].Metadata.ID {
			return fmt.Errorf("%w: document %d has id %q and metadata id %q", ErrInvalidDocument, i, docs[i].ID, docs[i].Metadata.ID)
		}
		if docs[i].Content == "" {
			return fmt.Errorf("%w: document %q has no content", ErrInvalidDocument, docs[i].ID)
		}
		texts[i] = docs[i].Content
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmbeddingService, err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingService, len(vecs), len(docs))
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata.ToMap(),
			Embedding: vecs[i],
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.collection.AddDocuments(ctx, chromDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem add: %w", err)
	}
	for _, doc := range docs {
		if _, ok := s.known[doc.ID]; !ok {
			s.known[doc.ID] = len(s.ids)
			s.ids = append(s.ids, doc.ID)
		}
	}

	s.log.Debug().Int("batch", len(docs)).Int("total", len(s.ids)).Msg("documents added")
	return nil
}

func (s *ChromemStore) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := embeddings.EmbedOne(ctx, s.embedder, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingService, err)
	}
	return vec, nil
}

// NearestNeighbors scores candidates as (1+cos)/2, which maps chromem's
// cosine similarity into [0,1]. chromem scores on concurrent goroutines,
// so the whole collection is ranked and ties are broken by insertion
// order before truncating to k.
func (s *ChromemStore) NearestNeighbors(ctx context.Context, query string, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}

	vec, err := embeddings.EmbedOne(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrIndexUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, vec, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chromem query: %w", ErrIndexUnavailable, err)
	}
	slices.SortStableFunc(results, func(a, b chromem.Result) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(s.position(a.ID), s.position(b.ID))
	})
	results = results[:min(k, len(results))]

	out := make([]Neighbor, len(results))
	for i, r := range results {
		out[i] = Neighbor{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: MetadataFromMap(r.Metadata),
			},
			Score: min(max((1+r.Similarity)/2, 0), 1),
		}
	}
	return out, nil
}

// position is the insertion index of id. Callers hold mu.
func (s *ChromemStore) position(id string) int {
	if i, ok := s.known[id]; ok {
		return i
	}
	return len(s.ids)
}

func (s *ChromemStore) FetchAllEmbeddings(ctx context.Context) ([]EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]EmbeddingRecord, 0, len(s.ids))
	for _, id := range s.ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := s.collection.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: get %q: %w", ErrIndexUnavailable, id, err)
		}
		records = append(records, EmbeddingRecord{
			ID:       id,
			Document: fromChromem(doc),
			Vector:   doc.Embedding,
		})
	}
	return records, nil
}

func (s *ChromemStore) EmbeddingByID(ctx context.Context, id string) ([]float32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.known[id]; !ok {
		return nil, false, nil
	}
	doc, err := s.collection.GetByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %q: %w", ErrIndexUnavailable, id, err)
	}
	return doc.Embedding, true, nil
}

func (s *ChromemStore) ListDocuments(ctx context.Context) ([]Document, error) {
	records, err := s.FetchAllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(records))
	for i, r := range records {
		docs[i] = r.Document
	}
	return docs, nil
}

// Persist exports the collection and then writes the manifest.
func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.db.ExportToFile(filepath.Join(dir, snapshotFile), true, ""); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}

	m := manifest{
		Embedder:   s.embedder.Name(),
		Dimensions: s.embedder.Dimensions(),
		IDs:        s.ids,
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmp := filepath.Join(dir, ManifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, ManifestFile)); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	return nil
}

// Load imports the snapshot into a fresh chromem DB and swaps it in, so
// concurrent readers see either the old corpus or the new one.
func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}
	if m.Embedder != s.embedder.Name() {
		s.log.Warn().
			Str("snapshot_embedder", m.Embedder).
			Str("embedder", s.embedder.Name()).
			Msg("snapshot was built with a different embedding model")
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(filepath.Join(dir, snapshotFile), ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	if col.Count() != len(m.IDs) {
		return fmt.Errorf("snapshot holds %d documents but manifest lists %d", col.Count(), len(m.IDs))
	}

	known := make(map[string]int, len(m.IDs))
	for i, id := range m.IDs {
		known[id] = i
	}

	s.mu.Lock()
	s.db = db
	s.collection = col
	s.ids = m.IDs
	s.known = known
	s.mu.Unlock()

	s.log.Info().Int("documents", len(m.IDs)).Str("dir", dir).Msg("snapshot loaded")
	return nil
}

func (s *ChromemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count()
}

// SnapshotExists reports whether dir holds a complete snapshot.
func SnapshotExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ManifestFile))
	return !errors.Is(err, os.ErrNotExist)
}

func fromChromem(d chromem.Document) Document {
	return Document{
		ID:       d.ID,
		Content:  d.Content,
		Metadata: MetadataFromMap(d.Metadata),
	}
}
