package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
)

// mockEmbedder returns deterministic embeddings based on text content.
// Shared characters contribute to the same positions, so similar texts
// produce similar vectors.
type mockEmbedder struct {
	dims int
	err  error
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims}
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = m.deterministicVector(text)
	}
	return results, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) Name() string    { return "mock" }

func (m *mockEmbedder) deterministicVector(text string) []float32 {
	vec := make([]float32, m.dims)
	for i, ch := range text {
		idx := (int(ch) + i) % m.dims
		vec[idx] += 1.0
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func lunarDocs() []Document {
	return []Document{
		{
			ID:      "lcif-1",
			Content: "Impact cratering is the dominant geologic process on the lunar surface",
			Metadata: Metadata{
				ID:           "lcif-1",
				Filename:     "Lunar Crater Impact Features.pdf",
				ChunkID:      1,
				SectionTitle: "2. THE BASICS OF IMPACT CRATERING",
				FeatureType:  "crater",
				TerrainType:  "general terrain",
				HasFigures:   true,
				Keywords:     []string{"crater", "impact"},
			},
		},
		{
			ID:      "lcif-2",
			Content: "Mare basalts flooded the large basins during the Imbrian period",
			Metadata: Metadata{
				ID:             "lcif-2",
				Filename:       "Lunar Crater Impact Features.pdf",
				ChunkID:        2,
				SectionTitle:   "3. MARE VOLCANISM",
				GeologicPeriod: "Imbrian",
				TerrainType:    "mare",
				Keywords:       []string{"basalt"},
			},
		},
		{
			ID:      "lcif-3",
			Content: "Crater collapse forms terraced walls and central peaks",
			Metadata: Metadata{
				ID:           "lcif-3",
				Filename:     "Lunar Crater Impact Features.pdf",
				ChunkID:      3,
				SectionTitle: "4. CRATER MODIFICATION",
				FeatureType:  "crater",
				TerrainType:  "highlands",
				Keywords:     []string{"crater", "collapse"},
			},
		},
	}
}

func newLoadedStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(newMockEmbedder(64))
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	if err := store.AddDocuments(context.Background(), lunarDocs()); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	return store
}

func TestChromemStore_AddAndNearestNeighbors(t *testing.T) {
	ctx := context.Background()
	store := newLoadedStore(t)

	if count := store.Count(); count != 3 {
		t.Errorf("Count: got %d, want 3", count)
	}

	results, err := store.NearestNeighbors(ctx, "Crater collapse forms terraced walls", 2)
	if err != nil {
		t.Fatalf("NearestNeighbors: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("NearestNeighbors returned %d results, want 2", len(results))
	}
	if results[0].Document.ID != "lcif-3" {
		t.Errorf("expected lcif-3 first, got %s", results[0].Document.ID)
	}
	for i, r := range results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("result %d score %f outside [0,1]", i, r.Score)
		}
		if i > 0 && r.Score > results[i-1].Score {
			t.Errorf("results not ordered best first: %f > %f", r.Score, results[i-1].Score)
		}
	}
	if got := results[0].Document.Metadata.SectionTitle; got != "4. CRATER MODIFICATION" {
		t.Errorf("metadata not preserved: section_title %q", got)
	}
}

func TestChromemStore_NearestNeighborsClampsK(t *testing.T) {
	store := newLoadedStore(t)
	results, err := store.NearestNeighbors(context.Background(), "crater", 10)
	if err != nil {
		t.Fatalf("NearestNeighbors: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected all 3 documents, got %d", len(results))
	}
}

func TestChromemStore_TiesFollowInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store, err := NewChromemStore(newMockEmbedder(64))
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	// Identical content with distinct ids embeds to identical vectors.
	var docs []Document
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("c%02d", i)
		docs = append(docs, Document{
			ID:       id,
			Content:  "impact cratering basics",
			Metadata: Metadata{ID: id, Filename: fmt.Sprintf("paper-%02d.pdf", i)},
		})
	}
	if err := store.AddDocuments(ctx, docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	want := "c00,c01,c02,c03,c04"
	check := func(s *ChromemStore) {
		t.Helper()
		for call := 0; call < 100; call++ {
			results, err := s.NearestNeighbors(ctx, "impact cratering", 5)
			if err != nil {
				t.Fatalf("NearestNeighbors: %v", err)
			}
			ids := make([]string, len(results))
			for i, r := range results {
				ids[i] = r.Document.ID
			}
			if got := strings.Join(ids, ","); got != want {
				t.Fatalf("call %d: got %s, want %s", call, got, want)
			}
		}
	}
	check(store)

	dir := t.TempDir()
	if err := store.Persist(ctx, dir); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	reloaded, err := NewChromemStore(newMockEmbedder(64))
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	if err := reloaded.Load(ctx, dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	check(reloaded)
}

func TestChromemStore_EmptyIndex(t *testing.T) {
	store, err := NewChromemStore(newMockEmbedder(64))
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	results, err := store.NearestNeighbors(context.Background(), "crater", 5)
	if err != nil {
		t.Fatalf("NearestNeighbors on empty store: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestChromemStore_EmbedderFailure(t *testing.T) {
	embedder := newMockEmbedder(64)
	store, err := NewChromemStore(embedder)
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	if err := store.AddDocuments(context.Background(), lunarDocs()); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	embedder.err = errors.New("connection refused")

	if _, err := store.Embed(context.Background(), "crater"); !errors.Is(err, ErrEmbeddingService) {
		t.Errorf("Embed: expected ErrEmbeddingService, got %v", err)
	}
	if _, err := store.NearestNeighbors(context.Background(), "crater", 5); !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("NearestNeighbors: expected ErrIndexUnavailable, got %v", err)
	}
}

func TestChromemStore_RejectsInvalidDocuments(t *testing.T) {
	store, err := NewChromemStore(newMockEmbedder(64))
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	tests := []Document{
		{Content: "no id anywhere"},
		{ID: "a", Content: "mismatch", Metadata: Metadata{ID: "b"}},
		{ID: "c"},
	}
	for _, doc := range tests {
		if err := store.AddDocuments(context.Background(), []Document{doc}); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("AddDocuments(%+v): expected ErrInvalidDocument, got %v", doc, err)
		}
	}
	if store.Count() != 0 {
		t.Errorf("invalid batch must not be visible, count = %d", store.Count())
	}
}

func TestChromemStore_FetchAllEmbeddings(t *testing.T) {
	ctx := context.Background()
	store := newLoadedStore(t)

	records, err := store.FetchAllEmbeddings(ctx)
	if err != nil {
		t.Fatalf("FetchAllEmbeddings: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"lcif-1", "lcif-2", "lcif-3"} {
		if records[i].ID != want {
			t.Errorf("record %d: id %q, want %q", i, records[i].ID, want)
		}
		if len(records[i].Vector) != 64 {
			t.Errorf("record %d: vector has %d dims, want 64", i, len(records[i].Vector))
		}
		if records[i].Document.Metadata.ID != want {
			t.Errorf("record %d: metadata id %q", i, records[i].Document.Metadata.ID)
		}
	}

	vec, ok, err := store.EmbeddingByID(ctx, "lcif-2")
	if err != nil || !ok {
		t.Fatalf("EmbeddingByID: ok=%v err=%v", ok, err)
	}
	if len(vec) != 64 {
		t.Errorf("EmbeddingByID returned %d dims", len(vec))
	}

	_, ok, err = store.EmbeddingByID(ctx, "missing")
	if err != nil || ok {
		t.Errorf("EmbeddingByID(missing): ok=%v err=%v", ok, err)
	}
}

func TestChromemStore_ReaddDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newLoadedStore(t)

	if err := store.AddDocuments(ctx, lunarDocs()[:1]); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	docs, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 3 {
		t.Errorf("expected 3 documents after re-adding one, got %d", len(docs))
	}
}

func TestChromemStore_BatchVisibilityIsAtomic(t *testing.T) {
	ctx := context.Background()
	store, err := NewChromemStore(newMockEmbedder(32))
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	const batches, batchSize = 8, 10
	done := make(chan struct{})
	var wg sync.WaitGroup
	var partial sync.Once
	var partialCount int

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			docs, err := store.ListDocuments(ctx)
			if err != nil {
				continue
			}
			if len(docs)%batchSize != 0 {
				partial.Do(func() { partialCount = len(docs) })
			}
		}
	}()

	for b := 0; b < batches; b++ {
		batch := make([]Document, batchSize)
		for i := range batch {
			id := fmt.Sprintf("b%d-%d", b, i)
			batch[i] = Document{ID: id, Content: "regolith sample " + id}
		}
		if err := store.AddDocuments(ctx, batch); err != nil {
			t.Fatalf("AddDocuments batch %d: %v", b, err)
		}
	}
	close(done)
	wg.Wait()

	if partialCount != 0 {
		t.Errorf("reader observed a partial batch: %d documents", partialCount)
	}
	if store.Count() != batches*batchSize {
		t.Errorf("Count: got %d, want %d", store.Count(), batches*batchSize)
	}
}

func TestChromemStore_PersistAndLoad(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder(64)
	store := newLoadedStore(t)

	dir := t.TempDir()
	if SnapshotExists(dir) {
		t.Fatal("empty dir should not hold a snapshot")
	}
	if err := store.Persist(ctx, dir); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !SnapshotExists(dir) {
		t.Fatal("snapshot manifest missing after Persist")
	}

	store2, err := NewChromemStore(embedder)
	if err != nil {
		t.Fatalf("NewChromemStore for load: %v", err)
	}
	if err := store2.Load(ctx, dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if count := store2.Count(); count != 3 {
		t.Errorf("Count after load: got %d, want 3", count)
	}

	records, err := store2.FetchAllEmbeddings(ctx)
	if err != nil {
		t.Fatalf("FetchAllEmbeddings after load: %v", err)
	}
	if len(records) != 3 || records[0].ID != "lcif-1" {
		t.Fatalf("unexpected records after load: %+v", records)
	}
	md := records[1].Document.Metadata
	if md.GeologicPeriod != "Imbrian" || md.ChunkID != 2 || md.TerrainType != "mare" {
		t.Errorf("metadata not preserved after load: %+v", md)
	}
	if !records[0].Document.Metadata.HasFigures {
		t.Error("has_figures not preserved after load")
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	store, err := NewChromemStore(newMockEmbedder(8))
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	if err := store.Load(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error loading from an empty directory")
	}
}

func TestFormatDocuments(t *testing.T) {
	output := FormatDocuments(lunarDocs()[:1])
	if !strings.Contains(output, "Lunar Crater Impact Features.pdf (chunk 1)") {
		t.Errorf("expected source in output, got: %s", output)
	}
	if !strings.Contains(output, "Keywords: crater, impact") {
		t.Errorf("expected keywords in output, got: %s", output)
	}
	if FormatDocuments(nil) != "No results found." {
		t.Error("expected empty marker")
	}
}

func TestFormatNeighbors(t *testing.T) {
	output := FormatNeighbors([]Neighbor{{Document: lunarDocs()[2], Score: 0.9512}})
	if !strings.Contains(output, "0.9512") {
		t.Errorf("expected score in output, got: %s", output)
	}
}
