package retrieval

import (
	"context"
	"errors"
	"sync"

	"github.com/regolith-ai/regolith/internal/vectordb"
)

// fakeIndex returns the first k of a fixed ranking. It records the k of
// every NearestNeighbors call.
type fakeIndex struct {
	mu       sync.Mutex
	ranking  []vectordb.Neighbor
	vectors  map[string][]float32
	queryVec []float32

	nnErr    error
	embedErr error
	fetchErr error
	calls    []int
}

func (f *fakeIndex) NearestNeighbors(_ context.Context, _ string, k int) ([]vectordb.Neighbor, error) {
	f.mu.Lock()
	f.calls = append(f.calls, k)
	f.mu.Unlock()
	if f.nnErr != nil {
		return nil, f.nnErr
	}
	if k > len(f.ranking) {
		k = len(f.ranking)
	}
	return append([]vectordb.Neighbor(nil), f.ranking[:k]...), nil
}

func (f *fakeIndex) Embed(context.Context, string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.queryVec, nil
}

func (f *fakeIndex) FetchAllEmbeddings(context.Context) ([]vectordb.EmbeddingRecord, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []vectordb.EmbeddingRecord
	for _, n := range f.ranking {
		if v, ok := f.vectors[n.Document.ID]; ok {
			out = append(out, vectordb.EmbeddingRecord{ID: n.Document.ID, Document: n.Document, Vector: v})
		}
	}
	return out, nil
}

func (f *fakeIndex) kCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

// lookupIndex adds the single-vector lookup to fakeIndex.
type lookupIndex struct {
	*fakeIndex
	lookups int
}

func (l *lookupIndex) EmbeddingByID(_ context.Context, id string) ([]float32, bool, error) {
	l.lookups++
	v, ok := l.vectors[id]
	return v, ok, nil
}

func (l *lookupIndex) FetchAllEmbeddings(context.Context) ([]vectordb.EmbeddingRecord, error) {
	return nil, errors.New("full export should not be used")
}

type fakeLexical struct {
	available bool
	docs      []vectordb.Document
	err       error
	searches  int
}

func (f *fakeLexical) Available(context.Context) bool { return f.available }

func (f *fakeLexical) Search(context.Context, string) ([]vectordb.Document, error) {
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func doc(id, content string) vectordb.Document {
	return vectordb.Document{
		ID:      id,
		Content: content,
		Metadata: vectordb.Metadata{
			ID:           id,
			Filename:     "Lunar Crater Impact Features.pdf",
			SectionTitle: "1. INTRODUCTION",
			TerrainType:  "general terrain",
		},
	}
}

func neighbors(scores []float32, docs ...vectordb.Document) []vectordb.Neighbor {
	out := make([]vectordb.Neighbor, len(docs))
	for i, d := range docs {
		out[i] = vectordb.Neighbor{Document: d, Score: scores[i]}
	}
	return out
}

func ids(docs []vectordb.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
