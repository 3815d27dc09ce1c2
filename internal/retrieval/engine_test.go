package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regolith-ai/regolith/internal/interpret"
	"github.com/regolith-ai/regolith/internal/metrics"
	"github.com/regolith-ai/regolith/internal/vectordb"
)

func refs(r ...string) interpret.Interpretation {
	return interpret.Interpretation{Intent: interpret.IntentRetrieve, References: r}
}

func tenDocs() []vectordb.Document {
	docs := make([]vectordb.Document, 10)
	for i := range docs {
		docs[i] = doc(fmt.Sprintf("d%d", i), fmt.Sprintf("passage %d about lunar regolith", i))
	}
	return docs
}

func rankingOf(docs []vectordb.Document) []vectordb.Neighbor {
	out := make([]vectordb.Neighbor, len(docs))
	for i, d := range docs {
		out[i] = vectordb.Neighbor{Document: d, Score: 0.9 - float32(i)*0.05}
	}
	return out
}

func TestScenarioReferenceMatch(t *testing.T) {
	d1 := doc("d1", "Mare basalts flooded the basins.")
	d2 := doc("d2", "The basics of impact cratering on the Moon.")
	d3 := doc("d3", "Regolith gardening by micrometeorites.")
	idx := &fakeIndex{ranking: neighbors([]float32{0.8, 0.7, 0.6}, d1, d2, d3)}

	res, err := NewEngine(idx, nil).Retrieve(context.Background(), "craters", refs("impact cratering"))
	require.NoError(t, err)

	assert.Equal(t, []string{"d2"}, ids(res.Documents))
	assert.Equal(t, StrategyReference, res.Strategy)
	assert.Equal(t, []int{5, 10}, idx.kCalls())
}

func TestScenarioLexicalMerge(t *testing.T) {
	d1 := doc("D1", "ejecta blankets")
	d2 := doc("D2", "central peaks")
	d3 := doc("D3", "secondary craters")
	idx := &fakeIndex{ranking: neighbors([]float32{0.9, 0.8}, d1, d3)}
	lex := &fakeLexical{available: true, docs: []vectordb.Document{d2, d1}}

	res, err := NewEngine(idx, lex).Retrieve(context.Background(), "crater morphology", refs())
	require.NoError(t, err)

	assert.Equal(t, []string{"D2", "D1", "D3"}, ids(res.Documents))
	assert.Equal(t, StrategyLexical, res.Strategy)
	assert.Equal(t, []int{5, 5}, idx.kCalls(), "empty references must skip the reference pool")
}

func TestScenarioIndexUnavailable(t *testing.T) {
	idx := &fakeIndex{nnErr: errors.New("connection refused")}
	lex := &fakeLexical{available: true}

	res, err := NewEngine(idx, lex).Retrieve(context.Background(), "craters", refs("crater"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.Empty(t, res.Documents)
	assert.Zero(t, lex.searches)
}

func TestScenarioMissingVectorFallsBackToIndexScore(t *testing.T) {
	d1 := doc("d1", "simple craters are bowl shaped")
	idx := &fakeIndex{
		ranking:  neighbors([]float32{0.42}, d1),
		vectors:  map[string][]float32{"other": {1, 0}},
		queryVec: []float32{1, 0},
	}

	res, err := NewEngine(idx, nil).Retrieve(context.Background(), "simple craters", refs())
	require.NoError(t, err)
	assert.InDelta(t, 0.42, res.Confidence, 1e-6)
	assert.Equal(t, Fallback, res.Reconciliation)
}

func TestEmptyIndexReturnsEmptyResult(t *testing.T) {
	idx := &fakeIndex{}
	res, err := NewEngine(idx, &fakeLexical{available: true}).Retrieve(context.Background(), "anything", refs("crater"))
	require.NoError(t, err)
	assert.NotNil(t, res.Documents)
	assert.Empty(t, res.Documents)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, StrategyEmpty, res.Strategy)
	assert.Equal(t, []int{5}, idx.kCalls())
}

func TestSemanticFallbackReturnsTopThree(t *testing.T) {
	idx := &fakeIndex{ranking: rankingOf(tenDocs())}

	res, err := NewEngine(idx, nil).Retrieve(context.Background(), "regolith", refs("no such term"))
	require.NoError(t, err)
	assert.Equal(t, []string{"d0", "d1", "d2"}, ids(res.Documents))
	assert.Equal(t, StrategySemantic, res.Strategy)
	assert.Equal(t, []int{5, 10, 3}, idx.kCalls())
}

func TestUnavailableLexicalRoutesToSemantic(t *testing.T) {
	idx := &fakeIndex{ranking: rankingOf(tenDocs())}
	lex := &fakeLexical{available: false}

	res, err := NewEngine(idx, lex).Retrieve(context.Background(), "regolith", refs())
	require.NoError(t, err)
	assert.Len(t, res.Documents, 3)
	assert.Equal(t, StrategySemantic, res.Strategy)
	assert.Zero(t, lex.searches)
}

func TestLexicalErrorRoutesToSemantic(t *testing.T) {
	idx := &fakeIndex{ranking: rankingOf(tenDocs())}
	lex := &fakeLexical{available: true, err: errors.New("database is locked")}

	res, err := NewEngine(idx, lex).Retrieve(context.Background(), "regolith", refs())
	require.NoError(t, err)
	assert.Equal(t, StrategySemantic, res.Strategy)
	assert.Len(t, res.Documents, 3)
}

func TestReferenceResultsAreExclusive(t *testing.T) {
	docs := tenDocs()
	docs[7].Content = "Complex craters show terraced walls."
	docs[8].Metadata.SectionTitle = "4. COMPLEX CRATERS"
	idx := &fakeIndex{ranking: rankingOf(docs)}
	lex := &fakeLexical{available: true, docs: docs[:2]}

	res, err := NewEngine(idx, lex).Retrieve(context.Background(), "complex crater walls", refs("Complex Craters"))
	require.NoError(t, err)
	assert.Equal(t, []string{"d7", "d8"}, ids(res.Documents))
	assert.Zero(t, lex.searches)
}

func TestReferenceResultsAreDedupedAndTruncated(t *testing.T) {
	docs := tenDocs()
	for i := range docs {
		docs[i].Metadata.Keywords = []string{"crater"}
	}
	docs[1].Content = docs[0].Content
	idx := &fakeIndex{ranking: rankingOf(docs)}

	res, err := NewEngine(idx, nil).Retrieve(context.Background(), "crater", refs("crater"))
	require.NoError(t, err)
	assert.Equal(t, []string{"d0", "d2", "d3", "d4", "d5"}, ids(res.Documents))
}

func TestConfidenceReconciledWithLookup(t *testing.T) {
	d1 := doc("d1", "impact melt sheets")
	idx := &lookupIndex{fakeIndex: &fakeIndex{
		ranking:  neighbors([]float32{0.99}, d1),
		vectors:  map[string][]float32{"d1": {3, 4}},
		queryVec: []float32{4, 3},
	}}

	res, err := NewEngine(idx, nil).Retrieve(context.Background(), "impact melt", refs())
	require.NoError(t, err)
	assert.InDelta(t, 24.0/25.0, res.Confidence, 1e-9)
	assert.Equal(t, Reconciled, res.Reconciliation)
	assert.Equal(t, 1, idx.lookups)
}

func TestConfidenceComesFromPrimaryRegardlessOfStrategy(t *testing.T) {
	docs := tenDocs()
	idx := &fakeIndex{
		ranking:  rankingOf(docs),
		vectors:  map[string][]float32{"d0": {1, 0}},
		queryVec: []float32{1, 0},
	}
	lex := &fakeLexical{available: true, docs: []vectordb.Document{docs[9]}}
	engine := NewEngine(idx, lex)

	for _, interp := range []interpret.Interpretation{refs("passage 4"), refs(), refs("absent")} {
		res, err := engine.Retrieve(context.Background(), "regolith", interp)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	}
}

func TestIndexErrorInLaterStatePropagates(t *testing.T) {
	idx := &failAfterIndex{fakeIndex: &fakeIndex{ranking: rankingOf(tenDocs())}, okCalls: 1}
	_, err := NewEngine(idx, nil).Retrieve(context.Background(), "regolith", refs("crater"))
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

type failAfterIndex struct {
	*fakeIndex
	mu      sync.Mutex
	okCalls int
}

func (f *failAfterIndex) NearestNeighbors(ctx context.Context, q string, k int) ([]vectordb.Neighbor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.okCalls == 0 {
		return nil, errors.New("index went away")
	}
	f.okCalls--
	return f.fakeIndex.NearestNeighbors(ctx, q, k)
}

func TestResultInvariants(t *testing.T) {
	docs := tenDocs()
	docs[3].Content = docs[0].Content
	docs[5].Content = docs[2].Content
	interps := []interpret.Interpretation{refs(), refs("passage"), refs("nothing"), refs("")}
	lexicals := []LexicalIndex{nil, &fakeLexical{available: true, docs: docs[4:9]}, &fakeLexical{available: false}}
	scores := []float32{-0.5, 0.3, 1.7}

	for _, score := range scores {
		ranking := rankingOf(docs)
		ranking[0].Score = score
		for _, lex := range lexicals {
			for _, interp := range interps {
				idx := &fakeIndex{ranking: ranking, embedErr: ErrEmbeddingService}
				res, err := NewEngine(idx, lex).Retrieve(context.Background(), "q", interp)
				require.NoError(t, err)

				assert.LessOrEqual(t, len(res.Documents), 5)
				if res.Strategy == StrategySemantic {
					assert.LessOrEqual(t, len(res.Documents), 3)
				}
				seen := map[string]bool{}
				for _, d := range res.Documents {
					assert.False(t, seen[d.Content], "duplicate content %q", d.Content)
					seen[d.Content] = true
				}
				assert.GreaterOrEqual(t, res.Confidence, 0.0)
				assert.LessOrEqual(t, res.Confidence, 1.0)
			}
		}
	}
}

func TestRetrieveIsIdempotent(t *testing.T) {
	docs := tenDocs()
	idx := &fakeIndex{ranking: rankingOf(docs), vectors: map[string][]float32{"d0": {1, 2}}, queryVec: []float32{2, 1}}
	lex := &fakeLexical{available: true, docs: []vectordb.Document{docs[6], docs[0]}}
	engine := NewEngine(idx, lex)

	first, err := engine.Retrieve(context.Background(), "regolith", refs())
	require.NoError(t, err)
	second, err := engine.Retrieve(context.Background(), "regolith", refs())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRetrieveConcurrent(t *testing.T) {
	idx := &fakeIndex{ranking: rankingOf(tenDocs()), vectors: map[string][]float32{"d0": {1, 1}}, queryVec: []float32{1, 1}}
	engine := NewEngine(idx, nil)
	want, err := engine.Retrieve(context.Background(), "regolith", refs("passage 2"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Result, 32)
	errs := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Retrieve(context.Background(), "regolith", refs("passage 2"))
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
}

func TestRetrieveRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	idx := &fakeIndex{ranking: rankingOf(tenDocs())}
	engine := NewEngine(idx, nil, WithMetrics(m))

	_, err := engine.Retrieve(context.Background(), "regolith", refs())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetrievalsTotal.WithLabelValues("semantic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconcileTotal.WithLabelValues("fallback")))

	idx.nnErr = errors.New("down")
	_, err = engine.Retrieve(context.Background(), "regolith", refs())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetrievalErrorsTotal))
}

func TestEngineOptions(t *testing.T) {
	idx := &fakeIndex{ranking: rankingOf(tenDocs())}
	engine := NewEngine(idx, nil, WithK(4, 8, 2), WithResultLimit(3))

	res, err := engine.Retrieve(context.Background(), "regolith", refs("regolith"))
	require.NoError(t, err)
	assert.Len(t, res.Documents, 3)
	assert.Equal(t, []int{4, 8}, idx.kCalls())
}
