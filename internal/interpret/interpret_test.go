package interpret

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regolith-ai/regolith/internal/llm"
	"github.com/regolith-ai/regolith/internal/metrics"
)

type fakeProvider struct {
	reply string
	err   error
	delay time.Duration
	last  llm.CompletionRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.last = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.reply}, nil
}

func TestInterpretParsed(t *testing.T) {
	p := &fakeProvider{reply: `{"corrected_query":"explain basics of impact cratering","intent":"retrieve","references":["impact cratering"," ","2. THE BASICS OF IMPACT CRATERING"]}`}
	out := New(p).Interpret(context.Background(), "explan basiks of imprct cratrring")

	require.Equal(t, Parsed, out.Kind)
	assert.NoError(t, out.Err)
	assert.Equal(t, "explain basics of impact cratering", out.Interpretation.CorrectedQuery)
	assert.Equal(t, IntentRetrieve, out.Interpretation.Intent)
	assert.Equal(t, []string{"impact cratering", "2. THE BASICS OF IMPACT CRATERING"}, out.Interpretation.References)

	require.Len(t, p.last.Messages, 2)
	assert.Equal(t, llm.RoleSystem, p.last.Messages[0].Role)
	assert.Equal(t, "explan basiks of imprct cratrring", p.last.Messages[1].Content)
	assert.True(t, p.last.JSONMode)
}

func TestInterpretProviderErrorFallsBack(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	out := New(&fakeProvider{err: errors.New("503")}, WithMetrics(m)).Interpret(context.Background(), "crater rays")

	assert.Equal(t, Default, out.Kind)
	assert.Error(t, out.Err)
	assert.Equal(t, Fallback("crater rays"), out.Interpretation)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InterpretTotal.WithLabelValues("default")))
}

func TestInterpretTimeoutFallsBack(t *testing.T) {
	p := &fakeProvider{reply: `{"intent":"retrieve"}`, delay: time.Second}
	out := New(p, WithTimeout(20*time.Millisecond)).Interpret(context.Background(), "maria basalt")

	assert.Equal(t, Default, out.Kind)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Equal(t, "maria basalt", out.Interpretation.CorrectedQuery)
}

func TestInterpretWithoutProvider(t *testing.T) {
	out := New(nil).Interpret(context.Background(), "regolith depth")
	assert.Equal(t, Default, out.Kind)
	assert.Equal(t, IntentUnknown, out.Interpretation.Intent)
	assert.Empty(t, out.Interpretation.References)
}

func TestInterpretMalformedReply(t *testing.T) {
	out := New(&fakeProvider{reply: "I cannot help with that."}).Interpret(context.Background(), "tell me a love story")
	assert.Equal(t, Default, out.Kind)
	assert.Equal(t, Fallback("tell me a love story"), out.Interpretation)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Interpretation
	}{
		{
			name:  "fenced",
			reply: "```json\n{\"corrected_query\":\"compare crater collapse and crater excavation\",\"intent\":\"compare\",\"references\":[\"crater collapse\",\"crater excavation\"]}\n```",
			want: Interpretation{
				CorrectedQuery: "compare crater collapse and crater excavation",
				Intent:         IntentCompare,
				References:     []string{"crater collapse", "crater excavation"},
			},
		},
		{
			name:  "surrounding prose",
			reply: `Here you go: {"corrected_query":"summarize the file","intent":"Summarize","references":[]} hope it helps`,
			want:  Interpretation{CorrectedQuery: "summarize the file", Intent: IntentSummarize, References: []string{}},
		},
		{
			name:  "unknown intent and empty query",
			reply: `{"corrected_query":"","intent":"chat","references":null}`,
			want:  Interpretation{CorrectedQuery: "raw", Intent: IntentUnknown, References: []string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.reply, "raw")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejectsNonObject(t *testing.T) {
	_, err := Parse(`["a","b"]`, "raw")
	assert.Error(t, err)
	_, err = Parse(`{"intent": }`, "raw")
	assert.Error(t, err)
}
