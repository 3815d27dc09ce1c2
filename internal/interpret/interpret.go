// Package interpret turns a noisy user query into a corrected query, an
// intent label and a list of reference terms using an LLM.
package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/regolith-ai/regolith/internal/llm"
	"github.com/regolith-ai/regolith/internal/metrics"
)

// Intent is the kind of request the user made.
type Intent string

const (
	IntentRetrieve  Intent = "retrieve"
	IntentSummarize Intent = "summarize"
	IntentCompare   Intent = "compare"
	IntentUnknown   Intent = "unknown"
)

// Interpretation is the structured reading of one query.
type Interpretation struct {
	CorrectedQuery string   `json:"corrected_query"`
	Intent         Intent   `json:"intent"`
	References     []string `json:"references"`
}

// Kind says whether an Interpretation came from the model or is the
// default used when the model could not be consulted.
type Kind string

const (
	Parsed  Kind = "parsed"
	Default Kind = "default"
	// Caller marks references supplied directly by the caller; the model
	// was not consulted. Interpret never returns it.
	Caller Kind = "caller"
)

// Outcome is the result of Interpret. Both kinds carry a usable
// Interpretation.
type Outcome struct {
	Interpretation Interpretation
	Kind           Kind
	// Err is the reason for a Default outcome, nil otherwise.
	Err error
}

// DefaultTimeout bounds a single interpretation call.
const DefaultTimeout = 15 * time.Second

var errNoProvider = errors.New("no LLM provider configured")

// Interpreter calls an LLM provider to interpret queries.
type Interpreter struct {
	provider llm.Provider
	timeout  time.Duration
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(i *Interpreter) {
		if d > 0 {
			i.timeout = d
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(i *Interpreter) { i.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Interpreter) { i.metrics = m }
}

// New creates an Interpreter. A nil provider is allowed: every query
// then gets the Default interpretation.
func New(provider llm.Provider, opts ...Option) *Interpreter {
	i := &Interpreter{
		provider: provider,
		timeout:  DefaultTimeout,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Fallback is the interpretation used when the model is unavailable.
func Fallback(raw string) Interpretation {
	return Interpretation{
		CorrectedQuery: raw,
		Intent:         IntentUnknown,
		References:     []string{},
	}
}

// Interpret never fails: any provider error, timeout or malformed reply
// produces a Default outcome carrying Fallback(raw).
func (i *Interpreter) Interpret(ctx context.Context, raw string) Outcome {
	interp, err := i.ask(ctx, raw)
	if err != nil {
		i.log.Warn().Err(err).Str("query", raw).Msg("query interpretation fell back to default")
		i.metrics.ObserveInterpret(string(Default))
		return Outcome{Interpretation: Fallback(raw), Kind: Default, Err: err}
	}
	i.log.Debug().
		Str("corrected", interp.CorrectedQuery).
		Str("intent", string(interp.Intent)).
		Strs("references", interp.References).
		Msg("query interpreted")
	i.metrics.ObserveInterpret(string(Parsed))
	return Outcome{Interpretation: interp, Kind: Parsed}
}

func (i *Interpreter) ask(ctx context.Context, raw string) (Interpretation, error) {
	if i == nil || i.provider == nil {
		return Interpretation{}, errNoProvider
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	resp, err := i.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: raw},
		},
		MaxTokens:   400,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return Interpretation{}, fmt.Errorf("interpret query: %w", err)
	}
	return Parse(resp.Content, raw)
}

// Parse decodes a model reply into an Interpretation. Markdown fences and
// text around the outermost JSON object are ignored.
func Parse(reply, raw string) (Interpretation, error) {
	body, err := extractJSON(reply)
	if err != nil {
		return Interpretation{}, err
	}

	var wire struct {
		CorrectedQuery string   `json:"corrected_query"`
		Intent         string   `json:"intent"`
		References     []string `json:"references"`
	}
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return Interpretation{}, fmt.Errorf("decode interpretation: %w", err)
	}

	out := Interpretation{
		CorrectedQuery: strings.TrimSpace(wire.CorrectedQuery),
		Intent:         normalizeIntent(wire.Intent),
		References:     make([]string, 0, len(wire.References)),
	}
	if out.CorrectedQuery == "" {
		out.CorrectedQuery = raw
	}
	for _, ref := range wire.References {
		if ref = strings.TrimSpace(ref); ref != "" {
			out.References = append(out.References, ref)
		}
	}
	return out, nil
}

func normalizeIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentRetrieve:
		return IntentRetrieve
	case IntentSummarize:
		return IntentSummarize
	case IntentCompare:
		return IntentCompare
	default:
		return IntentUnknown
	}
}

func extractJSON(reply string) (string, error) {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in model reply")
	}
	return s[start : end+1], nil
}
