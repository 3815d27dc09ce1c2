// Package pipeline answers user queries end to end: interpretation,
// retrieval and history persistence.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/regolith-ai/regolith/internal/history"
	"github.com/regolith-ai/regolith/internal/interpret"
	"github.com/regolith-ai/regolith/internal/retrieval"
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query is empty")

// Interpreter interprets raw queries. *interpret.Interpreter satisfies it.
type Interpreter interface {
	Interpret(ctx context.Context, raw string) interpret.Outcome
}

// Retriever runs retrievals. *retrieval.Engine satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, rawQuery string, interp interpret.Interpretation) (retrieval.Result, error)
}

// Recorder persists answered queries. *history.Store satisfies it.
type Recorder interface {
	EnsureSession(ctx context.Context, id string) (*history.Session, error)
	Record(ctx context.Context, rec *history.Record) error
}

// AskRequest is one user query. An empty SessionID starts a new session.
type AskRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
}

// Answer is the result of Ask.
type Answer struct {
	SessionID          string                   `json:"session_id,omitempty"`
	RecordID           string                   `json:"record_id,omitempty"`
	Query              string                   `json:"query"`
	Interpretation     interpret.Interpretation `json:"interpretation"`
	InterpretationKind interpret.Kind           `json:"interpretation_kind"`
	Result             retrieval.Result         `json:"result"`
}

// Pipeline wires an interpreter, a retriever and an optional recorder.
type Pipeline struct {
	interpreter Interpreter
	retriever   Retriever
	recorder    Recorder
	log         zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder enables history persistence.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// New creates a Pipeline.
func New(interpreter Interpreter, retriever Retriever, opts ...Option) *Pipeline {
	p := &Pipeline{
		interpreter: interpreter,
		retriever:   retriever,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ask interprets and retrieves for req.Query, then records the exchange.
// Retrieval errors are returned after the failed attempt is recorded;
// history failures are only logged.
func (p *Pipeline) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	outcome := p.interpreter.Interpret(ctx, query)
	ans := &Answer{
		SessionID:          req.SessionID,
		Query:              query,
		Interpretation:     outcome.Interpretation,
		InterpretationKind: outcome.Kind,
	}

	res, err := p.retriever.Retrieve(ctx, query, outcome.Interpretation)
	ans.Result = res
	p.record(ctx, ans, err)
	if err != nil {
		return nil, err
	}
	return ans, nil
}

func (p *Pipeline) record(ctx context.Context, ans *Answer, retrieveErr error) {
	if p.recorder == nil {
		return
	}
	sess, err := p.recorder.EnsureSession(ctx, ans.SessionID)
	if err != nil {
		p.log.Warn().Err(err).Str("session", ans.SessionID).Msg("could not open history session")
		return
	}
	ans.SessionID = sess.ID

	rec := &history.Record{
		SessionID:      sess.ID,
		Query:          ans.Query,
		CorrectedQuery: ans.Interpretation.CorrectedQuery,
		Intent:         string(ans.Interpretation.Intent),
		References:     ans.Interpretation.References,
		Interpretation: string(ans.InterpretationKind),
		Strategy:       string(ans.Result.Strategy),
		Confidence:     ans.Result.Confidence,
		Reconciliation: string(ans.Result.Reconciliation),
	}
	for _, d := range ans.Result.Documents {
		rec.DocIDs = append(rec.DocIDs, d.ID)
	}
	if retrieveErr != nil {
		rec.Error = retrieveErr.Error()
	}
	if err := p.recorder.Record(ctx, rec); err != nil {
		p.log.Warn().Err(err).Str("session", sess.ID).Msg("could not record query")
		return
	}
	ans.RecordID = rec.ID
}
