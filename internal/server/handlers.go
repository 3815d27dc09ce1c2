package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/regolith-ai/regolith/internal/interpret"
	"github.com/regolith-ai/regolith/internal/pipeline"
	"github.com/regolith-ai/regolith/internal/retrieval"
	"github.com/regolith-ai/regolith/internal/vectordb"
)

type retrieveRequest struct {
	Query string `json:"query"`
	// References bypasses interpretation when set.
	References []string `json:"references,omitempty"`
	// Interpret runs the query through the interpreter first.
	Interpret bool `json:"interpret,omitempty"`
}

type retrieveResponse struct {
	Interpretation     interpret.Interpretation `json:"interpretation"`
	InterpretationKind interpret.Kind           `json:"interpretation_kind"`
	Result             retrieval.Result         `json:"result"`
}

type chunksResponse struct {
	Count  int                 `json:"count"`
	Chunks []vectordb.Document `json:"chunks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.deps.Chunks != nil {
		body["documents"] = s.deps.Chunks.Count()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	if s.deps.Retriever == nil {
		writeError(w, http.StatusServiceUnavailable, "retrieval not configured")
		return
	}
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	resp := retrieveResponse{
		Interpretation:     interpret.Fallback(req.Query),
		InterpretationKind: interpret.Default,
	}
	switch {
	case len(req.References) > 0:
		resp.Interpretation.References = req.References
		resp.InterpretationKind = interpret.Caller
	case req.Interpret && s.deps.Interpreter != nil:
		out := s.deps.Interpreter.Interpret(r.Context(), req.Query)
		resp.Interpretation = out.Interpretation
		resp.InterpretationKind = out.Kind
	}

	res, err := s.deps.Retriever.Retrieve(r.Context(), req.Query, resp.Interpretation)
	if err != nil {
		s.writeRetrievalError(w, r, err)
		return
	}
	resp.Result = res
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}
	var req pipeline.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ans, err := s.deps.Pipeline.Ask(r.Context(), req)
	if err != nil {
		s.writeRetrievalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chunks == nil {
		writeError(w, http.StatusServiceUnavailable, "index not configured")
		return
	}
	docs, err := s.deps.Chunks.ListDocuments(r.Context())
	if err != nil {
		s.writeRetrievalError(w, r, err)
		return
	}
	if docs == nil {
		docs = []vectordb.Document{}
	}
	writeJSON(w, http.StatusOK, chunksResponse{Count: len(docs), Chunks: docs})
}

func (s *Server) writeRetrievalError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, retrieval.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
