package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/regolith-ai/regolith/internal/interpret"
	"github.com/regolith-ai/regolith/internal/vectordb"
)

func (s *Server) handleRetrievePassages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	interp := interpret.Fallback(query)
	if refs := splitReferences(request.GetString("references", "")); len(refs) > 0 {
		interp.References = refs
	} else if s.interpreter != nil {
		interp = s.interpreter.Interpret(ctx, query).Interpretation
	}

	res, err := s.retriever.Retrieve(ctx, query, interp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}
	if len(res.Documents) == 0 {
		return mcp.NewToolResultText("No passages found. The corpus may not be loaded yet. Run `regolith load` to index it."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Confidence: %.3f (%s, strategy %s)\n", res.Confidence, res.Reconciliation, res.Strategy)
	sb.WriteString(vectordb.FormatDocuments(res.Documents))
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleInterpretQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	if s.interpreter == nil {
		return mcp.NewToolResultError("no LLM provider configured for query interpretation"), nil
	}

	out := s.interpreter.Interpret(ctx, query)
	body, err := json.MarshalIndent(struct {
		interpret.Interpretation
		Kind interpret.Kind `json:"kind"`
	}{out.Interpretation, out.Kind}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode interpretation: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func splitReferences(s string) []string {
	var refs []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			refs = append(refs, part)
		}
	}
	return refs
}
