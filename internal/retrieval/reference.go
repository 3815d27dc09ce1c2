package retrieval

import (
	"strings"

	"github.com/regolith-ai/regolith/internal/vectordb"
)

// FilterByReferences keeps the candidates whose metadata or content
// contains any reference term, case-insensitively, in candidate order.
// Blank references never match.
func FilterByReferences(candidates []vectordb.Document, references []string) []vectordb.Document {
	terms := make([]string, 0, len(references))
	for _, ref := range references {
		if ref = strings.ToLower(strings.TrimSpace(ref)); ref != "" {
			terms = append(terms, ref)
		}
	}
	if len(terms) == 0 {
		return nil
	}

	var out []vectordb.Document
	for _, doc := range candidates {
		meta := strings.ToLower(strings.Join(doc.Metadata.Values(), " "))
		content := strings.ToLower(doc.Content)
		for _, term := range terms {
			if strings.Contains(meta, term) || strings.Contains(content, term) {
				out = append(out, doc)
				break
			}
		}
	}
	return out
}
