package retrieval

import "github.com/regolith-ai/regolith/internal/vectordb"

// Merge concatenates lists in order, drops documents whose content was
// already seen and truncates to limit. A non-positive limit keeps all.
func Merge(limit int, lists ...[]vectordb.Document) []vectordb.Document {
	seen := make(map[string]struct{})
	out := []vectordb.Document{}
	for _, list := range lists {
		for _, doc := range list {
			if _, dup := seen[doc.Content]; dup {
				continue
			}
			seen[doc.Content] = struct{}{}
			out = append(out, doc)
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}
	return out
}

func documents(neighbors []vectordb.Neighbor) []vectordb.Document {
	docs := make([]vectordb.Document, len(neighbors))
	for i, n := range neighbors {
		docs[i] = n.Document
	}
	return docs
}
