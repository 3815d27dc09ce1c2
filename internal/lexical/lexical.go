// Package lexical is the keyword index: BM25 ranking over SQLite FTS5.
package lexical

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/regolith-ai/regolith/internal/db"
	"github.com/regolith-ai/regolith/internal/vectordb"
)

// DefaultLimit is how many documents Search returns.
const DefaultLimit = 3

// Index is an FTS5-backed keyword index over the same chunks the vector
// store holds. It is safe for concurrent use.
type Index struct {
	db       *db.DB
	limit    int
	disabled bool
	log      zerolog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLimit sets the number of documents Search returns.
func WithLimit(n int) Option {
	return func(i *Index) {
		if n > 0 {
			i.limit = n
		}
	}
}

// WithLogger sets the index logger.
func WithLogger(log zerolog.Logger) Option {
	return func(i *Index) { i.log = log }
}

// Disabled makes the index report itself unavailable.
func Disabled() Option {
	return func(i *Index) { i.disabled = true }
}

// New creates an index on database.
func New(database *db.DB, opts ...Option) *Index {
	i := &Index{
		db:    database,
		limit: DefaultLimit,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Add indexes docs in one transaction, replacing any earlier version of
// the same id. Readers see the whole batch or none of it.
func (i *Index) Add(ctx context.Context, docs []vectordb.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lexical batch: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		id := doc.ID
		if id == "" {
			id = doc.Metadata.ID
		}
		if id == "" {
			return fmt.Errorf("%w: document without id", vectordb.ErrInvalidDocument)
		}
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE doc_id = ?`, id); err != nil {
			return fmt.Errorf("clear fts row %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (doc_id, content, metadata) VALUES (?, ?, ?)
			 ON CONFLICT(doc_id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata`,
			id, doc.Content, string(meta),
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks_fts (doc_id, content) VALUES (?, ?)`,
			id, doc.Content,
		); err != nil {
			return fmt.Errorf("index chunk %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lexical batch: %w", err)
	}
	i.log.Debug().Int("batch", len(docs)).Msg("lexical batch indexed")
	return nil
}

// Count returns the number of indexed chunks.
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Available reports whether the index has been built. An unbuilt or
// disabled index is a normal state, not an error.
func (i *Index) Available(ctx context.Context) bool {
	if i == nil || i.disabled {
		return false
	}
	n, err := i.Count(ctx)
	if err != nil {
		i.log.Warn().Err(err).Msg("lexical index count failed")
		return false
	}
	return n > 0
}

// Search ranks chunks by BM25 over the query's terms, best first. Any
// term may match, as in a bag-of-words BM25 retriever.
func (i *Index) Search(ctx context.Context, query string) ([]vectordb.Document, error) {
	match := buildMatchQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := i.db.QueryContext(ctx,
		`SELECT c.doc_id, c.content, c.metadata
		 FROM chunks_fts
		 JOIN chunks c ON c.doc_id = chunks_fts.doc_id
		 WHERE chunks_fts MATCH ?
		 ORDER BY bm25(chunks_fts), c.seq
		 LIMIT ?`,
		match, i.limit,
	)
	if err != nil {
		if isFTSSyntaxError(err) {
			i.log.Debug().Str("match", match).Err(err).Msg("fts syntax error, no lexical results")
			return nil, nil
		}
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]vectordb.Document, error) {
	var docs []vectordb.Document
	for rows.Next() {
		var (
			doc  vectordb.Document
			meta string
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// buildMatchQuery turns free text into an FTS5 OR query of quoted terms.
// "Impact  cratering?" -> "impact" OR "cratering"
func buildMatchQuery(query string) string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

func isFTSSyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5: syntax error") ||
		strings.Contains(msg, "unterminated string") ||
		strings.Contains(msg, "no such column")
}
