// Package corpus reads pre-chunked documents from JSONL files and loads
// them into the retrieval indexes.
package corpus

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/regolith-ai/regolith/internal/vectordb"
)

// ErrNoFiles is returned by Expand when no pattern matches a file.
var ErrNoFiles = errors.New("no corpus files matched")

// maxLineSize bounds one JSONL record.
const maxLineSize = 16 << 20

// Expand resolves glob patterns (with ** support) to a sorted,
// de-duplicated list of regular files. A pattern without glob
// characters is taken as a literal path.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, strings.Join(patterns, ", "))
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile decodes one JSONL corpus file.
func ReadFile(path string) ([]vectordb.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// Decode reads JSONL records of the form
// {"id": ..., "content": ..., "metadata": {...}}. The id may be given at
// the top level or as metadata.id; one of them is required. Blank lines
// are skipped.
func Decode(r io.Reader) ([]vectordb.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var docs []vectordb.Document
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc vectordb.Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if doc.ID == "" {
			doc.ID = doc.Metadata.ID
		}
		if doc.Metadata.ID == "" {
			doc.Metadata.ID = doc.ID
		}
		if doc.ID == "" {
			return nil, fmt.Errorf("line %d: %w: missing id", line, vectordb.ErrInvalidDocument)
		}
		if doc.ID != doc.Metadata.ID {
			return nil, fmt.Errorf("line %d: %w: id %q disagrees with metadata.id %q",
				line, vectordb.ErrInvalidDocument, doc.ID, doc.Metadata.ID)
		}
		if strings.TrimSpace(doc.Content) == "" {
			return nil, fmt.Errorf("line %d: %w: empty content", line, vectordb.ErrInvalidDocument)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// ReadAll reads every file and rejects ids that appear more than once
// across the whole set.
func ReadAll(paths []string) ([]vectordb.Document, error) {
	var all []vectordb.Document
	where := make(map[string]string)
	for _, p := range paths {
		docs, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			if prev, dup := where[d.ID]; dup {
				return nil, fmt.Errorf("%w: duplicate id %q in %s (first seen in %s)",
					vectordb.ErrInvalidDocument, d.ID, p, prev)
			}
			where[d.ID] = p
		}
		all = append(all, docs...)
	}
	return all, nil
}
