package vectordb

import (
	"fmt"
	"strings"
)

// FormatDocuments renders documents as human-readable text.
func FormatDocuments(docs []Document) string {
	if len(docs) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n", len(docs)))

	for i, d := range docs {
		sb.WriteString(fmt.Sprintf("\n--- Result %d ---\n", i+1))
		writeSource(&sb, d.Metadata)
		sb.WriteString("\n")
		sb.WriteString(d.Content)
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatNeighbors renders semantic candidates with their index scores.
func FormatNeighbors(results []Neighbor) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n", len(results)))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("\n--- Result %d (score: %.4f) ---\n", i+1, r.Score))
		writeSource(&sb, r.Document.Metadata)
		sb.WriteString("\n")
		sb.WriteString(r.Document.Content)
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeSource(sb *strings.Builder, m Metadata) {
	if m.Filename != "" {
		sb.WriteString(fmt.Sprintf("File: %s (chunk %d)\n", m.Filename, m.ChunkID))
	}
	if m.SectionTitle != "" {
		sb.WriteString(fmt.Sprintf("Section: %s\n", m.SectionTitle))
	}
	if m.FeatureType != "" {
		sb.WriteString(fmt.Sprintf("Feature: %s\n", m.FeatureType))
	}
	if m.GeologicPeriod != "" {
		sb.WriteString(fmt.Sprintf("Period: %s\n", m.GeologicPeriod))
	}
	if m.TerrainType != "" {
		sb.WriteString(fmt.Sprintf("Terrain: %s\n", m.TerrainType))
	}
	if len(m.Keywords) > 0 {
		sb.WriteString(fmt.Sprintf("Keywords: %s\n", strings.Join(m.Keywords, ", ")))
	}
}
