package vectordb

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Flat metadata keys. Chromem metadata is map[string]string, so every
// field has a string form under one of these keys.
const (
	KeyID             = "id"
	KeyFilename       = "filename"
	KeyChunkID        = "chunk_id"
	KeySectionTitle   = "section_title"
	KeyFeatureType    = "feature_type"
	KeyGeologicPeriod = "geologic_period"
	KeyTerrainType    = "terrain_type"
	KeyHasFigures     = "has_figures"
	KeyKeywords       = "keywords"
)

var namedKeys = map[string]bool{
	KeyID: true, KeyFilename: true, KeyChunkID: true, KeySectionTitle: true,
	KeyFeatureType: true, KeyGeologicPeriod: true, KeyTerrainType: true,
	KeyHasFigures: true, KeyKeywords: true,
}

// Document is an immutable retrieval unit: one chunk of a source file.
type Document struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Metadata describes where a chunk came from and what it is about.
// FeatureType and GeologicPeriod are optional; empty means absent.
// Keys the ingestion pipeline emits beyond the named fields land in Extra.
type Metadata struct {
	ID             string
	Filename       string
	ChunkID        int
	SectionTitle   string
	FeatureType    string
	GeologicPeriod string
	TerrainType    string
	HasFigures     bool
	Keywords       []string
	Extra          map[string]string
}

// Values returns every metadata value as text in a stable order: named
// fields first, then Extra sorted by key. Absent optional fields are skipped.
func (m Metadata) Values() []string {
	vals := []string{
		m.ID,
		m.Filename,
		strconv.Itoa(m.ChunkID),
		m.SectionTitle,
	}
	if m.FeatureType != "" {
		vals = append(vals, m.FeatureType)
	}
	if m.GeologicPeriod != "" {
		vals = append(vals, m.GeologicPeriod)
	}
	vals = append(vals,
		m.TerrainType,
		strconv.FormatBool(m.HasFigures),
		strings.Join(m.Keywords, ", "),
	)
	for _, k := range sortedKeys(m.Extra) {
		vals = append(vals, m.Extra[k])
	}
	return vals
}

// ToMap flattens the metadata for storage in chromem.
func (m Metadata) ToMap() map[string]string {
	md := make(map[string]string, 9+len(m.Extra))
	for k, v := range m.Extra {
		md[k] = v
	}
	md[KeyID] = m.ID
	md[KeyFilename] = m.Filename
	md[KeyChunkID] = strconv.Itoa(m.ChunkID)
	md[KeySectionTitle] = m.SectionTitle
	if m.FeatureType != "" {
		md[KeyFeatureType] = m.FeatureType
	}
	if m.GeologicPeriod != "" {
		md[KeyGeologicPeriod] = m.GeologicPeriod
	}
	md[KeyTerrainType] = m.TerrainType
	md[KeyHasFigures] = strconv.FormatBool(m.HasFigures)
	md[KeyKeywords] = strings.Join(m.Keywords, ", ")
	return md
}

// MetadataFromMap is the inverse of ToMap.
func MetadataFromMap(md map[string]string) Metadata {
	chunkID, _ := strconv.Atoi(md[KeyChunkID])
	hasFigures, _ := strconv.ParseBool(md[KeyHasFigures])

	m := Metadata{
		ID:             md[KeyID],
		Filename:       md[KeyFilename],
		ChunkID:        chunkID,
		SectionTitle:   md[KeySectionTitle],
		FeatureType:    md[KeyFeatureType],
		GeologicPeriod: md[KeyGeologicPeriod],
		TerrainType:    md[KeyTerrainType],
		HasFigures:     hasFigures,
		Keywords:       splitKeywords(md[KeyKeywords]),
	}
	for k, v := range md {
		if namedKeys[k] {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[k] = v
	}
	return m
}

// MarshalJSON writes the metadata as one flat object, with Extra keys
// alongside the named ones.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 9+len(m.Extra))
	for k, v := range m.Extra {
		out[k] = v
	}
	out[KeyID] = m.ID
	out[KeyFilename] = m.Filename
	out[KeyChunkID] = m.ChunkID
	out[KeySectionTitle] = m.SectionTitle
	if m.FeatureType != "" {
		out[KeyFeatureType] = m.FeatureType
	}
	if m.GeologicPeriod != "" {
		out[KeyGeologicPeriod] = m.GeologicPeriod
	}
	out[KeyTerrainType] = m.TerrainType
	out[KeyHasFigures] = m.HasFigures
	keywords := m.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	out[KeyKeywords] = keywords
	return json.Marshal(out)
}

// UnmarshalJSON accepts the flat object form. Unknown keys are kept in
// Extra; non-string extras are stored as their JSON text.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Metadata{}
	fields := map[string]any{
		KeyID:             &m.ID,
		KeyFilename:       &m.Filename,
		KeyChunkID:        &m.ChunkID,
		KeySectionTitle:   &m.SectionTitle,
		KeyFeatureType:    &m.FeatureType,
		KeyGeologicPeriod: &m.GeologicPeriod,
		KeyTerrainType:    &m.TerrainType,
		KeyHasFigures:     &m.HasFigures,
		KeyKeywords:       &m.Keywords,
	}

	for k, v := range raw {
		if string(v) == "null" {
			continue
		}
		if dst, ok := fields[k]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return fmt.Errorf("metadata field %s: %w", k, err)
			}
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			m.Extra[k] = s
		} else {
			m.Extra[k] = string(v)
		}
	}
	return nil
}

// Neighbor is a semantic candidate: a document and the index's own
// relevance score in [0,1].
type Neighbor struct {
	Document Document
	Score    float32
}

// EmbeddingRecord is one row of the full-corpus embedding export.
type EmbeddingRecord struct {
	ID       string
	Document Document
	Vector   []float32
}

func splitKeywords(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
