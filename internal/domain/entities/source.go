package entities

// Source identifies which adapter produced a provider record.
type Source string

const (
	// SourceEstablishment is an operator-entered establishment record.
	SourceEstablishment Source = "establishment"
	// SourceCurated is the curated static dataset.
	SourceCurated Source = "curated"
	// SourceGeodata is the synced external geodata import.
	SourceGeodata Source = "geodata"
)

// Priority orders sources when two records describe the same establishment.
// Higher wins.
func (s Source) Priority() int {
	switch s {
	case SourceEstablishment:
		return 3
	case SourceCurated:
		return 2
	case SourceGeodata:
		return 1
	default:
		return 0
	}
}

// RawRecord is a source-specific record before normalization. Values keep
// whatever JSON types the source produced (strings, float64, bool, []any).
type RawRecord struct {
	Source Source         `json:"source"`
	Fields map[string]any `json:"fields"`
}

// NewRawRecord wraps fields produced by src.
func NewRawRecord(src Source, fields map[string]any) RawRecord {
	return RawRecord{Source: src, Fields: fields}
}
