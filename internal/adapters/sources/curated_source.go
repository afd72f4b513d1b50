package sources

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
)

//go:embed data/curated_providers.json
var curatedDataset []byte

// CuratedSource serves the hand-maintained provider dataset. The embedded
// copy is used unless a file path is configured.
type CuratedSource struct {
	path string
}

// NewCuratedSource creates a curated source. An empty path selects the
// embedded dataset.
func NewCuratedSource(path string) *CuratedSource {
	return &CuratedSource{path: path}
}

var _ repositories.ProviderSource = (*CuratedSource)(nil)

// Source returns the curated tag.
func (s *CuratedSource) Source() entities.Source {
	return entities.SourceCurated
}

// Fetch decodes the dataset. Numbers are kept as json.Number so ids and
// coordinates survive without float rounding.
func (s *CuratedSource) Fetch(ctx context.Context) ([]entities.RawRecord, error) {
	data := curatedDataset
	if s.path != "" {
		var err error
		data, err = os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read curated dataset: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decodeRecords(data, entities.SourceCurated)
}

func decodeRecords(data []byte, src entities.Source) ([]entities.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s dataset: %w", src, err)
	}

	records := make([]entities.RawRecord, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		records = append(records, entities.NewRawRecord(src, row))
	}
	return records, nil
}
