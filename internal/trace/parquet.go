package trace

import (
	"fmt"
	"os"

	"github.com/segmentio/parquet-go"
)

// parquetRow is the flat export schema for analytics tooling.
type parquetRow struct {
	Source       string  `parquet:"source"`
	Line         int32   `parquet:"line"`
	Path         string  `parquet:"path"`
	Seq          int32   `parquet:"seq"`
	Original     string  `parquet:"original_value"`
	Replacement  string  `parquet:"redacted_value"`
	Rule         string  `parquet:"rule"`
	Reason       string  `parquet:"reason"`
	EntropyScore float64 `parquet:"entropy_score"`
}

// WriteParquet exports the ordered audit log as a Parquet file for offline
// analytics over large redaction runs.
func (a *Aggregator) WriteParquet(path string) error {
	entries := a.Entries()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create parquet export: %w", err)
	}
	defer f.Close()

	writer := parquet.NewGenericWriter[parquetRow](f)

	rows := make([]parquetRow, len(entries))
	for i, e := range entries {
		rows[i] = parquetRow{
			Source:       e.Source,
			Line:         int32(e.Line),
			Path:         e.Path,
			Seq:          int32(e.Seq),
			Original:     e.Original,
			Replacement:  e.Replacement,
			Rule:         e.Rule,
			Reason:       string(e.Reason),
			EntropyScore: e.EntropyScore,
		}
	}

	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			writer.Close()
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet export: %w", err)
	}
	return nil
}
