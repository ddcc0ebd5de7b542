// Package sink persists aggregated daily records, one file per processed
// year, in CSV or Parquet form.
package sink

import (
	"fmt"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
)

// Sink writes one year's records to durable storage and returns the path
// written. Writes go through a temp file and rename so a crashed run never
// leaves a truncated output behind.
type Sink interface {
	WriteYear(year int, records []*domain.DailyRecord) (string, error)
	Format() string
}

// New selects a sink by format name.
func New(format, outputDir string) (Sink, error) {
	switch format {
	case "csv":
		return &CSVSink{Dir: outputDir}, nil
	case "parquet":
		return &ParquetSink{Dir: outputDir}, nil
	default:
		return nil, domain.Configf("unsupported output format %q", format)
	}
}

func yearFileName(year int, ext string) string {
	return fmt.Sprintf("era5_daily_heat_%d.%s", year, ext)
}
