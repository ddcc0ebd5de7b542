package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
)

// CSVSink writes one CSV file per year. Missing results serialize as empty
// cells through the record's pointer columns.
type CSVSink struct {
	Dir string
}

func (s *CSVSink) Format() string { return "csv" }

// WriteYear marshals the records and atomically replaces any previous file
// for the same year.
func (s *CSVSink) WriteYear(year int, records []*domain.DailyRecord) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	final := filepath.Join(s.Dir, yearFileName(year, "csv"))

	tmp, err := os.CreateTemp(s.Dir, yearFileName(year, "csv")+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gocsv.MarshalFile(&records, tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write csv for %d: %w", year, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("publish output for %d: %w", year, err)
	}
	return final, nil
}

// ReadCSV loads a previously written year file, for the validate command.
func ReadCSV(path string) ([]*domain.DailyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	var records []*domain.DailyRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("parse output %s: %w", path, err)
	}
	return records, nil
}
