package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
)

// parquetRow mirrors domain.DailyRecord with parquet tags. Dates serialize
// as yyyy-mm-dd strings to match the CSV output, and optional value columns
// stay pointers so that missing results become nulls.
type parquetRow struct {
	AdminID  string `parquet:"admin_id"`
	Admin1ID string `parquet:"admin1_id"`
	Admin0ID string `parquet:"admin0_id"`
	Date     string `parquet:"date"`

	T2MMean *float64 `parquet:"t2m_mean,optional"`
	T2MMin  *float64 `parquet:"t2m_min,optional"`
	T2MMax  *float64 `parquet:"t2m_max,optional"`

	D2MMean *float64 `parquet:"d2m_mean,optional"`
	D2MMin  *float64 `parquet:"d2m_min,optional"`
	D2MMax  *float64 `parquet:"d2m_max,optional"`

	SktMean *float64 `parquet:"skt_mean,optional"`
	SktMin  *float64 `parquet:"skt_min,optional"`
	SktMax  *float64 `parquet:"skt_max,optional"`

	HIMean *float64 `parquet:"heat_index_mean,optional"`
	HIMin  *float64 `parquet:"heat_index_min,optional"`
	HIMax  *float64 `parquet:"heat_index_max,optional"`

	HxMean *float64 `parquet:"humidex_mean,optional"`
	HxMin  *float64 `parquet:"humidex_min,optional"`
	HxMax  *float64 `parquet:"humidex_max,optional"`

	ProcessedAt time.Time `parquet:"processed_at"`
}

func toParquetRow(r *domain.DailyRecord) parquetRow {
	return parquetRow{
		AdminID:  r.AdminID,
		Admin1ID: r.Admin1ID,
		Admin0ID: r.Admin0ID,
		Date:     r.Date.Format("2006-01-02"),

		T2MMean: r.T2MMean, T2MMin: r.T2MMin, T2MMax: r.T2MMax,
		D2MMean: r.D2MMean, D2MMin: r.D2MMin, D2MMax: r.D2MMax,
		SktMean: r.SktMean, SktMin: r.SktMin, SktMax: r.SktMax,
		HIMean: r.HIMean, HIMin: r.HIMin, HIMax: r.HIMax,
		HxMean: r.HxMean, HxMin: r.HxMin, HxMax: r.HxMax,

		ProcessedAt: r.ProcessedAt,
	}
}

// ParquetSink writes one Parquet file per year.
type ParquetSink struct {
	Dir string
}

func (s *ParquetSink) Format() string { return "parquet" }

func (s *ParquetSink) WriteYear(year int, records []*domain.DailyRecord) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	final := filepath.Join(s.Dir, yearFileName(year, "parquet"))

	tmp, err := os.CreateTemp(s.Dir, yearFileName(year, "parquet")+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := parquet.NewGenericWriter[parquetRow](tmp)
	rows := make([]parquetRow, len(records))
	for i, r := range records {
		rows[i] = toParquetRow(r)
	}
	if _, err := w.Write(rows); err != nil {
		w.Close()
		tmp.Close()
		return "", fmt.Errorf("write parquet for %d: %w", year, err)
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("finalize parquet for %d: %w", year, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("publish output for %d: %w", year, err)
	}
	return final, nil
}
