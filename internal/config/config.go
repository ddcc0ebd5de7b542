package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	// Raster input. FilePattern is a fmt pattern with one %d verb for the
	// year; a year's input is its own file plus the adjacent year's file
	// needed to cover the zone offset.
	DataDir     string
	FilePattern string

	// Administrative boundary input.
	BoundaryFile string
	IDField      string // required unique-ID attribute column
	Admin1Field  string // optional parent-level ID, passed through
	Admin0Field  string // optional parent-level ID, passed through

	// Variable name substrings used to locate layers in the raster files.
	TempVar string
	DewVar  string
	SkinVar string

	// Processing window and time base.
	StartYear      int
	EndYear        int
	UTCOffsetHours int // fixed offset of the study region's local time

	// Numeric policy.
	SliverThreshold float64 // overlay pieces below this area are numerical noise
	WeightTolerance float64 // renormalized weight sums must hit 1 within this
	ReferenceDate   string  // mm-dd used for the yearly coverage check

	// Output.
	OutputDir    string
	OutputFormat string // "csv" or "parquet"

	// Observability.
	LogLevel    string
	LogFormat   string
	MetricsAddr string // empty disables the /metrics listener
}

// Load reads configuration from environment variables, applying defaults
// where unset, and validates the result.
func Load() (*Config, error) {
	startYear, endYear, err := parseYears(os.Getenv("YEARS"))
	if err != nil {
		return nil, err
	}

	offset, err := parseIntVar("UTC_OFFSET_HOURS", 0)
	if err != nil {
		return nil, err
	}

	sliver, err := parseFloatVar("SLIVER_THRESHOLD", 1e-9)
	if err != nil {
		return nil, err
	}

	weightTol, err := parseFloatVar("WEIGHT_TOLERANCE", 1e-4)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:     envOrDefault("ERA5_DATA_DIR", "data"),
		FilePattern: envOrDefault("ERA5_FILE_PATTERN", "era5_hourly_%d.nc"),

		BoundaryFile: os.Getenv("BOUNDARY_FILE"),
		IDField:      envOrDefault("BOUNDARY_ID_FIELD", "shapeID"),
		Admin1Field:  os.Getenv("BOUNDARY_ADMIN1_FIELD"),
		Admin0Field:  os.Getenv("BOUNDARY_ADMIN0_FIELD"),

		TempVar: envOrDefault("VAR_TEMPERATURE", "t2m"),
		DewVar:  envOrDefault("VAR_DEWPOINT", "d2m"),
		SkinVar: envOrDefault("VAR_SKIN_TEMPERATURE", "skt"),

		StartYear:      startYear,
		EndYear:        endYear,
		UTCOffsetHours: offset,

		SliverThreshold: sliver,
		WeightTolerance: weightTol,
		ReferenceDate:   envOrDefault("REFERENCE_DATE", "07-01"),

		OutputDir:    envOrDefault("OUTPUT_DIR", "output"),
		OutputFormat: envOrDefault("OUTPUT_FORMAT", "csv"),

		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		LogFormat:   envOrDefault("LOG_FORMAT", "json"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}

	if cfg.BoundaryFile == "" {
		return nil, errors.New("BOUNDARY_FILE is required")
	}
	if cfg.IDField == "" {
		return nil, errors.New("BOUNDARY_ID_FIELD is required")
	}
	if !strings.Contains(cfg.FilePattern, "%d") {
		return nil, fmt.Errorf("ERA5_FILE_PATTERN %q must contain a %%d year verb", cfg.FilePattern)
	}
	if cfg.OutputFormat != "csv" && cfg.OutputFormat != "parquet" {
		return nil, fmt.Errorf("invalid OUTPUT_FORMAT %q (want csv or parquet)", cfg.OutputFormat)
	}
	if cfg.SliverThreshold < 0 {
		return nil, errors.New("SLIVER_THRESHOLD must be >= 0")
	}
	if cfg.WeightTolerance <= 0 {
		return nil, errors.New("WEIGHT_TOLERANCE must be > 0")
	}
	if offset < -12 || offset > 14 {
		return nil, fmt.Errorf("UTC_OFFSET_HOURS %d outside plausible range [-12, 14]", offset)
	}
	if _, _, err := ParseMonthDay(cfg.ReferenceDate); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Years returns the inclusive processing years in order.
func (c *Config) Years() []int {
	years := make([]int, 0, c.EndYear-c.StartYear+1)
	for y := c.StartYear; y <= c.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// ParseMonthDay parses an "mm-dd" string such as the reference date.
func ParseMonthDay(s string) (month, day int, err error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid month-day %q (want mm-dd)", s)
	}
	month, errM := strconv.Atoi(parts[0])
	day, errD := strconv.Atoi(parts[1])
	if errM != nil || errD != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, fmt.Errorf("invalid month-day %q (want mm-dd)", s)
	}
	return month, day, nil
}

// parseYears parses "2015-2020" or a single "2018".
func parseYears(s string) (start, end int, err error) {
	if s == "" {
		return 0, 0, errors.New(`YEARS is required (e.g. "2015-2020" or "2018")`)
	}
	parts := strings.SplitN(s, "-", 2)
	start, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid YEARS %q: %w", s, err)
	}
	end = start
	if len(parts) == 2 {
		end, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid YEARS %q: %w", s, err)
		}
	}
	if start < 1940 || end < start {
		return 0, 0, fmt.Errorf("invalid YEARS %q: want start <= end with start >= 1940 (ERA5 archive floor)", s)
	}
	return start, end, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntVar(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func parseFloatVar(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return f, nil
}
