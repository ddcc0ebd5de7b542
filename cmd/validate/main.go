// Command validate performs integrity checks on written yearly output files:
// row counts against the unit-day grid, per-variable ordering, missing-value
// census, and identity completeness.
//
// Usage:
//
//	go run ./cmd/validate -dir output
//	go run ./cmd/validate -dir output -years 2015-2020
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/sink"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "directory containing yearly output CSV files")
	years := flag.String("years", "", `years to check, e.g. "2015-2020" (default: every file found)`)
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir, *years); code != 0 {
		os.Exit(code)
	}
}

func run(dir, yearSpec string) int {
	fmt.Println("=== Daily Heat Output Validation ===")
	fmt.Println()

	files, err := outputFiles(dir, yearSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no output files under %s\n", dir)
		return 1
	}

	allPassed := true
	totalRows := 0
	for _, f := range files {
		records, err := sink.ReadCSV(f.path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
		totalRows += len(records)

		phases := []*phase{
			validateGrid(f.year, records),
			validateOrdering(f.year, records),
			validateCompleteness(f.year, records),
		}

		fmt.Printf("%s (%d rows)\n", filepath.Base(f.path), len(records))
		for _, p := range phases {
			status := "\033[32mPASS\033[0m"
			if !p.passed() {
				status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
				allPassed = false
			}
			fmt.Printf("  %-40s %s\n", p.name, status)
		}
		for _, p := range phases {
			if p.passed() {
				continue
			}
			for i, e := range p.errors {
				if i == 10 {
					fmt.Printf("    ... and %d more\n", len(p.errors)-10)
					break
				}
				fmt.Printf("    [%d] %s\n", i+1, e)
			}
		}
	}

	fmt.Println()
	fmt.Printf("Checked %d file(s), %d rows total\n", len(files), totalRows)
	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

type yearFile struct {
	year int
	path string
}

// outputFiles resolves the files to check, either the requested years or
// every era5_daily_heat_<year>.csv found in the directory.
func outputFiles(dir, yearSpec string) ([]yearFile, error) {
	if yearSpec != "" {
		start, end, err := parseYears(yearSpec)
		if err != nil {
			return nil, err
		}
		var out []yearFile
		for y := start; y <= end; y++ {
			out = append(out, yearFile{year: y, path: filepath.Join(dir, fmt.Sprintf("era5_daily_heat_%d.csv", y))})
		}
		return out, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "era5_daily_heat_*.csv"))
	if err != nil {
		return nil, err
	}
	var out []yearFile
	for _, p := range paths {
		base := strings.TrimSuffix(filepath.Base(p), ".csv")
		y, err := strconv.Atoi(strings.TrimPrefix(base, "era5_daily_heat_"))
		if err != nil {
			continue
		}
		out = append(out, yearFile{year: y, path: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].year < out[j].year })
	return out, nil
}

func parseYears(s string) (start, end int, err error) {
	parts := strings.SplitN(s, "-", 2)
	start, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid years %q", s)
	}
	end = start
	if len(parts) == 2 {
		end, err = strconv.Atoi(parts[1])
		if err != nil || end < start {
			return 0, 0, fmt.Errorf("invalid years %q", s)
		}
	}
	return start, end, nil
}

// ── Phase 1: Unit-Day Grid ──
// Every unit must appear on every calendar day of the year, exactly once.

func validateGrid(year int, records []*domain.DailyRecord) *phase {
	p := &phase{name: "Phase 1: Unit-Day Grid"}

	units := map[string]bool{}
	seen := map[string]int{}
	for i, r := range records {
		if r.AdminID == "" {
			p.errorf("row %d: empty admin_id", i)
			continue
		}
		units[r.AdminID] = true
		if r.Date.Year() != year {
			p.errorf("row %d: date %s outside year %d", i, r.Date.Format("2006-01-02"), year)
		}
		seen[r.AdminID+"|"+r.Date.Format("2006-01-02")]++
	}

	days := daysInYear(year)
	if want := len(units) * days; len(records) != want {
		p.errorf("row count %d, want %d units x %d days = %d", len(records), len(units), days, want)
	}
	for key, n := range seen {
		if n > 1 {
			p.errorf("unit-day %s appears %d times", key, n)
		}
	}
	return p
}

// ── Phase 2: Statistic Ordering ──

func validateOrdering(year int, records []*domain.DailyRecord) *phase {
	p := &phase{name: "Phase 2: Statistic Ordering"}
	for i, r := range records {
		for _, v := range domain.Variables() {
			min := r.Value(v, domain.StatMin)
			mean := r.Value(v, domain.StatMean)
			max := r.Value(v, domain.StatMax)
			if min == nil || mean == nil || max == nil {
				continue
			}
			if *min > *mean || *mean > *max {
				p.errorf("row %d (%s %s): %s min=%g mean=%g max=%g",
					i, r.AdminID, r.Date.Format("2006-01-02"), v, *min, *mean, *max)
			}
		}
	}
	return p
}

// ── Phase 3: Completeness ──
// Missing values are legal (a unit can sit entirely over masked cells) but a
// partially populated variable means the statistics diverged, and a zero
// processed_at means the record never went through the aggregation stamp.

func validateCompleteness(year int, records []*domain.DailyRecord) *phase {
	p := &phase{name: "Phase 3: Completeness"}

	missing := 0
	for i, r := range records {
		if r.ProcessedAt.IsZero() {
			p.errorf("row %d: processed_at is zero", i)
		}
		for _, v := range domain.Variables() {
			n := 0
			for _, s := range domain.Statistics() {
				if r.Value(v, s) == nil {
					missing++
					n++
				}
			}
			if n != 0 && n != len(domain.Statistics()) {
				p.errorf("row %d (%s %s): %s partially populated (%d of %d statistics missing)",
					i, r.AdminID, r.Date.Format("2006-01-02"), v, n, len(domain.Statistics()))
			}
		}
	}
	if missing > 0 {
		fmt.Printf("  Note: %d missing (unit, day, variable, statistic) values\n", missing)
	}
	return p
}

func daysInYear(year int) int {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(start.AddDate(1, 0, 0).Sub(start).Hours() / 24)
}
