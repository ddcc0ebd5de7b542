package domain

import (
	"errors"
	"fmt"
	"strings"
)

// The pipeline distinguishes four fatal error classes plus non-fatal
// data-quality anomalies. Configuration, geometric, and bookkeeping errors
// abort the whole run; dimensional errors abort only the affected processing
// year. None of them are retried: every operation here is a deterministic
// local computation, so a retry would reproduce the same failure.

// ConfigError is a fatal misconfiguration: CRS mismatch between raster and
// boundaries, a missing required attribute column, unusable paths.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

// GeometryError is a fatal overlay failure: validity repair was attempted
// once and the listed geometry types still produced invalid output.
type GeometryError struct {
	GeomTypes []string
	Err       error
}

func (e *GeometryError) Error() string {
	if len(e.GeomTypes) == 0 {
		return "geometry: " + e.Err.Error()
	}
	return fmt.Sprintf("geometry (%s): %s", strings.Join(e.GeomTypes, ", "), e.Err.Error())
}
func (e *GeometryError) Unwrap() error { return e.Err }

// DimensionError is a dimensional-consistency failure scoped to one
// processing year: variable stacks with mismatched layer counts or calendar
// days with missing hours. Other years are unaffected.
type DimensionError struct {
	Year int
	Err  error
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimensional consistency (year %d): %s", e.Year, e.Err.Error())
}
func (e *DimensionError) Unwrap() error { return e.Err }

// Dimensionf builds a DimensionError from a format string.
func Dimensionf(year int, format string, args ...any) error {
	return &DimensionError{Year: year, Err: fmt.Errorf(format, args...)}
}

// BookkeepingError indicates a logic defect, not bad input: renormalized
// weights not summing to one, or an output row count that does not match
// units × days. It must never be swallowed.
type BookkeepingError struct {
	Err error
}

func (e *BookkeepingError) Error() string { return "bookkeeping: " + e.Err.Error() }
func (e *BookkeepingError) Unwrap() error { return e.Err }

// Bookkeepingf builds a BookkeepingError from a format string.
func Bookkeepingf(format string, args ...any) error {
	return &BookkeepingError{Err: fmt.Errorf(format, args...)}
}

// FatalForRun reports whether err should abort the remaining years too.
// Dimensional errors are year-scoped; everything else fatal is run-scoped.
func FatalForRun(err error) bool {
	var de *DimensionError
	return err != nil && !errors.As(err, &de)
}

// Anomaly is one data-quality violation in the final output: a (unit, day,
// variable) whose statistics break the min ≤ mean ≤ max ordering.
type Anomaly struct {
	AdminID  string
	Date     Date
	Variable Variable
	Min      float64
	Mean     float64
	Max      float64
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s %s %s: min=%g mean=%g max=%g",
		a.AdminID, a.Date.Format("2006-01-02"), a.Variable, a.Min, a.Mean, a.Max)
}

// AnomalyReport collects non-fatal data-quality findings for one processing
// year. The run completes, but the report is part of the deliverable and is
// surfaced in logs and metrics rather than hidden.
type AnomalyReport struct {
	Year               int
	OrderingViolations []Anomaly
	MissingResults     int // (unit, day, variable) triples with no value
}

// Clean reports whether the year produced no anomalies.
func (r *AnomalyReport) Clean() bool {
	return len(r.OrderingViolations) == 0 && r.MissingResults == 0
}

// Examples returns up to n ordering violations for log output.
func (r *AnomalyReport) Examples(n int) []string {
	if n > len(r.OrderingViolations) {
		n = len(r.OrderingViolations)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = r.OrderingViolations[i].String()
	}
	return out
}
