package domain

import (
	"fmt"
	"time"
)

// Variable identifies one of the aggregated climate variables. The source
// variables use their ERA5 short names; derived metrics use project names.
type Variable string

const (
	VarTemperature Variable = "t2m"
	VarDewPoint    Variable = "d2m"
	VarSkinTemp    Variable = "skt"
	VarHeatIndex   Variable = "heat_index"
	VarHumidex     Variable = "humidex"
)

// Variables returns all aggregated variables in output column order.
func Variables() []Variable {
	return []Variable{VarTemperature, VarDewPoint, VarSkinTemp, VarHeatIndex, VarHumidex}
}

// Statistic is a daily reduction applied per cell across one local calendar day.
type Statistic string

const (
	StatMean Statistic = "mean"
	StatMin  Statistic = "min"
	StatMax  Statistic = "max"
)

// Statistics returns all daily statistics in output column order.
func Statistics() []Statistic {
	return []Statistic{StatMean, StatMin, StatMax}
}

// Date is a local calendar day. It marshals as yyyy-mm-dd in CSV output.
type Date struct {
	time.Time
}

// NewDate builds a Date from year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// MarshalCSV implements the gocsv field marshaller.
func (d Date) MarshalCSV() (string, error) {
	return d.Format("2006-01-02"), nil
}

// UnmarshalCSV implements the gocsv field unmarshaller.
func (d *Date) UnmarshalCSV(s string) error {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// DailyRecord is one output row: the daily mean/min/max of every variable for
// a single administrative unit on a single local calendar day. Value columns
// are pointers so that a missing result stays distinguishable from zero.
type DailyRecord struct {
	AdminID  string `csv:"admin_id"`
	Admin1ID string `csv:"admin1_id"`
	Admin0ID string `csv:"admin0_id"`
	Date     Date   `csv:"date"`

	T2MMean *float64 `csv:"t2m_mean"`
	T2MMin  *float64 `csv:"t2m_min"`
	T2MMax  *float64 `csv:"t2m_max"`

	D2MMean *float64 `csv:"d2m_mean"`
	D2MMin  *float64 `csv:"d2m_min"`
	D2MMax  *float64 `csv:"d2m_max"`

	SktMean *float64 `csv:"skt_mean"`
	SktMin  *float64 `csv:"skt_min"`
	SktMax  *float64 `csv:"skt_max"`

	HIMean *float64 `csv:"heat_index_mean"`
	HIMin  *float64 `csv:"heat_index_min"`
	HIMax  *float64 `csv:"heat_index_max"`

	HxMean *float64 `csv:"humidex_mean"`
	HxMin  *float64 `csv:"humidex_min"`
	HxMax  *float64 `csv:"humidex_max"`

	ProcessedAt time.Time `csv:"processed_at"`
}

// NewDailyRecord creates a record stamped with the package clock, so that
// fixture generation and tests can freeze ProcessedAt via SetClock.
func NewDailyRecord(adminID, admin1ID, admin0ID string, date Date) *DailyRecord {
	return &DailyRecord{
		AdminID:     adminID,
		Admin1ID:    admin1ID,
		Admin0ID:    admin0ID,
		Date:        date,
		ProcessedAt: clock.Now().UTC(),
	}
}

// Value returns the cell for the given variable and statistic, or nil when
// that result is missing.
func (r *DailyRecord) Value(v Variable, s Statistic) *float64 {
	return *r.cell(v, s)
}

// SetValue stores a result for the given variable and statistic.
func (r *DailyRecord) SetValue(v Variable, s Statistic, value float64) {
	*r.cell(v, s) = &value
}

func (r *DailyRecord) cell(v Variable, s Statistic) **float64 {
	switch v {
	case VarTemperature:
		switch s {
		case StatMean:
			return &r.T2MMean
		case StatMin:
			return &r.T2MMin
		case StatMax:
			return &r.T2MMax
		}
	case VarDewPoint:
		switch s {
		case StatMean:
			return &r.D2MMean
		case StatMin:
			return &r.D2MMin
		case StatMax:
			return &r.D2MMax
		}
	case VarSkinTemp:
		switch s {
		case StatMean:
			return &r.SktMean
		case StatMin:
			return &r.SktMin
		case StatMax:
			return &r.SktMax
		}
	case VarHeatIndex:
		switch s {
		case StatMean:
			return &r.HIMean
		case StatMin:
			return &r.HIMin
		case StatMax:
			return &r.HIMax
		}
	case VarHumidex:
		switch s {
		case StatMean:
			return &r.HxMean
		case StatMin:
			return &r.HxMin
		case StatMax:
			return &r.HxMax
		}
	}
	panic(fmt.Sprintf("unknown variable/statistic %q/%q", v, s))
}
