// Package temporal rebases hourly raster stacks from UTC onto the study
// region's local calendar and reduces them to daily per-cell statistics.
package temporal

import (
	"math"
	"time"

	"bitbucket.org/ctessum/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/raster"
)

const hoursPerDay = 24

// DailyStack holds one variable's daily statistic layers for a full local
// calendar year. Min and max are per-cell reductions, full raster layers of
// their own, not scalar summaries.
type DailyStack struct {
	Variable domain.Variable
	Geometry *raster.GridGeometry
	Days     []domain.Date
	stats    map[domain.Statistic][]*sparse.DenseArray
}

// Layer returns the day-i layer of the given statistic.
func (d *DailyStack) Layer(s domain.Statistic, i int) *sparse.DenseArray {
	return d.stats[s][i]
}

// Reduce shifts every timestamp of the hourly stack by the fixed zone offset,
// restricts the result to year's local calendar [Jan 1, next Jan 1), and
// reduces each local day to per-cell mean, min, and max.
//
// Every local day must contribute exactly 24 hourly layers. A short day means
// the look-behind or look-ahead hours from the adjacent UTC year were not
// supplied, and the year is rejected rather than aggregated from a truncated
// first or last day. Leap years fall out of the calendar partitioning.
func Reduce(year int, s *raster.Stack, utcOffsetHours int) (*DailyStack, error) {
	offset := time.Duration(utcOffsetHours) * time.Hour
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, 0)

	out := &DailyStack{
		Variable: s.Variable,
		Geometry: s.Geometry,
		stats:    map[domain.Statistic][]*sparse.DenseArray{},
	}

	var dayLayers []*sparse.DenseArray
	var curDay time.Time

	flush := func() error {
		if len(dayLayers) == 0 {
			return nil
		}
		if len(dayLayers) != hoursPerDay {
			return domain.Dimensionf(year, "%s: local day %s has %d hourly layers, want %d",
				s.Variable, curDay.Format("2006-01-02"), len(dayLayers), hoursPerDay)
		}
		mean, min, max := reduceDay(dayLayers)
		out.Days = append(out.Days, domain.Date{Time: curDay})
		out.stats[domain.StatMean] = append(out.stats[domain.StatMean], mean)
		out.stats[domain.StatMin] = append(out.stats[domain.StatMin], min)
		out.stats[domain.StatMax] = append(out.stats[domain.StatMax], max)
		return nil
	}

	for _, l := range s.Layers {
		local := l.Time.Add(offset)
		if local.Before(yearStart) || !local.Before(yearEnd) {
			continue
		}
		day := local.Truncate(24 * time.Hour)
		if !day.Equal(curDay) {
			if err := flush(); err != nil {
				return nil, err
			}
			curDay = day
			dayLayers = dayLayers[:0]
		}
		dayLayers = append(dayLayers, l.Data)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	wantDays := int(yearEnd.Sub(yearStart).Hours()) / hoursPerDay
	if len(out.Days) != wantDays {
		return nil, domain.Dimensionf(year, "%s: reduced to %d local days, want %d",
			s.Variable, len(out.Days), wantDays)
	}
	return out, nil
}

// reduceDay computes the per-cell mean, min, and max across one day's hourly
// layers. NaN cells (ocean mask) propagate: a cell missing any hour is
// missing for the day.
func reduceDay(layers []*sparse.DenseArray) (mean, min, max *sparse.DenseArray) {
	shape := layers[0].Shape
	mean = sparse.ZerosDense(shape...)
	min = sparse.ZerosDense(shape...)
	max = sparse.ZerosDense(shape...)

	copy(min.Elements, layers[0].Elements)
	copy(max.Elements, layers[0].Elements)
	for _, l := range layers {
		floats.Add(mean.Elements, l.Elements)
	}
	floats.Scale(1/float64(len(layers)), mean.Elements)

	for _, l := range layers[1:] {
		for k, v := range l.Elements {
			if math.IsNaN(v) {
				min.Elements[k] = math.NaN()
				max.Elements[k] = math.NaN()
				continue
			}
			if v < min.Elements[k] {
				min.Elements[k] = v
			}
			if v > max.Elements[k] {
				max.Elements[k] = v
			}
		}
	}
	return mean, min, max
}

// VerifyDays checks that every variable's daily stack covers the same local
// days. A mismatch terminates the year with a diagnostic instead of silently
// misaligning variables at the sampling stage.
func VerifyDays(year int, dailies map[domain.Variable]*DailyStack) error {
	var ref *DailyStack
	for _, d := range dailies {
		ref = d
		break
	}
	for v, d := range dailies {
		if len(d.Days) != len(ref.Days) {
			return domain.Dimensionf(year, "variable %s reduced to %d days, others to %d",
				v, len(d.Days), len(ref.Days))
		}
		for i := range d.Days {
			if !d.Days[i].Equal(ref.Days[i].Time) {
				return domain.Dimensionf(year, "variable %s day %d is %s, others have %s",
					v, i, d.Days[i].Format("2006-01-02"), ref.Days[i].Format("2006-01-02"))
			}
		}
	}
	return nil
}
