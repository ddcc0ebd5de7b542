// Package aggregate collapses per-point daily series into one output record
// per administrative unit and local day, weighting each extraction point by
// its sub-polygon's share of the unit's area.
package aggregate

import (
	"math"
	"sort"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/overlay"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/sample"
)

// Aggregator groups extraction points by administrative unit once and reuses
// the grouping across years.
type Aggregator struct {
	units []unitPoints // sorted by admin ID for deterministic row order
	// WeightTolerance bounds how far renormalized weights may drift from
	// summing to one before the run is aborted as a bookkeeping failure.
	WeightTolerance float64
}

type unitPoints struct {
	adminID  string
	admin1ID string
	admin0ID string
	idx      []int // indexes into the point slice
	weights  []float64
}

// NewAggregator groups points by unit. Weights within each unit are the
// sub-polygon area shares computed at overlay time and sum to one before any
// missing-value renormalization.
func NewAggregator(points []overlay.Point, weightTolerance float64) *Aggregator {
	byUnit := map[string]*unitPoints{}
	for i, p := range points {
		u, ok := byUnit[p.AdminID]
		if !ok {
			u = &unitPoints{adminID: p.AdminID, admin1ID: p.Admin1ID, admin0ID: p.Admin0ID}
			byUnit[p.AdminID] = u
		}
		u.idx = append(u.idx, i)
		u.weights = append(u.weights, p.Weight)
	}
	a := &Aggregator{WeightTolerance: weightTolerance}
	for _, u := range byUnit {
		a.units = append(a.units, *u)
	}
	sort.Slice(a.units, func(i, j int) bool { return a.units[i].adminID < a.units[j].adminID })
	return a
}

// Units returns the number of administrative units rows are produced for.
func (a *Aggregator) Units() int { return len(a.units) }

// Aggregate produces one record per (unit, day) from the sampled series,
// then audits the output: the row count must equal units x days exactly, and
// every populated (variable, day) triple must satisfy min <= mean <= max.
// Ordering violations and missing triples go into the returned report rather
// than failing the year; a weight-sum drift beyond tolerance is a
// BookkeepingError and does fail the run.
func (a *Aggregator) Aggregate(year int, sampled map[domain.Variable]*sample.Sampled) ([]*domain.DailyRecord, *domain.AnomalyReport, error) {
	var days []domain.Date
	for _, sm := range sampled {
		days = sm.Days
		break
	}

	report := &domain.AnomalyReport{Year: year}
	records := make([]*domain.DailyRecord, 0, len(a.units)*len(days))
	for _, u := range a.units {
		for d, day := range days {
			rec := domain.NewDailyRecord(u.adminID, u.admin1ID, u.admin0ID, day)
			for _, v := range domain.Variables() {
				sm := sampled[v]
				if sm == nil {
					report.MissingResults += len(domain.Statistics())
					continue
				}
				for _, stat := range domain.Statistics() {
					val, ok, err := a.weightedValue(u, sm.Series[stat], d)
					if err != nil {
						return nil, nil, err
					}
					if !ok {
						report.MissingResults++
						continue
					}
					rec.SetValue(v, stat, val)
				}
				auditOrdering(rec, v, report)
			}
			records = append(records, rec)
		}
	}

	if want := len(a.units) * len(days); len(records) != want {
		return nil, nil, domain.Bookkeepingf("year %d: produced %d records, want %d units x %d days = %d",
			year, len(records), len(a.units), len(days), want)
	}
	return records, report, nil
}

// weightedValue computes the area-weighted mean of one day's values over the
// unit's points, renormalizing weights over the points that carry a value.
// ok is false when every point is missing.
func (a *Aggregator) weightedValue(u unitPoints, series [][]float64, day int) (val float64, ok bool, err error) {
	var sum, wsum float64
	for k, i := range u.idx {
		v := series[i][day]
		if math.IsNaN(v) {
			continue
		}
		sum += u.weights[k] * v
		wsum += u.weights[k]
	}
	if wsum == 0 {
		return 0, false, nil
	}
	// Weights over all of a unit's points sum to one by construction, so the
	// renormalized weights w/wsum must too. Drift past tolerance means the
	// overlay's area bookkeeping is broken and no output can be trusted.
	var check float64
	for k, i := range u.idx {
		if !math.IsNaN(series[i][day]) {
			check += u.weights[k] / wsum
		}
	}
	if math.Abs(check-1) > a.WeightTolerance {
		return 0, false, domain.Bookkeepingf("unit %s day %d: renormalized weights sum to %.12f", u.adminID, day, check)
	}
	return sum / wsum, true, nil
}

// auditOrdering records a violation when a fully populated variable breaks
// min <= mean <= max. Partially missing triples are censused elsewhere and
// not checked for ordering.
func auditOrdering(rec *domain.DailyRecord, v domain.Variable, report *domain.AnomalyReport) {
	min := rec.Value(v, domain.StatMin)
	mean := rec.Value(v, domain.StatMean)
	max := rec.Value(v, domain.StatMax)
	if min == nil || mean == nil || max == nil {
		return
	}
	if *min <= *mean && *mean <= *max {
		return
	}
	report.OrderingViolations = append(report.OrderingViolations, domain.Anomaly{
		AdminID:  rec.AdminID,
		Date:     rec.Date,
		Variable: v,
		Min:      *min,
		Mean:     *mean,
		Max:      *max,
	})
}
