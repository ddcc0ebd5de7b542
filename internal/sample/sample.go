// Package sample reads daily raster values at extraction points and fills
// points that fall on masked cells from their nearest covered neighbor.
package sample

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/ctessum/geom/index/rtree"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/overlay"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/raster"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/temporal"
)

// Sampled holds one variable's daily statistic series for every extraction
// point. Series[s][i][d] is the day-d value of statistic s at point i; NaN
// marks a missing value.
type Sampled struct {
	Variable domain.Variable
	Days     []domain.Date
	Series   map[domain.Statistic][][]float64
}

// Sampler binds extraction points to raster cells once and reuses the
// binding across variables and years sharing one grid geometry.
type Sampler struct {
	points []overlay.Point
	geo    *raster.GridGeometry
	rows   []int
	cols   []int
	inside []bool
	logger *slog.Logger
}

// NewSampler resolves each point's raster cell. Points outside the raster
// exist only when the boundary file extends past the grid; they sample as
// missing and are candidates for gap filling like masked cells.
func NewSampler(points []overlay.Point, geo *raster.GridGeometry, logger *slog.Logger) *Sampler {
	s := &Sampler{
		points: points,
		geo:    geo,
		rows:   make([]int, len(points)),
		cols:   make([]int, len(points)),
		inside: make([]bool, len(points)),
		logger: logger,
	}
	for i, p := range points {
		s.rows[i], s.cols[i], s.inside[i] = geo.CellIndex(p.X, p.Y)
	}
	return s
}

// Sample reads every statistic layer of the daily stack at every bound point.
// The stack's grid must match the geometry the points were bound to; a year
// whose raster grid moved or resized would otherwise read the wrong cells.
func (s *Sampler) Sample(daily *temporal.DailyStack) (*Sampled, error) {
	if !daily.Geometry.Equal(s.geo) {
		year := 0
		if len(daily.Days) > 0 {
			year = daily.Days[0].Year()
		}
		return nil, domain.Dimensionf(year, "%s daily stack grid differs from the grid the extraction points were bound to", daily.Variable)
	}
	out := &Sampled{
		Variable: daily.Variable,
		Days:     daily.Days,
		Series:   map[domain.Statistic][][]float64{},
	}
	for _, stat := range domain.Statistics() {
		series := make([][]float64, len(s.points))
		for i := range s.points {
			vals := make([]float64, len(daily.Days))
			if !s.inside[i] {
				for d := range vals {
					vals[d] = math.NaN()
				}
			} else {
				for d := range vals {
					vals[d] = daily.Layer(stat, d).Get(s.rows[i], s.cols[i])
				}
			}
			series[i] = vals
		}
		out.Series[stat] = series
	}
	return out, nil
}

// GapFill replaces every uncovered point's series with a copy of its nearest
// covered neighbor's, across all sampled variables at once so a point adopts
// one donor consistently.
//
// Coverage is judged at the reference date of the temperature mean series: a
// point is covered when that value is non-NaN. The land/sea mask is static
// within a year, so one probe date stands in for the whole series. Returns
// the number of points filled.
func (s *Sampler) GapFill(year int, sampled map[domain.Variable]*Sampled, refMonth, refDay int) (int, error) {
	probe := sampled[domain.VarTemperature]
	if probe == nil {
		return 0, domain.Dimensionf(year, "gap fill: no %s series to judge coverage", domain.VarTemperature)
	}
	refIdx := -1
	for d, day := range probe.Days {
		if int(day.Month()) == refMonth && day.Day() == refDay {
			refIdx = d
			break
		}
	}
	if refIdx < 0 {
		return 0, domain.Dimensionf(year, "gap fill: reference date %02d-%02d not in daily calendar", refMonth, refDay)
	}

	ref := probe.Series[domain.StatMean]
	covered := rtree.NewTree(25, 50)
	nCovered := 0
	for i := range s.points {
		if !math.IsNaN(ref[i][refIdx]) {
			covered.Insert(&indexedPoint{Point: s.points[i], idx: i})
			nCovered++
		}
	}
	if nCovered == 0 {
		return 0, domain.Dimensionf(year, "gap fill: no extraction point has raster coverage")
	}

	filled := 0
	for i := range s.points {
		if !math.IsNaN(ref[i][refIdx]) {
			continue
		}
		nn := covered.NearestNeighbor(s.points[i].Point)
		donor, ok := nn.(*indexedPoint)
		if !ok {
			return 0, fmt.Errorf("gap fill: unexpected neighbor type %T", nn)
		}
		for _, sm := range sampled {
			for _, stat := range domain.Statistics() {
				copy(sm.Series[stat][i], sm.Series[stat][donor.idx])
			}
		}
		s.logger.Debug("gap filled extraction point",
			"admin_id", s.points[i].AdminID,
			"donor_admin_id", donor.AdminID,
		)
		filled++
	}
	return filled, nil
}

type indexedPoint struct {
	overlay.Point
	idx int
}
