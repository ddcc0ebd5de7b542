package temporal_test

import (
	"math"
	"testing"
	"time"

	"bitbucket.org/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/raster"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/temporal"
)

func singleCellGeometry() *raster.GridGeometry {
	return &raster.GridGeometry{
		Lats: []float64{10.0, 10.25},
		Lons: []float64{20.0, 20.25},
		Proj: "+proj=longlat +datum=WGS84 +no_defs",
	}
}

// hourlyStack builds n hourly layers starting at start, with every cell of
// layer i holding value(i).
func hourlyStack(geo *raster.GridGeometry, start time.Time, n int, value func(i int) float64) *raster.Stack {
	s := &raster.Stack{Variable: domain.VarTemperature, Geometry: geo}
	for i := 0; i < n; i++ {
		d := sparse.ZerosDense(geo.Rows(), geo.Cols())
		for k := range d.Elements {
			d.Elements[k] = value(i)
		}
		s.Layers = append(s.Layers, raster.Layer{Time: start.Add(time.Duration(i) * time.Hour), Data: d})
	}
	return s
}

func TestReduce_RebasesToLocalCalendar(t *testing.T) {
	geo := singleCellGeometry()
	// UTC+3: the local year 2021 spans UTC 2020-12-31T21:00 through
	// 2021-12-31T20:00.
	start := time.Date(2020, time.December, 31, 21, 0, 0, 0, time.UTC)
	s := hourlyStack(geo, start, 365*24, func(i int) float64 { return float64(i) })

	daily, err := temporal.Reduce(2021, s, 3)
	require.NoError(t, err)

	require.Len(t, daily.Days, 365)
	assert.Equal(t, domain.NewDate(2021, time.January, 1), daily.Days[0])
	assert.Equal(t, domain.NewDate(2021, time.December, 31), daily.Days[364])

	// The first local day is built from hourly values 0..23.
	assert.InDelta(t, 11.5, daily.Layer(domain.StatMean, 0).Elements[0], 1e-12)
	assert.InDelta(t, 0, daily.Layer(domain.StatMin, 0).Elements[0], 1e-12)
	assert.InDelta(t, 23, daily.Layer(domain.StatMax, 0).Elements[0], 1e-12)

	// The last local day is built from the final 24 values.
	last := 365*24 - 1
	assert.InDelta(t, float64(last), daily.Layer(domain.StatMax, 364).Elements[0], 1e-12)
}

func TestReduce_IgnoresHoursOutsideLocalYear(t *testing.T) {
	geo := singleCellGeometry()
	// Two whole UTC years concatenated, zero offset: only 2019 is reduced.
	start := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	s := hourlyStack(geo, start, 2*365*24, func(i int) float64 { return 20 })

	daily, err := temporal.Reduce(2019, s, 0)
	require.NoError(t, err)
	assert.Len(t, daily.Days, 365)
}

func TestReduce_LeapYear(t *testing.T) {
	geo := singleCellGeometry()
	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	s := hourlyStack(geo, start, 366*24, func(i int) float64 { return 20 })

	daily, err := temporal.Reduce(2020, s, 0)
	require.NoError(t, err)
	assert.Len(t, daily.Days, 366)
	assert.Equal(t, domain.NewDate(2020, time.February, 29), daily.Days[59])
}

func TestReduce_ConstantFieldRoundTrip(t *testing.T) {
	geo := singleCellGeometry()
	start := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	s := hourlyStack(geo, start, 365*24, func(i int) float64 { return 21.5 })

	daily, err := temporal.Reduce(2019, s, 0)
	require.NoError(t, err)
	for _, stat := range domain.Statistics() {
		for d := range daily.Days {
			assert.InDelta(t, 21.5, daily.Layer(stat, d).Elements[0], 1e-12)
		}
	}
}

func TestReduce_RejectsIncompleteDay(t *testing.T) {
	geo := singleCellGeometry()
	// Missing the first hour of the year: day one has 23 layers.
	start := time.Date(2019, time.January, 1, 1, 0, 0, 0, time.UTC)
	s := hourlyStack(geo, start, 365*24-1, func(i int) float64 { return 20 })

	_, err := temporal.Reduce(2019, s, 0)
	require.Error(t, err)
	var de *domain.DimensionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2019, de.Year)
	assert.Contains(t, err.Error(), "23 hourly layers")
}

func TestReduce_RejectsMissingLookBehind(t *testing.T) {
	geo := singleCellGeometry()
	// UTC+3 needs the prior year's last three hours; starting at the UTC year
	// boundary leaves the first local day short.
	start := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	s := hourlyStack(geo, start, 365*24, func(i int) float64 { return 20 })

	_, err := temporal.Reduce(2021, s, 3)
	require.Error(t, err)
	var de *domain.DimensionError
	assert.ErrorAs(t, err, &de)
}

func TestReduce_NaNPropagates(t *testing.T) {
	geo := singleCellGeometry()
	start := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	s := hourlyStack(geo, start, 365*24, func(i int) float64 {
		if i == 30 { // one masked hour on January 2nd
			return math.NaN()
		}
		return 20
	})

	daily, err := temporal.Reduce(2019, s, 0)
	require.NoError(t, err)
	for _, stat := range domain.Statistics() {
		assert.True(t, math.IsNaN(daily.Layer(stat, 1).Elements[0]), "stat %s", stat)
		assert.InDelta(t, 20, daily.Layer(stat, 0).Elements[0], 1e-12)
	}
}

func TestVerifyDays(t *testing.T) {
	geo := singleCellGeometry()
	start := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

	full, err := temporal.Reduce(2019, hourlyStack(geo, start, 365*24, func(int) float64 { return 20 }), 0)
	require.NoError(t, err)

	require.NoError(t, temporal.VerifyDays(2019, map[domain.Variable]*temporal.DailyStack{
		domain.VarTemperature: full,
		domain.VarDewPoint:    full,
	}))
}
