package raster_test

import (
	"testing"
	"time"

	"bitbucket.org/ctessum/sparse"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/raster"
)

// ERA5 latitudes descend in file order.
func testGeometry() *raster.GridGeometry {
	return &raster.GridGeometry{
		Lats: []float64{10.50, 10.25, 10.00},
		Lons: []float64{20.00, 20.25, 20.50, 20.75},
		Proj: "+proj=longlat +datum=WGS84 +no_defs",
	}
}

func TestGridGeometry_Dimensions(t *testing.T) {
	geo := testGeometry()
	assert.Equal(t, 3, geo.Rows())
	assert.Equal(t, 4, geo.Cols())
	assert.Equal(t, 12, geo.Cells())
	assert.InDelta(t, -0.25, geo.LatSpacing(1), 1e-12)
	assert.InDelta(t, 0.25, geo.LonSpacing(2), 1e-12)
}

func TestGridGeometry_CellIndex(t *testing.T) {
	geo := testGeometry()

	// On a cell center.
	row, col, ok := geo.CellIndex(20.25, 10.25)
	require.True(t, ok)
	assert.Equal(t, 1, row)
	assert.Equal(t, 1, col)

	// Inside a cell but off-center still resolves to the nearest center.
	row, col, ok = geo.CellIndex(20.06, 10.46)
	require.True(t, ok)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)

	// Half a cell beyond the outermost center is outside the footprint.
	_, _, ok = geo.CellIndex(21.0, 10.25)
	assert.False(t, ok)
	_, _, ok = geo.CellIndex(20.25, 9.80)
	assert.False(t, ok)
}

func TestGridGeometry_Equal(t *testing.T) {
	a, b := testGeometry(), testGeometry()
	assert.True(t, a.Equal(b))

	b.Lons[0] += 0.25
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}

func TestStack_Append(t *testing.T) {
	geo := testGeometry()
	t0 := time.Date(2019, time.December, 31, 22, 0, 0, 0, time.UTC)
	a := stackAt(geo, t0, 2)
	b := stackAt(geo, t0.Add(2*time.Hour), 2)

	require.NoError(t, a.Append(b))
	require.Len(t, a.Layers, 4)

	want := []time.Time{t0, t0.Add(time.Hour), t0.Add(2 * time.Hour), t0.Add(3 * time.Hour)}
	if diff := cmp.Diff(want, a.Timestamps()); diff != "" {
		t.Fatalf("timestamps mismatch (-want +got):\n%s", diff)
	}
}

func TestStack_Append_RejectsOverlap(t *testing.T) {
	geo := testGeometry()
	t0 := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	a := stackAt(geo, t0, 3)
	b := stackAt(geo, t0.Add(2*time.Hour), 2) // first layer duplicates a's last

	err := a.Append(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not follow")
}

func TestStack_Append_RejectsGeometryMismatch(t *testing.T) {
	t0 := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	a := stackAt(testGeometry(), t0, 1)

	other := testGeometry()
	other.Lats = other.Lats[:2]
	b := stackAt(other, t0.Add(time.Hour), 1)

	assert.Error(t, a.Append(b))
}

func TestVerifyAligned(t *testing.T) {
	geo := testGeometry()
	t0 := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

	stacks := map[domain.Variable]*raster.Stack{
		domain.VarTemperature: stackAt(geo, t0, 3),
		domain.VarDewPoint:    stackAt(geo, t0, 3),
	}
	require.NoError(t, raster.VerifyAligned(2020, stacks))

	stacks[domain.VarDewPoint] = stackAt(geo, t0, 2)
	err := raster.VerifyAligned(2020, stacks)
	require.Error(t, err)

	var de *domain.DimensionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2020, de.Year)
	assert.False(t, domain.FatalForRun(err))
}

func stackAt(geo *raster.GridGeometry, t0 time.Time, n int) *raster.Stack {
	s := &raster.Stack{Variable: domain.VarTemperature, Geometry: geo}
	for i := 0; i < n; i++ {
		s.Layers = append(s.Layers, raster.Layer{
			Time: t0.Add(time.Duration(i) * time.Hour),
			Data: sparse.ZerosDense(geo.Rows(), geo.Cols()),
		})
	}
	return s
}
