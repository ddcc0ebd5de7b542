package grid_test

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/grid"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/raster"
)

func testGeometry() *raster.GridGeometry {
	// Descending latitudes, as ERA5 files store them.
	return &raster.GridGeometry{
		Lats: []float64{10.50, 10.25, 10.00},
		Lons: []float64{20.00, 20.25},
		Proj: "+proj=longlat +datum=WGS84 +no_defs",
	}
}

func TestFishnet(t *testing.T) {
	geo := testGeometry()
	cells := grid.Fishnet(geo)
	require.Len(t, cells, geo.Cells())

	// Row-major IDs.
	for k, c := range cells {
		assert.Equal(t, k, c.ID)
	}

	// Every cell covers exactly one 0.25 x 0.25 footprint.
	for _, c := range cells {
		assert.InDelta(t, 0.0625, c.Polygon.Area(), 1e-12, "cell %d", c.ID)
	}

	// Cell 0 is row 0, col 0: centered on (20.00, 10.50).
	b := cells[0].Polygon.Bounds()
	assert.InDelta(t, 19.875, b.Min.X, 1e-12)
	assert.InDelta(t, 20.125, b.Max.X, 1e-12)
	assert.InDelta(t, 10.375, b.Min.Y, 1e-12)
	assert.InDelta(t, 10.625, b.Max.Y, 1e-12)

	// The raster cell containing each fishnet centroid is the cell itself.
	for _, c := range cells {
		cent := c.Polygon.Centroid()
		row, col, ok := geo.CellIndex(cent.X, cent.Y)
		require.True(t, ok)
		assert.Equal(t, c.ID, row*geo.Cols()+col)
	}
}

func TestFishnet_CellsTile(t *testing.T) {
	geo := testGeometry()
	cells := grid.Fishnet(geo)
	extent := grid.Extent(geo)

	var total float64
	for _, c := range cells {
		total += c.Polygon.Area()
	}
	assert.InDelta(t, extent.Area(), total, 1e-9)
}

func TestExtent(t *testing.T) {
	extent := grid.Extent(testGeometry())
	b := extent.Bounds()
	assert.InDelta(t, 19.875, b.Min.X, 1e-12)
	assert.InDelta(t, 20.375, b.Max.X, 1e-12)
	assert.InDelta(t, 9.875, b.Min.Y, 1e-12)
	assert.InDelta(t, 10.625, b.Max.Y, 1e-12)

	// A point well inside the grid is inside the extent.
	assert.Equal(t, geom.Inside, geom.Point{X: 20.1, Y: 10.2}.Within(extent))
}
