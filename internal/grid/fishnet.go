// Package grid converts raster cell geometry into vector polygons: a fishnet
// whose cells exactly match the raster's cell boundaries, so overlay results
// can be traced back to raster cells by ID.
package grid

import (
	"math"

	"github.com/ctessum/geom"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/raster"
)

// Cell is one fishnet polygon. IDs are row-major: row*cols + col.
type Cell struct {
	ID int
	geom.Polygon
}

// Fishnet builds the polygon grid congruent with the raster geometry: exactly
// rows × cols axis-aligned quadrilaterals whose edges sit midway between
// adjacent cell centers, with edge cells extending half the adjacent spacing
// outward. The grid is in the raster's coordinate reference system and is
// built once per run; a full-resolution polygon grid is not cheap, so the
// result is reused across processing years.
func Fishnet(geo *raster.GridGeometry) []Cell {
	rows, cols := geo.Rows(), geo.Cols()
	cells := make([]Cell, 0, rows*cols)
	for i := 0; i < rows; i++ {
		halfDy := math.Abs(geo.LatSpacing(i)) / 2
		yMin, yMax := geo.Lats[i]-halfDy, geo.Lats[i]+halfDy
		for j := 0; j < cols; j++ {
			halfDx := math.Abs(geo.LonSpacing(j)) / 2
			xMin, xMax := geo.Lons[j]-halfDx, geo.Lons[j]+halfDx
			cells = append(cells, Cell{
				ID: i*cols + j,
				Polygon: geom.Polygon{{
					{X: xMin, Y: yMin},
					{X: xMax, Y: yMin},
					{X: xMax, Y: yMax},
					{X: xMin, Y: yMax},
				}},
			})
		}
	}
	return cells
}

// Extent returns the rectangle covering the whole fishnet. The fishnet is
// contiguous, so this equals the union of all cells without paying for a
// polygon union.
func Extent(geo *raster.GridGeometry) geom.Polygon {
	latMin, latMax := axisExtent(geo.Lats, geo.LatSpacing)
	lonMin, lonMax := axisExtent(geo.Lons, geo.LonSpacing)
	return geom.Polygon{{
		{X: lonMin, Y: latMin},
		{X: lonMax, Y: latMin},
		{X: lonMax, Y: latMax},
		{X: lonMin, Y: latMax},
	}}
}

func axisExtent(points []float64, spacing func(int) float64) (min, max float64) {
	first := points[0]
	last := points[len(points)-1]
	firstHalf := math.Abs(spacing(0)) / 2
	lastHalf := math.Abs(spacing(len(points)-1)) / 2
	min = math.Min(first-firstHalf, last-lastHalf)
	max = math.Max(first+firstHalf, last+lastHalf)
	return min, max
}
