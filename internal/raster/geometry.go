package raster

import (
	"math"
)

// GridGeometry describes the cell layout of a raster: the cell-center
// coordinate axes in file order (ERA5 latitudes usually descend) and the
// coordinate reference system as a proj4 string. Cell edges sit midway
// between adjacent centers; edge cells extend half the adjacent spacing
// outward, so the polygon grid derived from this geometry matches the raster
// cell boundaries exactly.
type GridGeometry struct {
	Lats []float64
	Lons []float64
	Proj string
}

// Rows returns the number of latitude rows.
func (g *GridGeometry) Rows() int { return len(g.Lats) }

// Cols returns the number of longitude columns.
func (g *GridGeometry) Cols() int { return len(g.Lons) }

// Cells returns rows × cols.
func (g *GridGeometry) Cells() int { return len(g.Lats) * len(g.Lons) }

// axisSpacing returns the cell size along an axis of grid center points.
func axisSpacing(points []float64, i int) float64 {
	if len(points) == 1 {
		return 0
	}
	if i == 0 {
		return points[1] - points[0]
	}
	if i == len(points)-1 {
		return points[len(points)-1] - points[len(points)-2]
	}
	return (points[i+1] - points[i-1]) / 2
}

// LatSpacing returns the (signed) cell height at row i.
func (g *GridGeometry) LatSpacing(i int) float64 { return axisSpacing(g.Lats, i) }

// LonSpacing returns the (signed) cell width at column j.
func (g *GridGeometry) LonSpacing(j int) float64 { return axisSpacing(g.Lons, j) }

// CellIndex locates the cell containing the point (lon, lat), in this grid's
// coordinate reference system. ok is false when the point falls outside the
// grid footprint.
func (g *GridGeometry) CellIndex(lon, lat float64) (row, col int, ok bool) {
	row, ok = nearestAxisIndex(g.Lats, lat)
	if !ok {
		return 0, 0, false
	}
	col, ok = nearestAxisIndex(g.Lons, lon)
	if !ok {
		return 0, 0, false
	}
	return row, col, true
}

// nearestAxisIndex finds the axis cell whose center is nearest v, rejecting
// points beyond half a cell outside the outermost centers. Axes are short
// (national extents), so a linear scan is fine and handles irregular spacing
// and either axis direction.
func nearestAxisIndex(points []float64, v float64) (int, bool) {
	best, bestDist := -1, math.Inf(1)
	for i, c := range points {
		if d := math.Abs(c - v); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0, false
	}
	half := math.Abs(axisSpacing(points, best)) / 2
	if bestDist > half+1e-9 {
		return 0, false
	}
	return best, true
}

// Equal reports whether two geometries describe the same grid.
func (g *GridGeometry) Equal(o *GridGeometry) bool {
	if o == nil || g.Proj != o.Proj || len(g.Lats) != len(o.Lats) || len(g.Lons) != len(o.Lons) {
		return false
	}
	for i := range g.Lats {
		if g.Lats[i] != o.Lats[i] {
			return false
		}
	}
	for j := range g.Lons {
		if g.Lons[j] != o.Lons[j] {
			return false
		}
	}
	return true
}
