package overlay

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
)

// Point is one extraction point: an interior representative of a retained
// sub-polygon, carrying the sub-polygon's administrative identity and its
// share of the unit's total retained area. The embedded location makes a
// Point a geom.Geom, so point sets index directly into an R-tree the same
// way Unit does through its embedded polygon.
type Point struct {
	SubPolygonID int
	AdminID      string
	Admin1ID     string
	Admin0ID     string
	Weight       float64
	geom.Point
}

// ExtractionPoints places one interior point per sub-polygon and computes
// each point's weight as its sub-polygon's area divided by the unit's total
// retained area. For every administrative ID the weights sum to 1 before any
// missing-data adjustment; the aggregation stage renormalizes per day over
// the points that actually have data.
func ExtractionPoints(subs []SubPolygon) ([]Point, error) {
	totals := make(map[string]float64)
	for _, s := range subs {
		totals[s.AdminID] += s.Area
	}

	points := make([]Point, 0, len(subs))
	for _, s := range subs {
		loc, err := pointOnSurface(s.Polygonal)
		if err != nil {
			return nil, fmt.Errorf("sub-polygon %d (unit %s): %w", s.ID, s.AdminID, err)
		}
		points = append(points, Point{
			SubPolygonID: s.ID,
			AdminID:      s.AdminID,
			Admin1ID:     s.Admin1ID,
			Admin0ID:     s.Admin0ID,
			Weight:       s.Area / totals[s.AdminID],
			Point:        loc,
		})
	}
	return points, nil
}

// pointOnSurface returns a point guaranteed to lie inside the polygon. The
// centroid works for convex pieces; for non-convex ones (a centroid can fall
// in a notch or a hole) it falls back to a deterministic interior search over
// a refining lattice within the bounding box.
func pointOnSurface(p geom.Polygonal) (geom.Point, error) {
	c := p.Centroid()
	if c.Within(p) == geom.Inside {
		return c, nil
	}

	b := p.Bounds()
	w, h := b.Max.X-b.Min.X, b.Max.Y-b.Min.Y
	for n := 3; n <= 129; n = n*2 + 1 {
		for i := 1; i < n; i++ {
			y := b.Min.Y + h*float64(i)/float64(n)
			for j := 1; j < n; j++ {
				cand := geom.Point{X: b.Min.X + w*float64(j)/float64(n), Y: y}
				if cand.Within(p) == geom.Inside {
					return cand, nil
				}
			}
		}
	}
	return geom.Point{X: math.NaN(), Y: math.NaN()},
		&domain.GeometryError{Err: fmt.Errorf("no interior point found within bounds %v", b)}
}
