package overlay

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/grid"
)

// SubPolygon is one piece of the grid × boundary overlay: a cell∩unit
// intersection, a cell remainder outside every unit, or a unit remainder
// outside the grid footprint.
type SubPolygon struct {
	ID       int
	CellID   int    // -1 for pieces outside the grid footprint
	AdminID  string // "" for pieces outside every administrative unit
	Admin1ID string
	Admin0ID string
	Area     float64
	geom.Polygonal
}

// Result is the validated overlay output plus drop diagnostics.
type Result struct {
	Retained          []SubPolygon
	UnassignedDropped int // pieces with no administrative ID (ocean, uncovered land)
	SliversDropped    int // pieces below the area threshold (numerical noise)
}

// Overlay computes the three-way decomposition of the fishnet and the
// administrative set: grid∖boundaries, boundaries∖grid, and
// grid∩boundaries. The three piece sets are disjoint and concatenated, so
// areas present in only one layer stay visible and are dropped explicitly
// rather than silently absorbed. Inputs must already share a coordinate
// reference system (LoadBoundaries guarantees this for the boundary side).
//
// Geometry repair runs on both inputs before the overlay, and once more,
// grouped by geometry type, if the overlay itself produces invalid pieces.
// A piece that stays invalid after that retry aborts the run: continuing
// would corrupt every aggregate built on it, and geometric invalidity means
// a malformed boundary file that no retry can fix.
func Overlay(cells []grid.Cell, extent geom.Polygon, units []Unit, sliverThreshold float64) (*Result, error) {
	repairedUnits := make([]Unit, len(units))
	tree := rtree.NewTree(25, 50)
	for i, u := range units {
		u.Polygonal = repair(u.Polygonal)
		repairedUnits[i] = u
		tree.Insert(&repairedUnits[i])
	}

	var pieces []SubPolygon

	// grid∩boundaries and grid∖boundaries, cell by cell.
	for _, cell := range cells {
		cellPoly := repair(cell.Polygon).(geom.Polygonal)

		var covered geom.Polygonal
		for _, item := range sortedCandidates(tree, cellPoly.Bounds()) {
			u := item.(*Unit)
			isect := cellPoly.Intersection(u.Polygonal)
			if isect == nil || isect.Area() == 0 {
				continue
			}
			pieces = append(pieces, SubPolygon{
				CellID:    cell.ID,
				AdminID:   u.ID,
				Admin1ID:  u.Admin1ID,
				Admin0ID:  u.Admin0ID,
				Polygonal: isect,
			})
			if covered == nil {
				covered = isect
			} else {
				covered = covered.Union(isect)
			}
		}

		remainder := cellPoly
		if covered != nil {
			remainder = cellPoly.Difference(covered)
		}
		if remainder != nil && remainder.Area() > 0 {
			pieces = append(pieces, SubPolygon{CellID: cell.ID, Polygonal: remainder})
		}
	}

	// boundaries∖grid: unit area falling outside the raster footprint. The
	// fishnet is contiguous, so its union is the extent rectangle.
	for i := range repairedUnits {
		u := &repairedUnits[i]
		outside := u.Polygonal.Difference(extent)
		if outside != nil && outside.Area() > 0 {
			pieces = append(pieces, SubPolygon{
				CellID:    -1,
				AdminID:   u.ID,
				Admin1ID:  u.Admin1ID,
				Admin0ID:  u.Admin0ID,
				Polygonal: outside,
			})
		}
	}

	for i := range pieces {
		pieces[i].ID = i
		pieces[i].Area = pieces[i].Polygonal.Area()
	}

	if err := repairInvalid(pieces); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, p := range pieces {
		switch {
		case p.AdminID == "":
			res.UnassignedDropped++
		case p.Area < sliverThreshold:
			res.SliversDropped++
		default:
			res.Retained = append(res.Retained, p)
		}
	}
	if len(res.Retained) == 0 {
		return nil, &domain.GeometryError{
			Err: fmt.Errorf("overlay retained no sub-polygons: boundaries and grid do not intersect"),
		}
	}
	return res, nil
}

// repairInvalid detects pieces the overlay left invalid, re-groups them by
// geometry type, and retries repair per group. Pieces still invalid after
// the retry are a fatal pipeline error with the offending types listed.
func repairInvalid(pieces []SubPolygon) error {
	byType := make(map[string][]int)
	for i := range pieces {
		if !validArea(pieces[i].Area) {
			t := fmt.Sprintf("%T", pieces[i].Polygonal)
			byType[t] = append(byType[t], i)
		}
	}
	if len(byType) == 0 {
		return nil
	}

	var stillInvalid []string
	for t, idxs := range byType {
		bad := false
		for _, i := range idxs {
			pieces[i].Polygonal = repair(pieces[i].Polygonal)
			pieces[i].Area = pieces[i].Polygonal.Area()
			if !validArea(pieces[i].Area) {
				bad = true
			}
		}
		if bad {
			stillInvalid = append(stillInvalid, t)
		}
	}
	if len(stillInvalid) > 0 {
		sort.Strings(stillInvalid)
		return &domain.GeometryError{
			GeomTypes: stillInvalid,
			Err:       fmt.Errorf("overlay produced unrepairable invalid geometry"),
		}
	}
	return nil
}

func validArea(a float64) bool {
	return !math.IsNaN(a) && a >= 0
}

// repair normalizes a polygon through the clipping engine, resolving
// self-intersections and duplicate vertices that would make the overlay
// undefined. If normalization collapses the geometry entirely, the original
// is kept and the post-overlay validity check decides its fate.
func repair(p geom.Polygonal) geom.Polygonal {
	fixed := p.Union(p)
	if fixed == nil || !validArea(fixed.Area()) {
		return p
	}
	return fixed
}

// sortedCandidates returns the R-tree hits for b in deterministic unit order,
// so piece IDs are stable run to run.
func sortedCandidates(tree *rtree.Rtree, b *geom.Bounds) []geom.Geom {
	hits := tree.SearchIntersect(b)
	sort.Slice(hits, func(i, j int) bool {
		return hits[i].(*Unit).ID < hits[j].(*Unit).ID
	})
	return hits
}
