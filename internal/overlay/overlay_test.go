package overlay_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/grid"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/overlay"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/raster"
)

// A 2x2 fishnet with unit cell size: cells span [0,2]x[0,2], row 0 on top.
func testGrid() (*raster.GridGeometry, []grid.Cell, geom.Polygon) {
	geo := &raster.GridGeometry{
		Lats: []float64{1.5, 0.5},
		Lons: []float64{0.5, 1.5},
		Proj: "+proj=longlat +datum=WGS84 +no_defs",
	}
	return geo, grid.Fishnet(geo), grid.Extent(geo)
}

func rect(xMin, yMin, xMax, yMax float64) geom.Polygon {
	return geom.Polygon{{
		{X: xMin, Y: yMin},
		{X: xMax, Y: yMin},
		{X: xMax, Y: yMax},
		{X: xMin, Y: yMax},
	}}
}

func TestOverlay(t *testing.T) {
	_, cells, extent := testGrid()
	units := []overlay.Unit{
		// Straddles all four cells with a quarter in each.
		{ID: "A", Admin1ID: "P1", Admin0ID: "C1", Polygonal: rect(0.5, 0.5, 1.5, 1.5)},
		// Quarter inside the top-right cell, the rest past the grid edge.
		{ID: "B", Admin1ID: "P1", Admin0ID: "C1", Polygonal: rect(1.5, 1.5, 2.5, 2.5)},
	}

	res, err := overlay.Overlay(cells, extent, units, 1e-9)
	require.NoError(t, err)

	// 4 cell/A intersections, 1 cell/B intersection, and B's out-of-grid
	// remainder survive; the 4 uncovered cell remainders are dropped.
	assert.Len(t, res.Retained, 6)
	assert.Equal(t, 4, res.UnassignedDropped)
	assert.Equal(t, 0, res.SliversDropped)

	var areaA, areaB float64
	outside := 0
	for _, p := range res.Retained {
		switch p.AdminID {
		case "A":
			areaA += p.Area
			assert.InDelta(t, 0.25, p.Area, 1e-9)
			assert.GreaterOrEqual(t, p.CellID, 0)
		case "B":
			areaB += p.Area
			if p.CellID == -1 {
				outside++
				assert.InDelta(t, 0.75, p.Area, 1e-9)
			}
		default:
			t.Fatalf("retained piece with admin ID %q", p.AdminID)
		}
		assert.Equal(t, "P1", p.Admin1ID)
		assert.Equal(t, "C1", p.Admin0ID)
	}
	assert.InDelta(t, 1.0, areaA, 1e-9)
	assert.InDelta(t, 1.0, areaB, 1e-9)
	assert.Equal(t, 1, outside)

	// Sequential IDs.
	for i := 1; i < len(res.Retained); i++ {
		assert.Greater(t, res.Retained[i].ID, res.Retained[i-1].ID)
	}
}

func TestOverlay_DropsSlivers(t *testing.T) {
	_, cells, extent := testGrid()
	units := []overlay.Unit{
		{ID: "A", Polygonal: rect(0.5, 0.5, 1.5, 1.5)},
		{ID: "B", Polygonal: rect(1.5, 1.5, 2.5, 2.5)},
	}

	// A threshold above the 0.25 intersections keeps only B's 0.75 remainder.
	res, err := overlay.Overlay(cells, extent, units, 0.5)
	require.NoError(t, err)
	assert.Len(t, res.Retained, 1)
	assert.Equal(t, "B", res.Retained[0].AdminID)
	assert.Equal(t, -1, res.Retained[0].CellID)
	assert.Equal(t, 5, res.SliversDropped)
}

func TestOverlay_NothingRetained(t *testing.T) {
	_, cells, extent := testGrid()
	units := []overlay.Unit{
		{ID: "A", Polygonal: rect(0.5, 0.5, 1.5, 1.5)},
	}

	// A threshold above every piece area leaves nothing.
	_, err := overlay.Overlay(cells, extent, units, 10)
	require.Error(t, err)
	var ge *domain.GeometryError
	require.ErrorAs(t, err, &ge)
	assert.True(t, domain.FatalForRun(err))
}

func TestExtractionPoints(t *testing.T) {
	_, cells, extent := testGrid()
	units := []overlay.Unit{
		{ID: "A", Polygonal: rect(0.5, 0.5, 1.5, 1.5)},
		{ID: "B", Polygonal: rect(1.5, 1.5, 2.5, 2.5)},
	}
	res, err := overlay.Overlay(cells, extent, units, 1e-9)
	require.NoError(t, err)

	points, err := overlay.ExtractionPoints(res.Retained)
	require.NoError(t, err)
	require.Len(t, points, len(res.Retained))

	weightSums := map[string]float64{}
	for i, p := range points {
		weightSums[p.AdminID] += p.Weight
		assert.Equal(t, res.Retained[i].ID, p.SubPolygonID)
		assert.Equal(t, geom.Inside, p.Within(res.Retained[i].Polygonal),
			"point for sub-polygon %d not interior", p.SubPolygonID)
	}
	assert.InDelta(t, 1.0, weightSums["A"], 1e-9)
	assert.InDelta(t, 1.0, weightSums["B"], 1e-9)
}

func TestExtractionPoints_NonConvexPiece(t *testing.T) {
	// An L-shape whose centroid (1.1, 1.1) falls outside the polygon, forcing
	// the interior lattice search.
	l := geom.Polygon{{
		{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 1},
		{X: 1, Y: 1}, {X: 1, Y: 3}, {X: 0, Y: 3},
	}}
	centroid := l.Centroid()
	require.NotEqual(t, geom.Inside, centroid.Within(l), "test shape must have an exterior centroid")

	points, err := overlay.ExtractionPoints([]overlay.SubPolygon{
		{ID: 0, CellID: 0, AdminID: "L", Area: l.Area(), Polygonal: l},
	})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, geom.Inside, points[0].Within(l))
	assert.False(t, math.IsNaN(points[0].X))
	assert.InDelta(t, 1.0, points[0].Weight, 1e-12)
}

const wgs84 = "+proj=longlat +datum=WGS84 +no_defs"

type boundaryRow struct {
	geom.Polygon
	ShapeID string `shp:"shapeID"`
	Admin1  string `shp:"admin1"`
}

// writeBoundaryFile encodes rows as a shapefile under dir, with projDef
// written alongside as the .prj definition when non-empty.
func writeBoundaryFile(t *testing.T, dir string, rows []boundaryRow, projDef string) string {
	t.Helper()
	path := filepath.Join(dir, "units.shp")
	enc, err := shp.NewEncoder(path, boundaryRow{})
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, enc.Encode(r))
	}
	enc.Close()
	if projDef != "" {
		prj := strings.TrimSuffix(path, ".shp") + ".prj"
		require.NoError(t, os.WriteFile(prj, []byte(projDef), 0o644))
	}
	return path
}

func TestLoadBoundaries(t *testing.T) {
	path := writeBoundaryFile(t, t.TempDir(), []boundaryRow{
		{Polygon: rect(0, 0, 1, 1), ShapeID: "A", Admin1: "P1"},
		{Polygon: rect(1, 0, 2, 1), ShapeID: "B", Admin1: "P2"},
	}, wgs84)

	units, err := overlay.LoadBoundaries(path, "shapeID", "admin1", "", wgs84)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "A", units[0].ID)
	assert.Equal(t, "P1", units[0].Admin1ID)
	assert.Empty(t, units[0].Admin0ID)
	assert.InDelta(t, 1.0, units[0].Area(), 1e-6)
	assert.Equal(t, "B", units[1].ID)
	assert.Equal(t, "P2", units[1].Admin1ID)
}

func TestLoadBoundaries_MissingIDField(t *testing.T) {
	path := writeBoundaryFile(t, t.TempDir(), []boundaryRow{
		{Polygon: rect(0, 0, 1, 1), ShapeID: "A"},
	}, wgs84)

	_, err := overlay.LoadBoundaries(path, "gaulCode", "", "", wgs84)
	require.Error(t, err)
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "gaulCode")
}

func TestLoadBoundaries_DuplicateID(t *testing.T) {
	path := writeBoundaryFile(t, t.TempDir(), []boundaryRow{
		{Polygon: rect(0, 0, 1, 1), ShapeID: "A"},
		{Polygon: rect(1, 0, 2, 1), ShapeID: "A"},
	}, wgs84)

	_, err := overlay.LoadBoundaries(path, "shapeID", "", "", wgs84)
	require.Error(t, err)
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadBoundaries_NoCRS(t *testing.T) {
	path := writeBoundaryFile(t, t.TempDir(), []boundaryRow{
		{Polygon: rect(0, 0, 1, 1), ShapeID: "A"},
	}, "")

	_, err := overlay.LoadBoundaries(path, "shapeID", "", "", wgs84)
	require.Error(t, err)
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "no resolvable coordinate reference system")
}

func TestLoadBoundaries_UnparseableGridCRS(t *testing.T) {
	path := writeBoundaryFile(t, t.TempDir(), []boundaryRow{
		{Polygon: rect(0, 0, 1, 1), ShapeID: "A"},
	}, wgs84)

	_, err := overlay.LoadBoundaries(path, "shapeID", "", "", "not a projection")
	require.Error(t, err)
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestLoadBoundaries_MissingFile(t *testing.T) {
	_, err := overlay.LoadBoundaries("testdata/does-not-exist.shp", "shapeID", "", "", wgs84)
	require.Error(t, err)
	var ce *domain.ConfigError
	assert.ErrorAs(t, err, &ce)
}
