// Package overlay unions the fishnet grid with administrative boundaries into
// weighted sub-polygons and derives the extraction point set used to sample
// daily rasters.
package overlay

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
)

// Unit is one administrative polygon with its unique ID and any higher-level
// parent IDs passed through from the boundary attributes.
type Unit struct {
	ID       string
	Admin1ID string
	Admin0ID string
	geom.Polygonal
}

// LoadBoundaries decodes the administrative boundary shapefile and reprojects
// every geometry into the grid's coordinate reference system. A shapefile
// without a resolvable reference system, a reference system that cannot be
// transformed into the grid's, or a missing attribute column is a
// configuration error: it is reported immediately and nothing downstream runs.
func LoadBoundaries(path, idField, admin1Field, admin0Field, gridProj string) ([]Unit, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, domain.Configf("open boundary file %s: %w", path, err)
	}
	defer dec.Close()

	srcSR, err := dec.SR()
	if err != nil {
		return nil, domain.Configf("boundary file %s has no resolvable coordinate reference system: %w", path, err)
	}
	gridSR, err := proj.Parse(gridProj)
	if err != nil {
		return nil, domain.Configf("grid coordinate reference system %q: %w", gridProj, err)
	}
	trans, err := srcSR.NewTransform(gridSR)
	if err != nil {
		return nil, domain.Configf("boundary reference system cannot be reprojected onto the grid's: %w", err)
	}

	fields := []string{idField}
	if admin1Field != "" {
		fields = append(fields, admin1Field)
	}
	if admin0Field != "" {
		fields = append(fields, admin0Field)
	}

	var units []Unit
	seen := make(map[string]bool)
	for {
		g, attrs, more := dec.DecodeRowFields(fields...)
		if !more {
			break
		}

		id, ok := attrs[idField]
		if !ok || id == "" {
			return nil, domain.Configf("boundary file %s: missing required ID attribute %q on row %d",
				path, idField, len(units))
		}
		if seen[id] {
			return nil, domain.Configf("boundary file %s: duplicate administrative ID %q", path, id)
		}
		seen[id] = true

		gg, err := g.Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("reproject administrative unit %s: %w", id, err)
		}
		poly, ok := gg.(geom.Polygonal)
		if !ok {
			return nil, domain.Configf("administrative unit %s is %T, want a polygon", id, gg)
		}

		units = append(units, Unit{
			ID:        id,
			Admin1ID:  attrs[admin1Field],
			Admin0ID:  attrs[admin0Field],
			Polygonal: poly,
		})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("decode boundary file %s: %w", path, err)
	}
	if len(units) == 0 {
		return nil, domain.Configf("boundary file %s contains no administrative units", path)
	}
	return units, nil
}
