// Package geofixture installs a tiny spatial extension into a SQLite
// database: scalar functions registered with the pure-Go driver, their
// catalog rows and a seeded table for operator sweeps. It exists to exercise
// the sweep end to end; its geometry handling is intentionally superficial.
package geofixture

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"extsweep/internal/catalog"
	"extsweep/internal/config"
	"extsweep/internal/logging"
	"extsweep/internal/target"
)

// Namespace is the qualified-name prefix of every fixture function.
const Namespace = "ext::geo::"

// OperatorPrefix selects the fixture's operator functions.
const OperatorPrefix = "ext::geo::op_"

// Table is the operator sweep table.
const Table = "geo_test0"

const (
	tGeometry  = "ext::geo::geometry"
	tGeography = "ext::geo::geography"
	tBox2d     = "ext::geo::box2d"
	tBox3d     = "ext::geo::box3d"
	tStr       = "std::str"
	tBytes     = "std::bytes"
	tJSON      = "std::json"
	tInt64     = "std::int64"
	tFloat64   = "std::float64"
	tBool      = "std::bool"
)

func fn(name, symbol, returns string, params ...string) catalog.Entry {
	e := catalog.Entry{Name: Namespace + name, Symbol: symbol, Returns: returns}
	for i, p := range params {
		e.Params = append(e.Params, catalog.Param{Name: fmt.Sprintf("arg%d", i), Type: p})
	}
	return e
}

// Functions is the catalog of well-behaved fixture functions. Some of them
// reject the registry's sample values with validation messages.
var Functions = []catalog.Entry{
	fn("area", "geo_area", tFloat64, tGeometry),
	fn("astext", "geo_astext", tStr, tGeometry),
	fn("srid", "geo_srid", tInt64, tGeometry),
	fn("npoints", "geo_npoints", tInt64, tGeometry),
	fn("exteriorring", "geo_exteriorring", tGeometry, tGeometry),
	fn("makepolygon", "geo_makepolygon", tGeometry, tGeometry),
	fn("astext", "geo_astext_geog", tStr, tGeography),
	fn("srid", "geo_srid_geog", tInt64, tGeography),
	fn("to_geometry", "geo_to_geometry_box2d", tGeometry, tBox2d),
	fn("to_box3d", "geo_to_box3d", tBox3d, tBox2d),
	fn("xmin", "geo_xmin", tFloat64, tBox3d),
	fn("xmax", "geo_xmax", tFloat64, tBox3d),
	fn("fromtext", "geo_fromtext", tGeometry, tStr),
	fn("fromwkb", "geo_fromwkb", tGeometry, tBytes),
	fn("fromgeojson", "geo_fromgeojson", tGeometry, tJSON),
	fn("collect", "geo_collect", tGeometry, "array<"+tGeometry+">"),
	fn("buffer", "geo_buffer", tGeometry, tGeometry, tFloat64),
	fn("setsrid", "geo_setsrid", tGeometry, tGeometry, tInt64),
	fn("distance", "geo_distance", tFloat64, tGeometry, tGeometry),
	fn("intersects", "geo_intersects", tBool, tGeometry, tGeometry),

	fn("op_overlaps", "geo_op_overlaps", tBool, tGeometry, tGeometry),
	fn("op_distance", "geo_op_distance", tFloat64, tGeometry, tGeometry),
	fn("op_contained_box", "geo_op_contained_box", tBool, tBox2d, tGeometry),
	fn("op_box_overlaps", "geo_op_box_overlaps", tBool, tBox2d, tBox2d),
	fn("op_measure_before", "geo_op_measure_before", tBool, tGeometry, tGeometry),
}

// Defects are catalogued functions that fail in ways no rule accepts: one
// raises an unexpected error, the other is missing from the target.
var Defects = []catalog.Entry{
	fn("broken_fn", "geo_broken", tFloat64, tGeometry),
	fn("ghost", "geo_ghost", tFloat64, tGeometry),
}

// Options controls what Install seeds.
type Options struct {
	// Defects also catalogs the Defects entries.
	Defects bool
	// Extra entries are catalogued after the built-in ones.
	Extra []catalog.Entry
}

var (
	registerOnce sync.Once
	registerErr  error
)

// Register installs the fixture's scalar functions into the pure-Go driver.
// Registration is process-wide and applies to connections opened afterwards.
func Register() error {
	registerOnce.Do(func() {
		registerErr = registerFunctions()
	})
	return registerErr
}

const tableSchema = `
CREATE TABLE IF NOT EXISTS geo_test0 (
	name TEXT NOT NULL,
	geometry TEXT NOT NULL,
	geography TEXT NOT NULL
);
INSERT INTO geo_test0 (name, geometry, geography) VALUES
	('origin', geo_geometry('point(0 0)'), geo_geography('point(0 0)')),
	('unit', geo_geometry('point(0 1)'), geo_geography('point(0 1)')),
	('path', geo_geometry('linestring(0 1, 2 3, 4 5, 0 1)'), geo_geography('linestring(0 1, 2 3)'));
`

// Install seeds the catalog and the operator table.
func Install(ctx context.Context, db *sql.DB, opts Options) error {
	log := logging.Get(logging.CategoryFixture)

	if err := catalog.Install(ctx, db); err != nil {
		return err
	}

	entries := append([]catalog.Entry(nil), Functions...)
	if opts.Defects {
		entries = append(entries, Defects...)
	}
	entries = append(entries, opts.Extra...)

	for _, e := range entries {
		if err := catalog.Register(ctx, db, e); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, tableSchema); err != nil {
		return fmt.Errorf("failed to seed %s: %w", Table, err)
	}

	log.Info("installed %d catalog entries", len(entries))
	return nil
}

// Open registers the functions, opens a SQLite database at path with the
// pure-Go driver and seeds it.
func Open(ctx context.Context, path string, opts Options) (*sql.DB, error) {
	if err := Register(); err != nil {
		return nil, err
	}
	db, err := target.Open(ctx, config.TargetConfig{Driver: "sqlite", DSN: path})
	if err != nil {
		return nil, err
	}
	if err := Install(ctx, db, opts); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
