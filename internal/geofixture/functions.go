package geofixture

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sqlite "modernc.org/sqlite"
)

// Values are stored as "<type>:<WKT>", e.g. "geometry:POINT(0 1)". Only the
// leading shape keyword is interpreted.
type shape struct {
	typ  string
	kind string
	body string
}

func (s shape) String() string {
	return s.typ + ":" + s.kind + s.body
}

// points is the number of coordinate tuples in the body.
func (s shape) points() int64 {
	if strings.Contains(s.body, "EMPTY") {
		return 0
	}
	return int64(strings.Count(s.body, ",") + 1)
}

var kinds = map[string][]string{
	"geometry":  {"POINT", "LINESTRING", "POLYGON", "MULTIPOINT", "GEOMETRYCOLLECTION"},
	"geography": {"POINT", "LINESTRING", "POLYGON"},
	"box2d":     {"BOX"},
	"box3d":     {"BOX3D"},
}

func parseWKT(typ, text string) (shape, error) {
	text = strings.TrimSpace(text)
	open := strings.IndexByte(text, '(')
	if open <= 0 || !strings.HasSuffix(text, ")") {
		return shape{}, fmt.Errorf("parse error - invalid %s representation: %q", typ, text)
	}
	kind := strings.ToUpper(strings.TrimSpace(text[:open]))
	for _, k := range kinds[typ] {
		if k == kind {
			return shape{typ: typ, kind: kind, body: text[open:]}, nil
		}
	}
	return shape{}, fmt.Errorf("unsupported geometry type %s for %s", kind, typ)
}

func decode(v driver.Value, typ string) (shape, error) {
	s, ok := v.(string)
	if !ok {
		return shape{}, fmt.Errorf("argument is not a %s", typ)
	}
	head, wkt, ok := strings.Cut(s, ":")
	if !ok || head != typ {
		return shape{}, fmt.Errorf("argument is not a %s", typ)
	}
	return parseWKT(typ, wkt)
}

type scalar func(args []driver.Value) (driver.Value, error)

// unary adapts a one-shape function.
func unary(typ string, fn func(shape) (driver.Value, error)) scalar {
	return func(args []driver.Value) (driver.Value, error) {
		s, err := decode(args[0], typ)
		if err != nil {
			return nil, err
		}
		return fn(s)
	}
}

// binary adapts a two-shape function.
func binary(t0, t1 string, fn func(a, b shape) (driver.Value, error)) scalar {
	return func(args []driver.Value) (driver.Value, error) {
		a, err := decode(args[0], t0)
		if err != nil {
			return nil, err
		}
		b, err := decode(args[1], t1)
		if err != nil {
			return nil, err
		}
		return fn(a, b)
	}
}

func constructor(typ string) scalar {
	return func(args []driver.Value) (driver.Value, error) {
		text, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("could not parse %s from %T", typ, args[0])
		}
		s, err := parseWKT(typ, text)
		if err != nil {
			return nil, err
		}
		return s.String(), nil
	}
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// symbols maps SQL function names to their implementation and arity.
var symbols = map[string]struct {
	nArg int32
	fn   scalar
}{
	"geo_geometry":  {1, constructor("geometry")},
	"geo_geography": {1, constructor("geography")},
	"geo_box2d":     {1, constructor("box2d")},
	"geo_box3d":     {1, constructor("box3d")},

	"geo_area": {1, unary("geometry", func(s shape) (driver.Value, error) {
		return float64(0), nil
	})},
	"geo_astext": {1, unary("geometry", func(s shape) (driver.Value, error) {
		return s.kind + s.body, nil
	})},
	"geo_astext_geog": {1, unary("geography", func(s shape) (driver.Value, error) {
		return s.kind + s.body, nil
	})},
	"geo_srid": {1, unary("geometry", func(s shape) (driver.Value, error) {
		return int64(0), nil
	})},
	"geo_srid_geog": {1, unary("geography", func(s shape) (driver.Value, error) {
		return int64(4326), nil
	})},
	"geo_npoints": {1, unary("geometry", func(s shape) (driver.Value, error) {
		return s.points(), nil
	})},
	"geo_exteriorring": {1, unary("geometry", func(s shape) (driver.Value, error) {
		if s.kind != "POLYGON" {
			return nil, errors.New("argument must be a POLYGON")
		}
		return "geometry:LINESTRING" + s.body, nil
	})},
	"geo_makepolygon": {1, unary("geometry", func(s shape) (driver.Value, error) {
		if s.kind != "LINESTRING" {
			return nil, errors.New("shell is not a line")
		}
		return "geometry:POLYGON(" + s.body + ")", nil
	})},
	"geo_to_geometry_box2d": {1, unary("box2d", func(s shape) (driver.Value, error) {
		return "geometry:POLYGON" + s.body, nil
	})},
	"geo_to_box3d": {1, unary("box2d", func(s shape) (driver.Value, error) {
		return "box3d:BOX3D" + s.body, nil
	})},
	"geo_xmin": {1, unary("box3d", func(s shape) (driver.Value, error) {
		return float64(0), nil
	})},
	"geo_xmax": {1, unary("box3d", func(s shape) (driver.Value, error) {
		return float64(1), nil
	})},
	"geo_fromtext": {1, func(args []driver.Value) (driver.Value, error) {
		text, _ := args[0].(string)
		s, err := parseWKT("geometry", text)
		if err != nil {
			return nil, err
		}
		return s.String(), nil
	}},
	"geo_fromwkb": {1, func(args []driver.Value) (driver.Value, error) {
		b, ok := args[0].([]byte)
		if !ok || len(b) == 0 || b[0] > 1 {
			return nil, errors.New("Invalid endian flag value encountered.")
		}
		return "geometry:POINT(0 0)", nil
	}},
	"geo_fromgeojson": {1, func(args []driver.Value) (driver.Value, error) {
		text, _ := args[0].(string)
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("unknown GeoJSON type")
		}
		if doc["type"] != "Point" {
			return nil, fmt.Errorf("unknown GeoJSON type")
		}
		return "geometry:POINT(0 0)", nil
	}},
	"geo_collect": {1, func(args []driver.Value) (driver.Value, error) {
		text, _ := args[0].(string)
		var elems []string
		if err := json.Unmarshal([]byte(text), &elems); err != nil {
			return nil, fmt.Errorf("argument is not a geometry array")
		}
		bodies := make([]string, 0, len(elems))
		for _, e := range elems {
			s, err := decode(e, "geometry")
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, s.kind+s.body)
		}
		return "geometry:GEOMETRYCOLLECTION(" + strings.Join(bodies, ",") + ")", nil
	}},
	"geo_buffer": {2, func(args []driver.Value) (driver.Value, error) {
		s, err := decode(args[0], "geometry")
		if err != nil {
			return nil, err
		}
		if _, ok := args[1].(float64); !ok {
			return nil, errors.New("buffer parameter must be a number")
		}
		return "geometry:POLYGON(" + s.body + ")", nil
	}},
	"geo_setsrid": {2, func(args []driver.Value) (driver.Value, error) {
		s, err := decode(args[0], "geometry")
		if err != nil {
			return nil, err
		}
		if _, ok := args[1].(int64); !ok {
			return nil, errors.New("argument must be an integer SRID")
		}
		return s.String(), nil
	}},
	"geo_distance": {2, binary("geometry", "geometry", func(a, b shape) (driver.Value, error) {
		return float64(0), nil
	})},
	"geo_intersects": {2, binary("geometry", "geometry", func(a, b shape) (driver.Value, error) {
		return boolValue(a.body == b.body), nil
	})},

	// Operators
	"geo_op_overlaps": {2, binary("geometry", "geometry", func(a, b shape) (driver.Value, error) {
		return boolValue(a.body == b.body), nil
	})},
	"geo_op_distance": {2, binary("geometry", "geometry", func(a, b shape) (driver.Value, error) {
		if a.body == b.body {
			return float64(0), nil
		}
		return float64(2), nil
	})},
	"geo_op_contained_box": {2, binary("box2d", "geometry", func(a, b shape) (driver.Value, error) {
		return int64(1), nil
	})},
	"geo_op_box_overlaps": {2, binary("box2d", "box2d", func(a, b shape) (driver.Value, error) {
		return int64(1), nil
	})},
	"geo_op_measure_before": {2, binary("geometry", "geometry", func(a, b shape) (driver.Value, error) {
		return nil, errors.New("input geometry must have a measure dimension")
	})},

	// Defects, catalogued only when Options.Defects is set
	"geo_broken": {1, unary("geometry", func(s shape) (driver.Value, error) {
		return nil, errors.New("division by zero")
	})},
}

func registerFunctions() error {
	for name, sym := range symbols {
		fn := sym.fn
		nArg := sym.nArg
		err := sqlite.RegisterDeterministicScalarFunction(name, nArg,
			func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				if len(args) != int(nArg) {
					return nil, fmt.Errorf("%s expects %d arguments", name, nArg)
				}
				return fn(args)
			})
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
	}
	return nil
}
