// Package catalog discovers the functions an extension publishes and groups
// them by type signature.
//
// The catalog lives in two tables of the target database. Parameters are
// stored with their declared position, which is the only order discovery
// trusts; row insertion order is irrelevant.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"extsweep/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Schema creates the catalog tables.
const Schema = `
CREATE TABLE IF NOT EXISTS catalog_functions (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	symbol TEXT NOT NULL,
	return_type TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_catalog_functions_name ON catalog_functions(name);

CREATE TABLE IF NOT EXISTS catalog_params (
	function_id INTEGER NOT NULL REFERENCES catalog_functions(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	type_name TEXT NOT NULL,
	PRIMARY KEY (function_id, position)
);
`

const discoverQuery = `
SELECT f.id, f.name, f.symbol, f.return_type, p.position, p.type_name
FROM catalog_functions f
LEFT JOIN catalog_params p ON p.function_id = f.id
WHERE f.name LIKE ? ESCAPE '\'
ORDER BY f.id, p.position`

// ErrNoFunctions is returned when a prefix matches nothing.
var ErrNoFunctions = errors.New("no functions match prefix")

// Function is one callable in the catalog.
type Function struct {
	Name   string `json:"name"`   // qualified name, e.g. ext::geo::area
	Symbol string `json:"symbol"` // name the target's query language calls
}

// Group is every function sharing one signature.
type Group struct {
	Signature Signature
	Functions []Function // sorted by Name
}

// Param is a declared parameter.
type Param struct {
	Name string
	Type string
}

// Entry describes a function to register in the catalog.
type Entry struct {
	Name    string
	Symbol  string
	Returns string
	Params  []Param
}

// Catalog reads the catalog tables of a target database.
type Catalog struct {
	db *sql.DB
}

// New wraps a database handle.
func New(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// Install creates the catalog tables if they are missing.
func Install(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to install catalog schema: %w", err)
	}
	return nil
}

// Register inserts a function and its parameters.
func Register(ctx context.Context, db *sql.DB, e Entry) error {
	if e.Name == "" || e.Symbol == "" || e.Returns == "" {
		return fmt.Errorf("catalog entry %q: name, symbol and return type are required", e.Name)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO catalog_functions (name, symbol, return_type) VALUES (?, ?, ?)`,
		e.Name, e.Symbol, e.Returns)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", e.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", e.Name, err)
	}

	for i, p := range e.Params {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_params (function_id, position, name, type_name) VALUES (?, ?, ?, ?)`,
			id, i, p.Name, p.Type); err != nil {
			return fmt.Errorf("failed to register parameter %d of %s: %w", i, e.Name, err)
		}
	}

	return tx.Commit()
}

// Discover groups every function under prefix by its parameter types.
func (c *Catalog) Discover(ctx context.Context, prefix string) ([]Group, error) {
	return c.discover(ctx, prefix, false)
}

// DiscoverOperators is Discover with the return type appended to each
// signature.
func (c *Catalog) DiscoverOperators(ctx context.Context, prefix string) ([]Group, error) {
	return c.discover(ctx, prefix, true)
}

// DiscoverAll runs Discover for several prefixes concurrently and merges the
// results. Overlapping prefixes do not duplicate functions. A prefix that
// matches nothing is logged and ignored; ErrNoFunctions is returned only if
// no prefix matches.
func (c *Catalog) DiscoverAll(ctx context.Context, prefixes ...string) ([]Group, error) {
	results := make([][]Group, len(prefixes))

	g, gctx := errgroup.WithContext(ctx)
	for i, prefix := range prefixes {
		i, prefix := i, prefix
		g.Go(func() error {
			groups, err := c.Discover(gctx, prefix)
			if errors.Is(err, ErrNoFunctions) {
				logging.Get(logging.CategoryCatalog).Warn("no functions under %q", prefix)
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = groups
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := Merge(results...)
	if len(merged) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoFunctions, strings.Join(prefixes, ", "))
	}
	return merged, nil
}

type discovered struct {
	fn     Function
	params []string
	ret    string
}

func (c *Catalog) discover(ctx context.Context, prefix string, withReturn bool) ([]Group, error) {
	log := logging.Get(logging.CategoryCatalog)

	rows, err := c.db.QueryContext(ctx, discoverQuery, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var order []int64
	byID := make(map[int64]*discovered)
	for rows.Next() {
		var (
			id                int64
			name, symbol, ret string
			position          sql.NullInt64
			typeName          sql.NullString
		)
		if err := rows.Scan(&id, &name, &symbol, &ret, &position, &typeName); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		d, ok := byID[id]
		if !ok {
			d = &discovered{fn: Function{Name: name, Symbol: symbol}, ret: ret}
			byID[id] = d
			order = append(order, id)
		}
		if typeName.Valid {
			d.params = append(d.params, typeName.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoFunctions, prefix)
	}

	groups := make([]Group, 0, len(order))
	for _, id := range order {
		d := byID[id]
		sig := Signature{Params: d.params}
		if withReturn {
			sig.Returns = d.ret
		}
		groups = append(groups, Group{Signature: sig, Functions: []Function{d.fn}})
	}

	merged := Merge(groups)
	log.Debug("discovered %d functions in %d signatures under %q", len(order), len(merged), prefix)
	return merged, nil
}

// Merge combines group lists into one list keyed by signature, with
// functions sorted inside each group and groups sorted by signature.
func Merge(lists ...[]Group) []Group {
	index := make(map[string]int)
	var out []Group
	seen := make(map[string]map[Function]bool)

	for _, list := range lists {
		for _, g := range list {
			key := g.Signature.Key()
			i, ok := index[key]
			if !ok {
				i = len(out)
				index[key] = i
				out = append(out, Group{Signature: g.Signature})
				seen[key] = make(map[Function]bool)
			}
			for _, fn := range g.Functions {
				if seen[key][fn] {
					continue
				}
				seen[key][fn] = true
				out[i].Functions = append(out[i].Functions, fn)
			}
		}
	}

	for i := range out {
		slices.SortFunc(out[i].Functions, func(a, b Function) int {
			if c := strings.Compare(a.Name, b.Name); c != 0 {
				return c
			}
			return strings.Compare(a.Symbol, b.Symbol)
		})
	}
	slices.SortFunc(out, func(a, b Group) int {
		return a.Signature.Compare(b.Signature)
	})
	return out
}

// likePrefix turns a literal prefix into a LIKE pattern with '\' escapes.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
