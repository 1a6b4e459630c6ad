// Package registry holds the sample values used as placeholder arguments
// when sweeping an extension's functions. A Registry is frozen after
// construction; lookups are memoized per distinct query.
package registry

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// SampleValue is a literal expression of a single type.
type SampleValue struct {
	Literal   string `yaml:"literal"`
	TypeName  string `yaml:"type"`
	Extension bool   `yaml:"extension"` // domain type of the extension vs. base type
}

// Origin filters samples by their Extension flag.
type Origin int

const (
	AnyOrigin Origin = iota
	ExtensionOnly
	BaseOnly
)

func (o Origin) accepts(v SampleValue) bool {
	switch o {
	case ExtensionOnly:
		return v.Extension
	case BaseOnly:
		return !v.Extension
	default:
		return true
	}
}

// Query selects samples. An empty TypeName matches every type.
type Query struct {
	TypeName string
	Origin   Origin
}

// Registry is an immutable, ordered set of samples.
type Registry struct {
	samples []SampleValue

	mu    sync.Mutex
	cache map[Query][]SampleValue
}

// New builds a registry; samples keep their registration order.
func New(samples ...SampleValue) *Registry {
	cp := make([]SampleValue, len(samples))
	copy(cp, samples)
	return &Registry{
		samples: cp,
		cache:   make(map[Query][]SampleValue),
	}
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return New(builtinSamples...)
})

// Default returns the built-in registry.
func Default() *Registry {
	return defaultRegistry()
}

// builtinSamples are SQLite expressions; the extension types go through the
// extension's own constructors.
var builtinSamples = []SampleValue{
	{Literal: `geo_geometry('point(0 1)')`, TypeName: "geometry", Extension: true},
	{Literal: `geo_geography('point(0 1)')`, TypeName: "geography", Extension: true},
	{Literal: `geo_box2d('box(0 0, 1 2)')`, TypeName: "box2d", Extension: true},
	{Literal: `geo_box3d('BOX3D(0 0 0, 1 2 3)')`, TypeName: "box3d", Extension: true},
	{Literal: `TRUE`, TypeName: "bool"},
	{Literal: `'d4288330-eea3-11e8-bc5f-7faf132b1d84'`, TypeName: "uuid"},
	{Literal: `X'48656C6C6F'`, TypeName: "bytes"},
	{Literal: `'Hello'`, TypeName: "str"},
	{Literal: `json('"Hello"')`, TypeName: "json"},
	{Literal: `1`, TypeName: "int64"},
	{Literal: `1.0`, TypeName: "float64"},
}

// Lookup returns the samples matching q in registration order. The result is
// computed once per distinct query; callers must not modify it. A query no
// sample satisfies yields an empty slice.
func (r *Registry) Lookup(q Query) []SampleValue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, ok := r.cache[q]; ok {
		return res
	}

	res := make([]SampleValue, 0, 1)
	for _, v := range r.samples {
		if q.TypeName != "" && v.TypeName != q.TypeName {
			continue
		}
		if !q.Origin.accepts(v) {
			continue
		}
		res = append(res, v)
	}
	r.cache[q] = res
	return res
}

// Literals is Lookup reduced to the literal expressions.
func (r *Registry) Literals(q Query) []string {
	vals := r.Lookup(q)
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.Literal
	}
	return out
}

// Types lists the distinct type names in registration order.
func (r *Registry) Types() []string {
	seen := make(map[string]bool, len(r.samples))
	var out []string
	for _, v := range r.samples {
		if !seen[v.TypeName] {
			seen[v.TypeName] = true
			out = append(out, v.TypeName)
		}
	}
	return out
}

// Extend returns a new registry with extra samples after the existing ones.
// The receiver is left unchanged.
func (r *Registry) Extend(samples ...SampleValue) *Registry {
	all := make([]SampleValue, 0, len(r.samples)+len(samples))
	all = append(all, r.samples...)
	all = append(all, samples...)
	return New(all...)
}

// file is the YAML layout of a sample file.
type file struct {
	Samples []SampleValue `yaml:"samples"`
}

// LoadFile reads samples from a YAML file.
func LoadFile(path string) ([]SampleValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse samples YAML: %w", err)
	}
	for i, v := range f.Samples {
		if v.TypeName == "" || v.Literal == "" {
			return nil, fmt.Errorf("sample %d in %s: type and literal are required", i, path)
		}
	}
	return f.Samples, nil
}
