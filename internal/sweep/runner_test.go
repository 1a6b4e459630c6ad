package sweep

import (
	"context"
	"errors"
	"testing"

	"extsweep/internal/catalog"
	"extsweep/internal/classify"
	"extsweep/internal/invoke"
	"extsweep/internal/registry"
	"extsweep/internal/synth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	function string
	args     []string
	query    string
}

// fakeInvoker fails functions by name and records every call.
type fakeInvoker struct {
	messages map[string]string
	fatal    map[string]error
	calls    []call
}

func (f *fakeInvoker) result(function string) (*invoke.Failure, error) {
	if err, ok := f.fatal[function]; ok {
		return nil, &invoke.EnvironmentError{Function: function, Op: "query", Err: err}
	}
	if msg, ok := f.messages[function]; ok {
		return &invoke.Failure{Function: function, Message: msg, Err: errors.New(msg)}, nil
	}
	return nil, nil
}

func (f *fakeInvoker) Invoke(ctx context.Context, fn catalog.Function, args []string) (*invoke.Failure, error) {
	f.calls = append(f.calls, call{function: fn.Name, args: args})
	return f.result(fn.Name)
}

func (f *fakeInvoker) Exec(ctx context.Context, fn catalog.Function, query string) (*invoke.Failure, error) {
	f.calls = append(f.calls, call{function: fn.Name, query: query})
	return f.result(fn.Name)
}

func geometryRegistry() *registry.Registry {
	return registry.New(
		registry.SampleValue{Literal: "point", TypeName: "geometry", Extension: true},
		registry.SampleValue{Literal: "1.0", TypeName: "float64"},
	)
}

func newTestRunner(inv Invoker, skip ...string) *Runner {
	return NewRunner(
		synth.New(geometryRegistry(), ""),
		inv,
		classify.MustNew([]classify.Rule{{Name: "arg_must_be", Pattern: `arg(ument)? \s must \s be`}}),
		skip,
	)
}

func group(params []string, names ...string) catalog.Group {
	g := catalog.Group{Signature: catalog.Signature{Params: params}}
	for _, n := range names {
		g.Functions = append(g.Functions, catalog.Function{Name: n, Symbol: catalog.LocalName(n)})
	}
	return g
}

func TestRunAllSucceed(t *testing.T) {
	inv := &fakeInvoker{}
	r := newTestRunner(inv)

	report, err := r.Run(context.Background(), []catalog.Group{
		group([]string{"geometry"}, "area", "astext"),
	})
	require.NoError(t, err)

	require.Len(t, inv.calls, 2)
	assert.Equal(t, []string{"point"}, inv.calls[0].args)
	assert.Equal(t, []string{"point"}, inv.calls[1].args)
	assert.Equal(t, 2, report.Count(StatusSuccess))
	assert.Empty(t, report.Unaccounted())
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "functions", report.Kind)
}

func TestRunSharedArgumentsWithinGroup(t *testing.T) {
	inv := &fakeInvoker{}
	r := newTestRunner(inv)

	_, err := r.Run(context.Background(), []catalog.Group{
		group([]string{"ext::geo::geometry", "std::float64"}, "buffer", "offsetcurve", "simplify"),
	})
	require.NoError(t, err)

	require.Len(t, inv.calls, 3)
	for _, c := range inv.calls {
		assert.Equal(t, []string{"point", "1.0"}, c.args, c.function)
	}
}

func TestRunAcceptableFailureIsNotReported(t *testing.T) {
	inv := &fakeInvoker{messages: map[string]string{"weird_fn": "argument must be a polygon"}}
	r := newTestRunner(inv)

	report, err := r.Run(context.Background(), []catalog.Group{group([]string{"geometry"}, "weird_fn")})
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, StatusAcceptable, report.Outcomes[0].Status)
	assert.Equal(t, "arg_must_be", report.Outcomes[0].Rule)
}

func TestRunUnaccountedFailureFailsSweep(t *testing.T) {
	inv := &fakeInvoker{messages: map[string]string{"broken_fn": "division by zero"}}
	r := newTestRunner(inv)

	report, err := r.Run(context.Background(), []catalog.Group{group([]string{"geometry"}, "area", "broken_fn")})
	require.Error(t, err)
	require.NotNil(t, report)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, []string{"broken_fn"}, failure.Functions)
	assert.Equal(t, "1 unaccounted for errors occurred in bulk testing. "+
		"The following functions were affected: broken_fn.", err.Error())

	var cause *invoke.Failure
	require.ErrorAs(t, err, &cause)
	assert.Equal(t, "division by zero", cause.Message)
}

func TestRunContinuesAfterUnaccountedFailures(t *testing.T) {
	inv := &fakeInvoker{messages: map[string]string{
		"zeta":  "boom",
		"alpha": "kaboom",
	}}
	r := newTestRunner(inv)

	report, err := r.Run(context.Background(), []catalog.Group{
		group([]string{"geometry"}, "zeta", "middle"),
		group([]string{"geometry", "geometry"}, "alpha", "zeta"),
	})

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Len(t, inv.calls, 4)
	assert.Equal(t, 3, failure.Count)
	assert.Equal(t, []string{"alpha", "zeta"}, failure.Functions)
	assert.Equal(t, "boom", failure.Cause.(*invoke.Failure).Message)
	assert.Equal(t, 1, report.Count(StatusSuccess))
}

func TestRunMissingSampleAbortsBeforeInvoking(t *testing.T) {
	inv := &fakeInvoker{}
	r := newTestRunner(inv)

	report, err := r.Run(context.Background(), []catalog.Group{
		group([]string{"geometry"}, "area"),
		group([]string{"box2d"}, "to_box3d"),
	})
	assert.Nil(t, report)
	assert.Empty(t, inv.calls)

	var cfgErr *synth.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "box2d", cfgErr.Type)

	var failure *Failure
	assert.False(t, errors.As(err, &failure))
}

func TestRunEnvironmentFailureAborts(t *testing.T) {
	inv := &fakeInvoker{
		messages: map[string]string{"broken_fn": "division by zero"},
		fatal:    map[string]error{"middle": errors.New("disk I/O error")},
	}
	r := newTestRunner(inv)

	report, err := r.Run(context.Background(), []catalog.Group{
		group([]string{"geometry"}, "broken_fn", "middle", "zulu"),
	})
	assert.Nil(t, report)
	assert.Len(t, inv.calls, 2)

	var envErr *invoke.EnvironmentError
	require.ErrorAs(t, err, &envErr)
	assert.Equal(t, "middle", envErr.Function)
}

func TestRunSkipsListedFunctions(t *testing.T) {
	inv := &fakeInvoker{messages: map[string]string{"ext::geo::relate": "server closed the connection"}}
	r := newTestRunner(inv, "relate")

	report, err := r.Run(context.Background(), []catalog.Group{
		group([]string{"geometry", "geometry"}, "ext::geo::distance", "ext::geo::relate"),
	})
	require.NoError(t, err)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, "ext::geo::distance", inv.calls[0].function)
	assert.Equal(t, 1, report.Count(StatusSkipped))
}

func TestRunIsIdempotent(t *testing.T) {
	groups := []catalog.Group{
		group([]string{"geometry"}, "a", "b", "c"),
		group([]string{"geometry", "float64"}, "d"),
	}
	messages := map[string]string{"b": "argument must be a point", "c": "oops", "d": "oops"}

	var first, second *Failure
	_, err := newTestRunner(&fakeInvoker{messages: messages}).Run(context.Background(), groups)
	require.ErrorAs(t, err, &first)
	_, err = newTestRunner(&fakeInvoker{messages: messages}).Run(context.Background(), groups)
	require.ErrorAs(t, err, &second)

	assert.Equal(t, first.Functions, second.Functions)
	assert.Equal(t, first.Error(), second.Error())
}

func TestRunOperatorsBuildsFilterQueries(t *testing.T) {
	inv := &fakeInvoker{}
	r := newTestRunner(inv)
	table := OperatorTable{
		Table:        "geo_test0",
		ResultColumn: "name",
		Columns:      map[string]string{"geometry": "geometry"},
		Comparisons:  map[string]string{"std::float64": "< 1"},
	}

	bool2 := catalog.Group{
		Signature: catalog.Signature{Params: []string{"ext::geo::geometry", "ext::geo::geometry"}, Returns: "std::bool"},
		Functions: []catalog.Function{{Name: "ext::geo::op_overlaps", Symbol: "op_overlaps"}},
	}
	dist := catalog.Group{
		Signature: catalog.Signature{Params: []string{"ext::geo::geometry", "ext::geo::geometry"}, Returns: "std::float64"},
		Functions: []catalog.Function{{Name: "ext::geo::op_distance", Symbol: "op_distance"}},
	}
	noColumn := catalog.Group{
		Signature: catalog.Signature{Params: []string{"std::float64", "std::float64"}, Returns: "std::bool"},
		Functions: []catalog.Function{{Name: "ext::geo::op_numbers", Symbol: "op_numbers"}},
	}

	report, err := r.RunOperators(context.Background(), []catalog.Group{bool2, dist, noColumn}, table)
	require.NoError(t, err)

	require.Len(t, inv.calls, 2)
	assert.Equal(t, "SELECT name FROM geo_test0 WHERE op_overlaps(geometry, point)", inv.calls[0].query)
	assert.Equal(t, "SELECT name FROM geo_test0 WHERE op_distance(geometry, point) < 1", inv.calls[1].query)
	assert.Equal(t, 1, report.Count(StatusSkipped))
	assert.Equal(t, "operators", report.Kind)
}

func TestRunOperatorsSubstitutesFirstColumnBackedParam(t *testing.T) {
	inv := &fakeInvoker{}
	r := newTestRunner(inv)
	table := OperatorTable{Table: "t", ResultColumn: "name", Columns: map[string]string{"geometry": "geom"}}

	g := catalog.Group{
		Signature: catalog.Signature{Params: []string{"std::float64", "ext::geo::geometry"}, Returns: "std::bool"},
		Functions: []catalog.Function{{Name: "ext::geo::op_within", Symbol: "op_within"}},
	}
	_, err := r.RunOperators(context.Background(), []catalog.Group{g}, table)
	require.NoError(t, err)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, "SELECT name FROM t WHERE op_within(1.0, geom)", inv.calls[0].query)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "unaccounted", StatusUnaccounted.String())
	assert.Equal(t, "status(9)", Status(9).String())
}
