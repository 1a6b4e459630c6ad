// Package sweep invokes every discovered function with synthesized
// arguments and aggregates the failures no rule accounts for.
//
// A sweep is strictly sequential: each invocation, including its rollback,
// finishes before the next begins, so the outcome order and the final
// report are deterministic. Function failures never stop a sweep; a missing
// sample or an environment failure stops it immediately.
package sweep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"extsweep/internal/catalog"
	"extsweep/internal/classify"
	"extsweep/internal/invoke"
	"extsweep/internal/logging"
	"extsweep/internal/synth"

	"github.com/google/uuid"
)

// Invoker runs calls against the target.
type Invoker interface {
	Invoke(ctx context.Context, fn catalog.Function, args []string) (*invoke.Failure, error)
	Exec(ctx context.Context, fn catalog.Function, query string) (*invoke.Failure, error)
}

// Runner drives sweeps.
type Runner struct {
	synth      *synth.Synthesizer
	invoker    Invoker
	classifier *classify.Classifier
	skip       map[string]bool
}

// NewRunner creates a runner. Functions named in skip, by qualified or
// local name, are recorded as skipped and never invoked.
func NewRunner(s *synth.Synthesizer, inv Invoker, c *classify.Classifier, skip []string) *Runner {
	r := &Runner{
		synth:      s,
		invoker:    inv,
		classifier: c,
		skip:       make(map[string]bool, len(skip)),
	}
	for _, name := range skip {
		r.skip[name] = true
	}
	return r
}

func (r *Runner) skipped(fn catalog.Function) bool {
	return r.skip[fn.Name] || r.skip[catalog.LocalName(fn.Name)]
}

// Run sweeps groups. On success the error is nil; if any invocation failed
// in an unaccounted way the report is returned together with a *Failure.
func (r *Runner) Run(ctx context.Context, groups []catalog.Group) (*Report, error) {
	report := r.newReport("functions", len(groups))

	calls, err := r.synth.Plan(groups)
	if err != nil {
		return nil, err
	}

	for _, call := range calls {
		sig := call.Group.Signature.String()
		for _, fn := range call.Group.Functions {
			if r.skipped(fn) {
				report.Outcomes = append(report.Outcomes, Outcome{Function: fn.Name, Signature: sig, Status: StatusSkipped})
				continue
			}
			failure, err := r.invoker.Invoke(ctx, fn, call.Args)
			if err != nil {
				return nil, err
			}
			o := r.outcome(failure)
			o.Function, o.Signature, o.Query = fn.Name, sig, invoke.CallQuery(fn.Symbol, call.Args)
			report.Outcomes = append(report.Outcomes, o)
		}
	}

	return r.finish(report)
}

// OperatorTable is the seeded table operators are evaluated against.
type OperatorTable struct {
	Table        string
	ResultColumn string
	Columns      map[string]string // local type name -> column
	Comparisons  map[string]string // return type -> trailing comparison
}

// RunOperators sweeps operator groups, discovered with their return type,
// as filters over table. The first parameter whose type has a column is
// replaced by that column; groups without one are skipped.
func (r *Runner) RunOperators(ctx context.Context, groups []catalog.Group, table OperatorTable) (*Report, error) {
	report := r.newReport("operators", len(groups))

	calls, err := r.synth.Plan(groups)
	if err != nil {
		return nil, err
	}

	for _, call := range calls {
		sig := call.Group.Signature
		args, ok := table.substitute(sig, call.Args)
		for _, fn := range call.Group.Functions {
			if !ok || r.skipped(fn) {
				report.Outcomes = append(report.Outcomes, Outcome{Function: fn.Name, Signature: sig.String(), Status: StatusSkipped})
				continue
			}
			query := table.query(fn.Symbol, args, sig.Returns)
			failure, err := r.invoker.Exec(ctx, fn, query)
			if err != nil {
				return nil, err
			}
			o := r.outcome(failure)
			o.Function, o.Signature, o.Query = fn.Name, sig.String(), query
			report.Outcomes = append(report.Outcomes, o)
		}
	}

	return r.finish(report)
}

func (t OperatorTable) substitute(sig catalog.Signature, args []string) ([]string, bool) {
	for i, param := range sig.Params {
		col, ok := t.Columns[catalog.LocalName(param)]
		if !ok {
			continue
		}
		out := append([]string(nil), args...)
		out[i] = col
		return out, true
	}
	return nil, false
}

func (t OperatorTable) query(symbol string, args []string, returns string) string {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s(%s)", t.ResultColumn, t.Table, symbol, strings.Join(args, ", "))
	if cmp, ok := t.Comparisons[returns]; ok {
		q += " " + cmp
	}
	return q
}

func (r *Runner) newReport(kind string, groups int) *Report {
	return &Report{
		ID:      uuid.NewString(),
		Kind:    kind,
		Started: time.Now(),
		Groups:  groups,
	}
}

// outcome classifies one invocation result.
func (r *Runner) outcome(failure *invoke.Failure) Outcome {
	if failure == nil {
		return Outcome{Status: StatusSuccess}
	}
	if rule, ok := r.classifier.Classify(failure.Message); ok {
		return Outcome{Status: StatusAcceptable, Rule: rule.Name, Message: failure.Message}
	}
	return Outcome{Status: StatusUnaccounted, Message: failure.Message, Err: failure}
}

func (r *Runner) finish(report *Report) (*Report, error) {
	log := logging.Get(logging.CategorySweep).With("sweep", report.ID, "kind", report.Kind)
	report.Duration = time.Since(report.Started)

	unaccounted := report.Unaccounted()
	for _, o := range unaccounted {
		log.Warn("unaccounted failure in %s %s: %s", o.Function, o.Signature, o.Message)
	}
	log.Info("swept %d groups in %s: %d ok, %d acceptable, %d unaccounted, %d skipped",
		report.Groups, report.Duration.Round(time.Millisecond),
		report.Count(StatusSuccess), report.Count(StatusAcceptable),
		len(unaccounted), report.Count(StatusSkipped))

	if len(unaccounted) > 0 {
		return report, newFailure(unaccounted)
	}
	return report, nil
}
