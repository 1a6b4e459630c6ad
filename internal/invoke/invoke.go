// Package invoke runs single calls against the target, each inside its own
// transaction that is always rolled back.
package invoke

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"extsweep/internal/catalog"
	"extsweep/internal/logging"
	"extsweep/internal/target"
)

// Failure is a function-level error reported by the target. It is handed to
// the classifier rather than returned as an error.
type Failure struct {
	Function string
	Message  string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Function, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// EnvironmentError is any failure that is not about the function under
// test: connection loss, locking, I/O, cancellation. It aborts a sweep.
type EnvironmentError struct {
	Function string
	Op       string
	Err      error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("environment failure during %s of %s: %v", e.Op, e.Function, e.Err)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

// Invoker executes calls on a database handle.
type Invoker struct {
	db   *sql.DB
	kind func(error) target.Kind
}

// New creates an invoker.
func New(db *sql.DB) *Invoker {
	return &Invoker{db: db, kind: target.KindOf}
}

// CallQuery renders the SELECT calling symbol with args.
func CallQuery(symbol string, args []string) string {
	return fmt.Sprintf("SELECT %s(%s)", symbol, strings.Join(args, ", "))
}

// Invoke calls fn with args. It returns (nil, nil) on success, a Failure
// for a function-level error and an *EnvironmentError otherwise.
func (inv *Invoker) Invoke(ctx context.Context, fn catalog.Function, args []string) (*Failure, error) {
	return inv.Exec(ctx, fn, CallQuery(fn.Symbol, args))
}

// Exec runs query on behalf of fn inside a rolled-back transaction.
//
// The query is compiled before it runs. A compile error means the generated
// query itself is wrong (a malformed sample literal, array format or table)
// and aborts the sweep as an *EnvironmentError, unless it only reports that
// fn's own symbol is missing or has a different arity. Only errors raised
// while the statement runs are handed to the classifier.
func (inv *Invoker) Exec(ctx context.Context, fn catalog.Function, query string) (failure *Failure, err error) {
	log := logging.Get(logging.CategoryInvoke)
	function := fn.Name

	tx, err := inv.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &EnvironmentError{Function: function, Op: "begin", Err: err}
	}
	defer func() {
		rbErr := tx.Rollback()
		if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && err == nil {
			failure, err = nil, &EnvironmentError{Function: function, Op: "rollback", Err: rbErr}
		}
	}()

	log.Debug("%s: %s", function, query)

	if compileErr := compile(ctx, tx, query); compileErr != nil {
		if inv.kind(compileErr) == target.KindFunction && symbolMismatch(compileErr, fn.Symbol) {
			log.Debug("%s is not callable: %v", function, compileErr)
			return &Failure{Function: function, Message: compileErr.Error(), Err: compileErr}, nil
		}
		return nil, &EnvironmentError{Function: function, Op: "compile", Err: compileErr}
	}

	if runErr := drain(ctx, tx, query); runErr != nil {
		if inv.kind(runErr) != target.KindFunction {
			return nil, &EnvironmentError{Function: function, Op: "query", Err: runErr}
		}
		log.Debug("%s failed: %v", function, runErr)
		return &Failure{Function: function, Message: runErr.Error(), Err: runErr}, nil
	}
	return nil, nil
}

// compile has the target prepare query without evaluating it. SQLite reports
// syntax errors and unknown tables, columns and functions at this stage.
func compile(ctx context.Context, tx *sql.Tx, query string) error {
	return drain(ctx, tx, "EXPLAIN "+query)
}

var (
	noSuchFunction = regexp.MustCompile(`no such function: (\w+)`)
	wrongArity     = regexp.MustCompile(`wrong number of arguments to function (\w+)\(`)
)

// symbolMismatch reports whether err says symbol itself is unknown or was
// called with the wrong number of arguments.
func symbolMismatch(err error, symbol string) bool {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{noSuchFunction, wrongArity} {
		for _, m := range re.FindAllStringSubmatch(msg, -1) {
			if strings.EqualFold(m[1], symbol) {
				return true
			}
		}
	}
	return false
}

// drain runs query and consumes every row; drivers may evaluate lazily.
func drain(ctx context.Context, tx *sql.Tx, query string) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
