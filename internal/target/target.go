// Package target opens the database an extension is installed in and maps
// driver errors onto the two failure categories a sweep distinguishes.
package target

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"extsweep/internal/config"
	"extsweep/internal/logging"

	sqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Kind categorizes an error returned by the target.
type Kind int

const (
	// KindNone means no error.
	KindNone Kind = iota
	// KindFunction is an error raised while evaluating a function: the
	// target's "internal error" category. Only these are ever classified.
	KindFunction
	// KindEnvironment covers connection, protocol, locking, I/O and
	// cancellation failures.
	KindEnvironment
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindFunction:
		return "function"
	default:
		return "environment"
	}
}

// functionErrorMatchers report whether a driver error is a function-level
// failure. Driver-specific files append to it.
var functionErrorMatchers = []func(error) bool{isModerncFunctionError}

// KindOf categorizes err by its result code. Compile errors carry the same
// primary code as errors raised by a function, so callers that generate SQL
// must separate the two stages themselves.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindEnvironment
	}
	for _, match := range functionErrorMatchers {
		if match(err) {
			return KindFunction
		}
	}
	return KindEnvironment
}

func isModerncFunctionError(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	// Extended codes keep the primary code in the low byte.
	return serr.Code()&0xff == sqlite3lib.SQLITE_ERROR
}

// Open connects to the target and verifies the connection. The pool is
// limited to one connection so every invocation runs on the same session,
// one after another.
func Open(ctx context.Context, cfg config.TargetConfig) (*sql.DB, error) {
	log := logging.Get(logging.CategoryTarget)

	driver, err := driverName(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DSN, err)
	}

	log.Info("connected to %s via %s", cfg.DSN, driver)
	return db, nil
}

func driverName(cfg config.TargetConfig) (string, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if len(cfg.Extensions) > 0 {
			return "", fmt.Errorf("the sqlite driver cannot load extensions")
		}
		return "sqlite", nil
	case "sqlite3":
		return cgoDriver(cfg.Extensions)
	default:
		return "", fmt.Errorf("unsupported target driver %q", cfg.Driver)
	}
}
