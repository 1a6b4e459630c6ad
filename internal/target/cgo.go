//go:build cgo

package target

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
)

func init() {
	functionErrorMatchers = append(functionErrorMatchers, isMattnFunctionError)
}

func isMattnFunctionError(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code == sqlite3.ErrError
}

var (
	extDriversMu sync.Mutex
	extDrivers   = make(map[string]string)
)

// cgoDriver returns the mattn driver name, registering a dedicated driver
// per distinct extension list since database/sql drivers are global.
func cgoDriver(extensions []string) (string, error) {
	if len(extensions) == 0 {
		return "sqlite3", nil
	}

	key := strings.Join(extensions, "\x00")

	extDriversMu.Lock()
	defer extDriversMu.Unlock()

	if name, ok := extDrivers[key]; ok {
		return name, nil
	}
	name := fmt.Sprintf("sqlite3_extsweep_%d", len(extDrivers))
	sql.Register(name, &sqlite3.SQLiteDriver{
		Extensions: append([]string(nil), extensions...),
	})
	extDrivers[key] = name
	return name, nil
}
