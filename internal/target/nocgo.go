//go:build !cgo

package target

import "fmt"

func cgoDriver(extensions []string) (string, error) {
	return "", fmt.Errorf("the sqlite3 driver requires a cgo build")
}
