package preflight

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// CheckDaemonLock reports whether a daemon currently holds the lock file.
// Passed means the lock is free; a held lock is not an error, so Detail
// carries the state for status output either way.
func CheckDaemonLock(path string) Result {
	const name = "Daemon lock"

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Passed: true, Detail: "free (no lock file)"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}

	lock := flock.New(path)
	ok, err := lock.TryRLock()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if !ok {
		return Result{Name: name, Detail: "held by a running daemon"}
	}
	_ = lock.Unlock()
	return Result{Name: name, Passed: true, Detail: "free"}
}
