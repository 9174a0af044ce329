package testkit

import (
	"sync"
	"testing"
)

// serialMu backs Serial. One process-wide lock is enough; the seams the
// pipeline exposes (exec drivers, HTTP transports, clocks) are all
// package-level singletons
var serialMu sync.Mutex

// Swap replaces a package-level seam for the duration of the test and
// restores the original on cleanup. Pair with Serial when the seam is shared
// across test functions
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}

// Serial holds a process-wide lock until the test and its cleanups finish,
// keeping seam-mutating tests from interleaving under -test.parallel
func Serial(t *testing.T) {
	t.Helper()
	serialMu.Lock()
	t.Cleanup(serialMu.Unlock)
}
