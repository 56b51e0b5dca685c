package sst

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain checks that no test in this package (or the sst_test files
// sharing this test binary) leaks a goroutine — predicate scanners,
// heartbeat monitors, and rendezvous listeners must all be stopped by
// the test that started them.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
