package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("BACKOFFICE_TEST_MODE", "1")
	})
}

func init() {
	ensureTestMode()
}

// TestMain lets test packages delegate their entrypoint here to pick up
// the test-mode environment before any package init runs a server.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
