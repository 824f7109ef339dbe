// Package testing switches the binaries into test mode when imported by a test.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("PEMBELIAN_TEST_MODE", "1")
		if os.Getenv("PAYMENT_PROCESSING_DELAY") == "" {
			_ = os.Setenv("PAYMENT_PROCESSING_DELAY", "0s")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
