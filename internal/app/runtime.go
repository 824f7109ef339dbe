package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeEnv makes the binaries exit before touching Postgres or Redis.
const TestModeEnv = "PEMBELIAN_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

func readTestMode() {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.on.Store(err == nil && on)
}

// InTestMode reports whether startup side effects should be skipped.
func InTestMode() bool {
	testMode.once.Do(readTestMode)
	return testMode.on.Load()
}

// RefreshTestMode re-reads the flag after the environment changed.
func RefreshTestMode() {
	readTestMode()
}
