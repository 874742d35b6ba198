package app

import (
	"os"
	"sync"
)

// TestModeEnv set to "1" keeps cmd binaries from starting and silences the
// request logger.
const TestModeEnv = "CONSOLE_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports the TestModeEnv flag as read on first call.
func InTestMode() bool {
	return testMode()
}
