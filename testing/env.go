// Package testing is imported for side effects by tests that build the
// router or the binaries' wiring. It switches the console into test mode and
// points outbound dependencies at an unroutable port unless a test sets them.
package testing

import "os"

var unroutable = map[string]string{
	"RECONS_BACKEND_URL": "http://127.0.0.1:0",
	"SHEETS_HOST":        "http://127.0.0.1:0",
}

func init() {
	_ = os.Setenv("CONSOLE_TEST_MODE", "1")
	for key, value := range unroutable {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}
