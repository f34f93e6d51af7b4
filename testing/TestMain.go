// Package testing marks the process as a test run when blank-imported by a test binary,
// so app.InTestMode short-circuits the server and worker mains.
package testing

import (
	"os"
	stdtesting "testing"
)

// TestModeEnv is the variable app.InTestMode reads.
const TestModeEnv = "POS_TEST_MODE"

// testDefaults are applied only when the variable is unset.
var testDefaults = map[string]string{
	TestModeEnv:      "1",
	"GOTENBERG_URL":  "http://127.0.0.1:0",
	"SESSION_SECRET": "test-session-secret-0123",
}

func init() {
	for key, value := range testDefaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain runs m after init has applied the defaults.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
