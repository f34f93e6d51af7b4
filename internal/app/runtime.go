package app

import (
	"os"
	"strconv"
	"sync"
)

const testModeEnv = "POS_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	return on
})

// InTestMode reports whether binaries should return before opening connections.
// The flag is read once per process.
func InTestMode() bool {
	return testMode()
}
