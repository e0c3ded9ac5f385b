package app

import (
	"os"
	"strconv"
)

// TestModeEnv switches both binaries into a no-op start so package tests can
// import them without opening stores or queues.
const TestModeEnv = "STOCKCOUNT_TEST_MODE"

// InTestMode reports whether STOCKCOUNT_TEST_MODE is set to a true value.
func InTestMode() bool {
	return testModeFrom(os.LookupEnv)
}

func testModeFrom(lookup func(string) (string, bool)) bool {
	raw, ok := lookup(TestModeEnv)
	if !ok {
		return false
	}
	on, err := strconv.ParseBool(raw)
	return err == nil && on
}
