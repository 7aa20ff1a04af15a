package session

import (
	"testing"

	"go.uber.org/goleak"
)

// every test must Destroy the caches it creates
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
