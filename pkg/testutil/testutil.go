// Package testutil provides testing utilities for parquetflow
package testutil

import (
	"context"
	"runtime"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// RetryFull calls push until it returns something other than a backpressure
// error and returns that result. Tests use it to feed a sink faster than
// its consumer drains without losing records.
func RetryFull(t testing.TB, push func() error) error {
	t.Helper()

	deadline := time.Now().Add(30 * time.Second)
	for {
		err := push()
		if !flowerrors.IsRecoverable(err) {
			return err
		}
		if time.Now().After(deadline) {
			t.Fatalf("push still rejected as full after 30s")
		}
		runtime.Gosched()
	}
}
