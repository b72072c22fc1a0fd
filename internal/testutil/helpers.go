package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/kyleking/ae-columns/internal/analytics"
	"github.com/kyleking/ae-columns/internal/schema"
)

// RunConcurrent executes the given function concurrently n times.
// Waits for all goroutines to complete before returning.
// Any panics are captured and reported as test failures.
func RunConcurrent(t *testing.T, n int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(n)

	for i := range n {
		go func(workerID int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("worker %d panicked: %v", workerID, r)
				}
			}()

			fn(workerID)
		}(i)
	}

	wg.Wait()
}

// Context returns a context cancelled after TestTimeout or at test cleanup
func Context(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	t.Cleanup(cancel)

	return ctx
}

// TestProvider returns a small Analytics Engine layout: blob1..5, double1..3, index1
func TestProvider() *schema.Static {
	return schema.AnalyticsEngine(TestBlobs, TestDoubles, TestIndexes)
}

// TestCredentials returns placeholder backend credentials
func TestCredentials() analytics.Credentials {
	return analytics.Credentials{AccountID: TestAccountID, APIToken: TestAPIToken}
}
