// Package testutil provides common constants and utilities for tests
package testutil

import "time"

const (
	// TestTimeout is the default timeout for test operations
	TestTimeout = 30 * time.Second

	// ShortTestTimeout is a shorter timeout for quick operations
	ShortTestTimeout = 5 * time.Second

	// TestDataset is the dataset name used by fixtures
	TestDataset = "events"

	// TestAccountID and TestAPIToken are placeholder backend credentials
	TestAccountID = "test-account"
	TestAPIToken  = "test-token"

	// Column counts of the small schema returned by TestProvider
	TestBlobs   = 5
	TestDoubles = 3
	TestIndexes = 1

	// TestConcurrency is the number of workers used by concurrency tests
	TestConcurrency = 8
)
