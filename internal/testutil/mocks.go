package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kyleking/ae-columns/internal/analytics"
	"github.com/kyleking/ae-columns/internal/mapping"
)

// MockExecutor implements analytics.Executor
type MockExecutor struct {
	mock.Mock
}

var _ analytics.Executor = (*MockExecutor)(nil)

// Execute records the call and returns the configured result
func (m *MockExecutor) Execute(ctx context.Context, creds analytics.Credentials, sql string) (*analytics.Result, error) {
	args := m.Called(ctx, creds, sql)

	var result *analytics.Result
	if r := args.Get(0); r != nil {
		result = r.(*analytics.Result)
	}

	return result, args.Error(1)
}

// MockClipboard implements mapping.ClipboardReader
type MockClipboard struct {
	mock.Mock
}

var _ mapping.ClipboardReader = (*MockClipboard)(nil)

// ReadText records the call and returns the configured text
func (m *MockClipboard) ReadText(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockCommitter implements mapping.Committer
type MockCommitter struct {
	mock.Mock
}

var _ mapping.Committer = (*MockCommitter)(nil)

// Commit records the collection passed in
func (m *MockCommitter) Commit(ctx context.Context, c mapping.Collection) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}
