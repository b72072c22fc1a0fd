package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/ae-columns/internal/testutil"
)

func TestNewServerUsesConfiguredSchema(t *testing.T) {
	repo := seededRepo(t, testutil.WithMapping("blob1", "country"))
	executor := &testutil.MockExecutor{}
	executor.On("Execute", mock.Anything, testutil.TestCredentials(), "SELECT 'US'").
		Return(testutil.NewResult("x").Row("US").Build(), nil)

	srv := httptest.NewServer(newServer(testConfig(t), repo, executor).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/datasets/events/mappings")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/v1/datasets/events/mappings/blob6", strings.NewReader(`{"friendly_name":"x"}`))
	require.NoError(t, err)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "blob6 is outside the five configured blobs")

	resp, err = http.Post(srv.URL+"/v1/query", "application/json", strings.NewReader(`{"query":"SELECT {{c}}","params":{"c":"US"}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	executor.AssertExpectations(t)
}

func TestRunServeStopsWithContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.ListenAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(testutil.Context(t))
	cancel()

	assert.NoError(t, runServe(ctx, cfg, seededRepo(t)))
}
