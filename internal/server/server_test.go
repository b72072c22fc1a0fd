package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/ae-columns/internal/analytics"
	"github.com/kyleking/ae-columns/internal/errors"
	"github.com/kyleking/ae-columns/internal/mapping"
	"github.com/kyleking/ae-columns/internal/storage"
	"github.com/kyleking/ae-columns/internal/testutil"
)

type testServer struct {
	*Server
	repo     *storage.DuckDBRepository
	executor *testutil.MockExecutor
}

func newTestServer(t *testing.T, creds analytics.Credentials) *testServer {
	t.Helper()

	repo := storage.NewTestDB(t)
	executor := &testutil.MockExecutor{}

	s := New(Options{
		Repository:  repo,
		Provider:    testutil.TestProvider(),
		Executor:    executor,
		Credentials: creds,
		RateLimit:   RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	})

	return &testServer{Server: s, repo: repo, executor: executor}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header[k] = v
	}

	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	return rec
}

type mappingsBody struct {
	Dataset  string                  `json:"dataset"`
	Mappings []mapping.ColumnMapping `json:"mappings"`
	Handled  bool                    `json:"handled"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

func TestHealthAndRequestID(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})

	rec := ts.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = ts.do(t, http.MethodGet, "/healthz", nil, http.Header{"X-Request-Id": {"abc-123"}})
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestMappingLifecycle(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})
	base := "/v1/datasets/events/mappings"

	rec := ts.do(t, http.MethodPut, base+"/blob1", map[string]string{"friendly_name": "country", "description": "ISO"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[mappingsBody](t, rec)
	require.Len(t, body.Mappings, 1)
	assert.Equal(t, "country", body.Mappings[0].FriendlyName)

	rec = ts.do(t, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[mappingsBody](t, rec).Mappings, 1)

	stored, err := ts.repo.LoadMappings(context.Background(), "events")
	require.NoError(t, err)
	assert.Equal(t, "country", stored.FriendlyName("blob1"), "writes are persisted")

	rec = ts.do(t, http.MethodDelete, base+"/blob1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[mappingsBody](t, rec).Mappings)

	rec = ts.do(t, http.MethodDelete, base+"/blob1", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetMappingKeepsNameAsSupplied(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})
	base := "/v1/datasets/events/mappings/blob2"

	rec := ts.do(t, http.MethodPut, base, map[string]string{"friendly_name": " City Name "}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[mappingsBody](t, rec)
	require.Len(t, body.Mappings, 1)
	assert.Equal(t, " City Name ", body.Mappings[0].FriendlyName)

	rec = ts.do(t, http.MethodPut, base, map[string]string{"friendly_name": "  "}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[mappingsBody](t, rec).Mappings, "a blank name unmaps the column")
}

func TestSetMappingErrors(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})

	rec := ts.do(t, http.MethodPut, "/v1/datasets/events/mappings/blob99", map[string]string{"friendly_name": "x"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/v1/datasets/events/mappings/blob1", bytes.NewBufferString("{"))
	bad := httptest.NewRecorder()
	ts.Handler().ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	errBody := decode[errorResponse](t, bad)
	assert.Equal(t, string(errors.ErrTypeValidation), errBody.Type)
	assert.NotEmpty(t, errBody.RequestID)
}

func TestPaste(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})
	path := "/v1/datasets/events/mappings/paste"

	rec := ts.do(t, http.MethodPost, path, map[string]string{"column": "blob2", "text": "a, b ,c"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[mappingsBody](t, rec)
	assert.True(t, body.Handled)
	require.Len(t, body.Mappings, 3)
	assert.Equal(t, "blob2", body.Mappings[0].SourceColumn)
	assert.Equal(t, "b", body.Mappings[1].FriendlyName)
	assert.Equal(t, "blob4", body.Mappings[2].SourceColumn)

	rec = ts.do(t, http.MethodPost, path, map[string]string{"column": "blob1", "text": "hello"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body = decode[mappingsBody](t, rec)
	assert.False(t, body.Handled)
	assert.Len(t, body.Mappings, 3, "non CSV paste leaves mappings unchanged")
}

func TestClearMappings(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})
	base := "/v1/datasets/events/mappings"

	ts.do(t, http.MethodPost, base+"/paste", map[string]string{"column": "double1", "text": "x,y"}, nil)

	rec := ts.do(t, http.MethodDelete, base, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[mappingsBody](t, rec).Mappings)

	stored, err := ts.repo.LoadMappings(context.Background(), "events")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Len())
}

func TestSchemaEndpoint(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})
	ts.do(t, http.MethodPut, "/v1/datasets/events/mappings/index1", map[string]string{"friendly_name": "tenant"}, nil)

	rec := ts.do(t, http.MethodGet, "/v1/schema?dataset=events", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Categories []schemaCategory `json:"categories"`
	}](t, rec)

	require.Len(t, body.Categories, 3)
	assert.Equal(t, "blob", string(body.Categories[0].Type))
	assert.Len(t, body.Categories[0].Columns, testutil.TestBlobs)
	assert.Equal(t, "tenant", body.Categories[2].Columns[0].FriendlyName)
}

func TestListDatasets(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})
	ts.do(t, http.MethodPut, "/v1/datasets/requests/mappings/blob1", map[string]string{"friendly_name": "path"}, nil)

	rec := ts.do(t, http.MethodGet, "/v1/datasets", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"requests"`)
}

func TestQuery(t *testing.T) {
	ts := newTestServer(t, testutil.TestCredentials())
	ts.do(t, http.MethodPut, "/v1/datasets/events/mappings/blob1", map[string]string{"friendly_name": "country"}, nil)

	result := testutil.NewResult("blob1", "hits").Row("US", 12).Build()

	ts.executor.On("Execute", mock.Anything, testutil.TestCredentials(),
		"SELECT blob1, count() AS hits FROM events WHERE blob1 = 'O''Brien' AND timestamp > NOW() - INTERVAL '7' DAY LIMIT 10 {{later}}",
	).Return(result, nil).Once()

	rec := ts.do(t, http.MethodPost, "/v1/query", map[string]any{
		"query":    "SELECT blob1, count() AS hits FROM events WHERE blob1 = {{who}} AND timestamp > NOW() - INTERVAL {{since}} LIMIT {{n}} {{later}}",
		"params":   map[string]any{"who": "O'Brien", "since": "'7' DAY", "n": 10},
		"dataset":  "events",
		"friendly": true,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "later", rec.Header().Get("X-Unresolved-Params"))
	assert.Contains(t, rec.Body.String(), `"country":"US"`)
	ts.executor.AssertExpectations(t)
}

func TestQueryCredentialsFromHeaders(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})
	creds := analytics.Credentials{AccountID: "hdr", APIToken: "secret"}

	ts.executor.On("Execute", mock.Anything, creds, "SELECT 1").
		Return(testutil.NewResult("1").Row(1).Build(), nil).Once()

	rec := ts.do(t, http.MethodPost, "/v1/query", map[string]any{"query": "SELECT 1"}, http.Header{
		"X-Account-Id":  {"hdr"},
		"Authorization": {"Bearer secret"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	ts.executor.AssertExpectations(t)
}

func TestQueryErrors(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})

	rec := ts.do(t, http.MethodPost, "/v1/query", map[string]any{"query": "SELECT 1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, decode[errorResponse](t, rec).Suggestions)

	ts = newTestServer(t, testutil.TestCredentials())

	rec = ts.do(t, http.MethodPost, "/v1/query", map[string]any{"query": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/query", map[string]any{"query": "SELECT {{b}}", "params": map[string]any{"b": true}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.executor.On("Execute", mock.Anything, mock.Anything, "SELECT 2").
		Return(nil, errors.New(errors.ErrTypeBackend, "API request failed with status 422")).Once()

	rec = ts.do(t, http.MethodPost, "/v1/query", map[string]any{"query": "SELECT 2"}, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	ts.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, "SELECT 1")
}

func TestQueryRateLimit(t *testing.T) {
	repo := storage.NewTestDB(t)
	executor := &testutil.MockExecutor{}
	executor.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(testutil.NewResult("x").Build(), nil)

	s := New(Options{
		Repository:  repo,
		Provider:    testutil.TestProvider(),
		Executor:    executor,
		Credentials: testutil.TestCredentials(),
		RateLimit:   RateLimitConfig{RequestsPerSecond: 1, Burst: 2},
	})

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewBufferString(`{"query":"SELECT 1"}`))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	// mapping routes are not limited
	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/v1/datasets/events/mappings", nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})

	req := httptest.NewRequest(http.MethodOptions, "/v1/query", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t, analytics.Credentials{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- ts.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(testutil.ShortTestTimeout):
		t.Fatal("server did not shut down")
	}
}
