package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdlconv/internal/history"
	"cdlconv/internal/mapping"
	"cdlconv/internal/middleware"
	"cdlconv/internal/service"
)

type staticSource struct {
	table *mapping.Table
	err   error
}

func (s *staticSource) Load() (*mapping.Table, error) { return s.table, s.err }

func testMappingTable() *mapping.Table {
	return mapping.New([]mapping.Row{{
		LegacySchema: "s", LegacyTable: "t", LegacyColumn: "c",
		CDLSchema: "cs", CDLTable: "ct", CDLColumn: "cc",
	}})
}

func setupTestServer(t *testing.T, src service.MappingSource, withHistory bool) (*httptest.Server, *staticSource) {
	t.Helper()

	static, _ := src.(*staticSource)
	if src == nil {
		static = &staticSource{table: testMappingTable()}
		src = static
	}

	var store *history.Store
	if withHistory {
		var err error
		store, err = history.Open(filepath.Join(t.TempDir(), "history.sqlite"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
	}

	var recorder service.HistoryRecorder
	if store != nil {
		recorder = store
	}
	converter, err := service.NewConvertService(service.ConvertServiceDeps{
		Source:  src,
		History: recorder,
		Logger:  slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	handler := NewHandler(converter, store, slog.New(slog.DiscardHandler))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/healthz", handler.Healthz)
	r.Route("/v1", func(r chi.Router) {
		handler.Routes(r)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, static
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestConvertEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, nil, false)

	resp := postJSON(t, srv.URL+"/v1/convert", map[string]string{
		"query": "SELECT a.c FROM s.t a",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body["query"], "a.cc")
	cm := body["column_mapping"].(map[string]interface{})
	assert.Equal(t, "cs.ct.cc", cm["s.t.c"])
}

func TestConvertEndpoint_InvalidSQL(t *testing.T) {
	srv, _ := setupTestServer(t, nil, false)

	resp := postJSON(t, srv.URL+"/v1/convert", map[string]string{
		"query": "SELECT FROM WHERE",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "SQL_PARSE_ERROR", body["code"])
	assert.NotEmpty(t, body["request_id"], "error envelope should carry the request id")
}

func TestConvertEndpoint_UnsupportedDialect(t *testing.T) {
	srv, _ := setupTestServer(t, nil, false)

	resp := postJSON(t, srv.URL+"/v1/convert", map[string]string{
		"query":   "SELECT 1",
		"dialect": "mysql",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "UNSUPPORTED_DIALECT", decodeBody(t, resp)["code"])
}

func TestConvertEndpoint_MissingQuery(t *testing.T) {
	srv, _ := setupTestServer(t, nil, false)

	resp := postJSON(t, srv.URL+"/v1/convert", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody(t, resp)["code"])
}

func TestConvertEndpoint_MalformedJSON(t *testing.T) {
	srv, _ := setupTestServer(t, nil, false)

	resp, err := http.Post(srv.URL+"/v1/convert", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBatchEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, nil, false)

	resp := postJSON(t, srv.URL+"/v1/convert/batch", map[string]interface{}{
		"requests": []map[string]string{
			{"query": "SELECT a.c FROM s.t a"},
			{"query": "SELECT FROM WHERE"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.EqualValues(t, 2, body["count"])
	results := body["results"].([]interface{})
	require.Len(t, results, 2)

	first := results[0].(map[string]interface{})
	assert.NotNil(t, first["response"])
	second := results[1].(map[string]interface{})
	assert.NotEmpty(t, second["error"])
}

func TestBatchEndpoint_Empty(t *testing.T) {
	srv, _ := setupTestServer(t, nil, false)

	resp := postJSON(t, srv.URL+"/v1/convert/batch", map[string]interface{}{"requests": []map[string]string{}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, nil, false)

	resp := postJSON(t, srv.URL+"/v1/convert/report", map[string]string{
		"query": "SELECT a.c FROM s.t a",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	var b bytes.Buffer
	_, err := b.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, b.String(), "a.cc")
}

func TestHistoryEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, nil, true)

	for i := 0; i < 3; i++ {
		resp := postJSON(t, srv.URL+"/v1/convert", map[string]string{"query": "SELECT a.c FROM s.t a"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/v1/history?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.EqualValues(t, 3, body["total"])
	assert.Len(t, body["records"], 2)
}

func TestHistoryEndpoint_Disabled(t *testing.T) {
	srv, _ := setupTestServer(t, nil, false)

	resp, err := http.Get(srv.URL + "/v1/history")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMappingReloadEndpoint(t *testing.T) {
	src := &staticSource{table: testMappingTable()}
	srv, static := setupTestServer(t, src, false)

	static.table = mapping.New([]mapping.Row{
		{LegacyTable: "t1", LegacyColumn: "a", CDLColumn: "x", CDLTable: "x", CDLSchema: "x"},
		{LegacyTable: "t2", LegacyColumn: "b", CDLColumn: "y", CDLTable: "y", CDLSchema: "y"},
	})

	resp := postJSON(t, srv.URL+"/v1/mapping/reload", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "reloaded", body["status"])
	assert.EqualValues(t, 2, body["rows"])
}

func TestMappingReloadEndpoint_Failure(t *testing.T) {
	src := &staticSource{table: testMappingTable()}
	srv, static := setupTestServer(t, src, false)

	static.err = fmt.Errorf("mapping file vanished")

	resp := postJSON(t, srv.URL+"/v1/mapping/reload", nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "RELOAD_ERROR", decodeBody(t, resp)["code"])
}

func TestHealthz(t *testing.T) {
	srv, _ := setupTestServer(t, nil, false)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["mapping_rows"])
}
