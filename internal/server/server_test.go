package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/config"
	"github.com/sanspareilsmyn/sweeplens/internal/ingest"
	"github.com/sanspareilsmyn/sweeplens/internal/pipeline"
	"github.com/sanspareilsmyn/sweeplens/internal/render"
	"github.com/sanspareilsmyn/sweeplens/internal/stats"
	"github.com/sanspareilsmyn/sweeplens/internal/store"
	"github.com/sanspareilsmyn/sweeplens/internal/telemetry/telemetrytest"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	fs := afero.NewMemMapFs()
	logger := zap.NewNop()
	cfg := &config.Config{
		Sampling:   config.SamplingConfig{Period: 0.1},
		Processing: config.ProcessingConfig{Workers: 2},
		Server:     config.ServerConfig{Addr: ":0", MaxUploadMB: 8},
	}

	layout := ingest.NewLayout(fs, "/srv", logger)
	require.NoError(t, layout.Setup())
	gw := store.NewFS(fs, "/srv", logger)
	proc := pipeline.New(cfg, layout, gw, render.New(fs, layout.GraphDir, logger), pipeline.NopPublisher{}, logger)
	return New(cfg.Server, NewHandler(proc, layout, gw, logger), logger).Handler()
}

func uploadRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		w, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func logFile(flags ...float64) string {
	return telemetrytest.LogFile(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), telemetrytest.Flags(flags...))
}

func TestUploadThenQuery(t *testing.T) {
	h := newTestServer(t)

	rec := serve(h, uploadRequest(t, map[string]string{
		"SN1_2024_05_01_1200.log": logFile(0, 1, 1, 0),
		"notes.txt":               "hello",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var up uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	require.Equal(t, []string{"SN1_2024_05_01_1200.log"}, up.Stored)
	require.Len(t, up.Rejected, 1)
	require.Len(t, up.Runs, 1)
	require.Equal(t, "SN1", up.Runs[0].SN)
	require.Empty(t, up.Runs[0].Error)
	require.Equal(t, 1, up.Runs[0].Snapshot.FileCount)

	// The same file again is a duplicate and starts no run.
	rec = serve(h, uploadRequest(t, map[string]string{"SN1_2024_05_01_1200.log": logFile(0, 1, 1, 0)}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	require.Equal(t, []string{"SN1_2024_05_01_1200.log"}, up.Duplicates)
	require.Empty(t, up.Runs)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/SN1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, 1, snap.FileCount)
	require.EqualValues(t, 1, snap.Events.Count)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/data?sn=SN1&start=2024-05-01&end=2024-05-01", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/sns", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"sns":["SN1"]}`, rec.Body.String())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/graphs/SN1/correlation_matrix.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var m render.Matrix
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	require.Len(t, m.Labels, 4)
}

func TestUploadRejectsEverything(t *testing.T) {
	h := newTestServer(t)
	rec := serve(h, uploadRequest(t, map[string]string{"notes.txt": "hello"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", nil)
	rec = serve(h, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFoundAndBadInput(t *testing.T) {
	h := newTestServer(t)

	cases := []struct {
		url  string
		code int
	}{
		{"/api/v1/snapshots/SN404", http.StatusNotFound},
		{"/api/v1/data?sn=SN404", http.StatusNotFound},
		{"/api/v1/data", http.StatusBadRequest},
		{"/api/v1/data?sn=SN1&start=05/01/2024", http.StatusBadRequest},
		{"/api/v1/data?sn=SN1&start=2024-05-03&end=2024-05-01", http.StatusBadRequest},
		{"/api/v1/graphs/SN1/missing.json", http.StatusNotFound},
		{"/api/v1/graphs/SN1/values.txt", http.StatusBadRequest},
		{"/api/v1/data?sn=..%2F..%2Fetc", http.StatusBadRequest},
		{"/api/v1/data?sn=..", http.StatusBadRequest},
		{"/api/v1/snapshots/..", http.StatusBadRequest},
		{"/api/v1/graphs/../x.json", http.StatusBadRequest},
		{"/healthz", http.StatusOK},
		{"/metrics", http.StatusOK},
	}
	for _, tc := range cases {
		rec := serve(h, httptest.NewRequest(http.MethodGet, tc.url, nil))
		require.Equal(t, tc.code, rec.Code, tc.url)
	}
}
