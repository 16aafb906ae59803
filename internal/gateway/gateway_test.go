package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saladfingers379/RIS-SIONNA/internal/progress"
	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
	"github.com/saladfingers379/RIS-SIONNA/internal/scheduler"
)

func newTestGateway(t *testing.T) (*gin.Engine, *runstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	store, err := runstore.New(root)
	require.NoError(t, err)
	journal := progress.New(root)

	worker := filepath.Join(t.TempDir(), "fakeworker.sh")
	require.NoError(t, os.WriteFile(worker, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	sched := scheduler.New(store, journal, nil, scheduler.DefaultConfig(worker))
	t.Cleanup(sched.Shutdown)

	gw := New(store, journal, sched, nil, nil, Config{})
	router := gin.New()
	gw.Register(router)
	return router, store
}

func TestHandleListRuns_EmptyStore(t *testing.T) {
	router, _ := newTestGateway(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/runs", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body["runs"])
}

func TestHandleGetRun_NotFound(t *testing.T) {
	router, _ := newTestGateway(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/run/nonexistent", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlePostSimJob_EnqueuesAndReturnsRunID(t *testing.T) {
	router, _ := newTestGateway(t)
	body := `{"kind":"run","profile":"default","base_config":"base.yaml","scene":{"name":"lab"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/jobs", strings.NewReader(body))
	router.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["run_id"])
	assert.NotEmpty(t, resp["job_id"])
}

func TestHandlePostSimJob_RejectsUnknownFields(t *testing.T) {
	router, _ := newTestGateway(t)
	body := `{"kind":"run","scene":{},"bogus_field":1}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/jobs", strings.NewReader(body))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleServeRunFile_RejectsPathTraversal(t *testing.T) {
	router, store := newTestGateway(t)
	run, err := store.Allocate(runstore.KindSim)
	require.NoError(t, err)
	require.NoError(t, store.WriteAtomic(run, "summary.json", []byte(`{}`)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/runs/"+run.ID+"/../../etc/passwd", nil)
	router.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestHandleServeRunFile_ServesArtifact(t *testing.T) {
	router, store := newTestGateway(t)
	run, err := store.Allocate(runstore.KindSim)
	require.NoError(t, err)
	require.NoError(t, store.WriteAtomic(run, "summary.json", []byte(`{"ok":true}`)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/runs/"+run.ID+"/summary.json", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
