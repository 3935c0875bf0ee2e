package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/jobs"
	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/predict"
	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *jobs.Manager) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("api tests drive /bin/sh scripts")
	}
	registry := jobs.NewRegistry()
	logs := storage.NewLogStore(filepath.Join(t.TempDir(), "logs"))
	executor := jobs.NewExecutor(registry, logs, jobs.ExecutorOptions{MaxRunning: 2, GracePeriod: time.Second})
	manager := jobs.NewManager(registry, executor, logs, nil)
	builder := &predict.Builder{ScriptsDir: t.TempDir(), WorkDir: t.TempDir()}

	examplesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(examplesDir, "prot.yaml"), []byte("version: 1\n"), 0o644))

	srv := httptest.NewServer(NewServer(manager, builder, examplesDir, nil).Router())
	t.Cleanup(srv.Close)
	return srv, manager
}

func apiScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func waitTerminal(t *testing.T, m *jobs.Manager, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, err := m.Status(id)
		require.NoError(t, err)
		return rec.Status.Terminal()
	}, 10*time.Second, 10*time.Millisecond)
}

func TestSubmitAndStatusRoundTrip(t *testing.T) {
	srv, manager := newTestServer(t)
	script := apiScript(t, `echo done`)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", map[string]interface{}{
		"script_path": script,
		"args":        map[string]interface{}{"verbose": true},
		"job_name":    "api_test",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Contains(t, []string{"pending", "running"}, body["status"])

	waitTerminal(t, manager, jobID)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "api_test", body["name"])
	assert.NotEmpty(t, body["started_at"])
	assert.NotEmpty(t, body["finished_at"])
}

func TestSubmitValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", map[string]interface{}{
		"script_path": "",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "script path")

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/jobs", map[string]interface{}{
		"script_path": "/bin/true",
		"timeout":     "not-a-duration",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/jobs/nonexistent-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResultLifecycle(t *testing.T) {
	srv, manager := newTestServer(t)
	script := apiScript(t, `sleep 60`)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", map[string]interface{}{
		"script_path": script, "job_name": "slow",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID := body["job_id"].(string)

	// not terminal yet -> 409
	require.Eventually(t, func() bool {
		rec, err := manager.Status(jobID)
		require.NoError(t, err)
		return rec.Status == jobs.StatusRunning
	}, 5*time.Second, 10*time.Millisecond)
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+jobID+"/result", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// cancel, then the stored outcome comes back as data
	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+jobID+"/result", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])
	assert.NotEmpty(t, body["error"])

	// cancel is idempotent over HTTP too
	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])
}

func TestJobLogTail(t *testing.T) {
	srv, manager := newTestServer(t)
	script := apiScript(t, `for i in 1 2 3 4 5; do echo "line $i"; done`)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", map[string]interface{}{
		"script_path": script, "job_name": "lines",
	})
	jobID := body["job_id"].(string)
	waitTerminal(t, manager, jobID)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+jobID+"/log?tail=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), body["total_lines"])
	lines := body["lines"].([]interface{})
	require.Len(t, lines, 2)
	assert.Equal(t, "line 4", lines[0])
	assert.Equal(t, "line 5", lines[1])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+jobID+"/log?tail=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListJobs(t *testing.T) {
	srv, manager := newTestServer(t)
	script := apiScript(t, `true`)

	var ids []string
	for i := 0; i < 3; i++ {
		_, body := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", map[string]interface{}{
			"script_path": script, "job_name": fmt.Sprintf("job%d", i),
		})
		ids = append(ids, body["job_id"].(string))
	}
	for _, id := range ids {
		waitTerminal(t, manager, id)
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/jobs?status=completed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["jobs"], 3)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/jobs?status=running", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["jobs"])

	// unrecognized filters match nothing instead of failing
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/jobs?status=bogus", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["jobs"])
}

func TestPredictStructureSubmits(t *testing.T) {
	srv, manager := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/predict/structure", map[string]interface{}{
		"sequence": "MKVLFT",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID := body["job_id"].(string)

	// The scripts dir is empty, so the job fails to spawn. The submission
	// contract still held: a job id came back immediately.
	waitTerminal(t, manager, jobID)
	rec, err := manager.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "spawn failure")
}

func TestPredictStructureSyncReturnsOutcome(t *testing.T) {
	srv, _ := newTestServer(t)

	// The scripts dir is empty, so the run fails fast; the point is that
	// the response carries the terminal outcome instead of a pending id.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/predict/structure/sync", map[string]interface{}{
		"sequence": "MKVLFT",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "failed", body["status"])
	assert.NotEmpty(t, body["job_id"])
	assert.Contains(t, body["error"], "spawn failure")
}

func TestPredictAffinitySyncValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/predict/affinity/sync", map[string]interface{}{
		"protein_sequence": "MKV",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListExampleData(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/examples", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["examples_dir"])

	files := body["files"].([]interface{})
	require.Len(t, files, 1)
	entry := files[0].(map[string]interface{})
	assert.Equal(t, "prot.yaml", entry["name"])
	assert.Equal(t, "yaml_input", entry["type"])
	assert.Equal(t, float64(11), entry["size_bytes"])
}

func TestPredictValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/predict/structure", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/predict/affinity", map[string]interface{}{
		"protein_sequence": "MKV",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/predict/batch", map[string]interface{}{
		"sequences": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/validate/sequence", map[string]interface{}{
		"sequence": "MKVLFT",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, float64(6), body["sequence_length"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/validate/smiles", map[string]interface{}{
		"smiles": "CC(=O",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["valid"])
	assert.NotEmpty(t, body["error"])
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
