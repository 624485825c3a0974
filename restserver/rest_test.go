// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/datalode/conveyor/memqueue"
	"github.com/datalode/conveyor/queue"
	"github.com/datalode/conveyor/restdata"
	"github.com/datalode/conveyor/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// call runs one request against a handler, encoding in (if non-nil)
// as V1 JSON and decoding the response body into out (if non-nil).
func call(t *testing.T, handler http.Handler, method, path string, in, out interface{}) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if in != nil {
		require.NoError(t, restdata.Encode(&body, in))
	}
	req := httptest.NewRequest(method, path, &body)
	if in != nil {
		req.Header.Set("Content-Type", restdata.V1JSONMediaType)
	}
	req.Header.Set("Accept", restdata.V1JSONMediaType)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		contentType := w.Header().Get("Content-Type")
		require.NoError(t, restdata.Decode(contentType, w.Body, out))
	}
	return w
}

func wireItem(resourceID string) restdata.Item {
	return restdata.Item{
		SourceSystem: "wiki",
		SourceName:   "enwiki",
		ResourceType: "page",
		ResourceID:   resourceID,
		RequestURI:   "https://example.com/" + resourceID,
	}
}

func TestRootDocument(t *testing.T) {
	router := NewRouter(memqueue.New(), nil)
	var root restdata.RootData
	w := call(t, router, "GET", "/", nil, &root)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/items", root.ItemsURL)
	assert.Equal(t, "/stats", root.StatsURL)
	assert.Equal(t, "/workers", root.WorkersURL)
	assert.Equal(t, "/control", root.ControlURL)
}

func TestEnqueueAndGet(t *testing.T) {
	router := NewRouter(memqueue.New(), nil)

	var created restdata.ItemCreated
	w := call(t, router, "POST", "/items", wireItem("42"), &created)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, created.Created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "/items/"+created.ID, w.Header().Get("Location"))

	var item restdata.Item
	w = call(t, router, "GET", "/items/"+created.ID, nil, &item)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", item.ResourceID)
	assert.Equal(t, "pending", item.Status)
	assert.NotNil(t, item.CreatedAt)

	// A duplicate enqueue is a plain 200 with created false.
	var dup restdata.ItemCreated
	w = call(t, router, "POST", "/items", wireItem("42"), &dup)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, dup.Created)
}

func TestEnqueueInvalid(t *testing.T) {
	router := NewRouter(memqueue.New(), nil)
	var resp restdata.ErrorResponse
	w := call(t, router, "POST", "/items", restdata.Item{SourceSystem: "wiki"}, &resp)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ErrMissingClassification", resp.Error)
}

func TestItemNotFound(t *testing.T) {
	router := NewRouter(memqueue.New(), nil)
	var resp restdata.ErrorResponse
	w := call(t, router, "GET", "/items/no-such-item", nil, &resp)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ErrNoSuchItem", resp.Error)
	assert.Equal(t, "no-such-item", resp.Value)
}

func TestListFilters(t *testing.T) {
	router := NewRouter(memqueue.New(), nil)
	call(t, router, "POST", "/items", wireItem("a"), nil)
	other := wireItem("b")
	other.SourceSystem = "rss"
	call(t, router, "POST", "/items", other, nil)

	var list restdata.ItemList
	w := call(t, router, "GET", "/items", nil, &list)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, list.Items, 2)

	w = call(t, router, "GET", "/items?source_system=rss", nil, &list)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "b", list.Items[0].ResourceID)

	w = call(t, router, "GET", "/items?status=completed", nil, &list)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, list.Items, 0)

	// Bad query parameters are the client's fault.
	var errResp restdata.ErrorResponse
	w = call(t, router, "GET", "/items?status=bogus", nil, &errResp)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	backend := memqueue.New()
	router := NewRouter(backend, nil)
	call(t, router, "POST", "/items", wireItem("a"), nil)
	call(t, router, "POST", "/items", wireItem("b"), nil)

	var stats restdata.Stats
	w := call(t, router, "GET", "/stats", nil, &stats)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 2, stats.Total)
}

func TestWorkers(t *testing.T) {
	backend := memqueue.New()
	router := NewRouter(backend, nil)
	require.NoError(t, backend.UpsertHeartbeat(queue.Heartbeat{
		WorkerID: "w1",
		State:    queue.WorkerIdle,
	}))

	var list restdata.WorkerList
	w := call(t, router, "GET", "/workers", nil, &list)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, list.Workers, 1)
	assert.Equal(t, "w1", list.Workers[0].WorkerID)
	assert.Equal(t, "idle", list.Workers[0].State)
}

func TestControl(t *testing.T) {
	control := runner.NewControl()
	router := NewRouter(memqueue.New(), control)

	var state restdata.ControlState
	w := call(t, router, "GET", "/control", nil, &state)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", state.State)

	w = call(t, router, "POST", "/control/pause", nil, &state)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paused", state.State)
	assert.True(t, control.Paused())

	w = call(t, router, "POST", "/control/resume", nil, &state)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", state.State)

	w = call(t, router, "POST", "/control/selfdestruct", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestControlWithoutWorkers(t *testing.T) {
	router := NewRouter(memqueue.New(), nil)
	w := call(t, router, "GET", "/control", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = call(t, router, "POST", "/control/pause", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecrawl(t *testing.T) {
	backend := memqueue.New()
	router := NewRouter(backend, nil)
	call(t, router, "POST", "/items", wireItem("a"), nil)

	item, err := backend.ClaimOne("w1", time.Minute, nil)
	require.NoError(t, err)
	_, err = backend.Complete(item.ID, "w1")
	require.NoError(t, err)

	var resp restdata.RecrawlResponse
	w := call(t, router, "POST", "/recrawl", restdata.RecrawlRequest{}, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, resp.Reset)
}

func TestRecover(t *testing.T) {
	clk := clock.NewMock()
	backend := memqueue.NewWithClock(clk)
	router := NewRouter(backend, nil)
	call(t, router, "POST", "/items", wireItem("a"), nil)

	_, err := backend.ClaimOne("w1", time.Minute, nil)
	require.NoError(t, err)
	clk.Add(2 * time.Minute)

	var resp restdata.RecoverResponse
	w := call(t, router, "POST", "/recover", nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, resp.Recovered)
}

func TestItemRunsAndArtifacts(t *testing.T) {
	backend := memqueue.New()
	router := NewRouter(backend, nil)

	var created restdata.ItemCreated
	call(t, router, "POST", "/items", wireItem("a"), &created)
	runID, err := backend.StartRun(created.ID, "w1", "llama3:8b", nil)
	require.NoError(t, err)
	require.NoError(t, backend.FinishRun(runID, queue.RunSucceeded,
		map[string]interface{}{"bytes": 12}, ""))
	require.NoError(t, backend.AttachArtifact(runID,
		queue.ArtifactRef{SHA256: "abc", ByteCount: 12},
		"response", "application/json", []byte(`{"title": "Go"}`)))

	var runs restdata.RunList
	w := call(t, router, "GET", "/items/"+created.ID+"/runs", nil, &runs)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, "succeeded", runs.Runs[0].Status)
	assert.Equal(t, "llama3:8b", runs.Runs[0].ModelIdentity)

	var artifacts restdata.ArtifactList
	w = call(t, router, "GET", "/runs/"+runID+"/artifacts", nil, &artifacts)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, artifacts.Artifacts, 1)
	assert.Equal(t, "response", artifacts.Artifacts[0].Type)
	assert.True(t, artifacts.Artifacts[0].StoredInSQL)
}

func TestUnsupportedMediaType(t *testing.T) {
	router := NewRouter(memqueue.New(), nil)
	req := httptest.NewRequest("POST", "/items", bytes.NewReader([]byte("<item/>")))
	req.Header.Set("Content-Type", "application/xml")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	router := NewRouter(memqueue.New(), nil)
	w := call(t, router, "POST", "/stats", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
