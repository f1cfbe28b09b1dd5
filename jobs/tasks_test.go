package jobs

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewETLSyncTaskRoundTrip(t *testing.T) {
	task, err := NewETLSyncTask(ETLSyncPayload{JobID: "job-1", CompanyID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, TaskETLSync, task.Type())

	payload, err := ParseETLSyncPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "job-1", payload.JobID)
	assert.Equal(t, "acme", payload.CompanyID)
}

func TestNewETLSyncTaskRequiresIdentifiers(t *testing.T) {
	_, err := NewETLSyncTask(ETLSyncPayload{JobID: " ", CompanyID: "acme"})
	assert.Error(t, err)
	_, err = NewETLSyncTask(ETLSyncPayload{JobID: "job-1"})
	assert.Error(t, err)
}

func TestParseETLSyncPayloadRejectsIncomplete(t *testing.T) {
	_, err := ParseETLSyncPayload(asynq.NewTask(TaskETLSync, []byte(`{"job_id":"job-1"}`)))
	assert.Error(t, err)
	_, err = ParseETLSyncPayload(asynq.NewTask(TaskETLSync, []byte(`not json`)))
	assert.Error(t, err)
}

func TestNewETLSyncAllTask(t *testing.T) {
	task := NewETLSyncAllTask()
	assert.Equal(t, TaskETLSyncAll, task.Type())
	assert.Empty(t, task.Payload())
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	assert.Error(t, err)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil))).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, QueueDefault, body.Queue)
	assert.Zero(t, body.Pending)
}
