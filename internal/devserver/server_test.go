package devserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecopy/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := OpenStore(filepath.Join(t.TempDir(), "dev.db"))
	require.NoError(t, err)

	return NewServer(store, 0)
}

func request(t *testing.T, srv *Server, method, path, phone, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if phone != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer dev-"+phone)
	}

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func createJob(t *testing.T, srv *Server, phone string) string {
	t.Helper()

	rec := request(t, srv, http.MethodPost, "/copy", phone,
		`{"source_channel":"src","target_channel":"dst","real_time":false,"copy_media":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, string(model.JobStatusPending), res.Status)
	return res.ID
}

func TestCreateListGet(t *testing.T) {
	srv := newTestServer(t)
	id := createJob(t, srv, "555")

	rec := request(t, srv, http.MethodGet, "/jobs", "555", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Jobs []model.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Jobs, 1)
	assert.Equal(t, id, listing.Jobs[0].ID)
	assert.Equal(t, "555", listing.Jobs[0].Owner)

	rec = request(t, srv, http.MethodGet, "/jobs/"+id, "555", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, model.JobStatusPending, job.Status)
}

func TestAuthAndOwnership(t *testing.T) {
	srv := newTestServer(t)
	id := createJob(t, srv, "555")

	rec := request(t, srv, http.MethodGet, "/jobs", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(t, srv, http.MethodGet, "/jobs/"+id, "666", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = request(t, srv, http.MethodGet, "/jobs/unknown", "555", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Rejections on job-scoped routes must produce exactly one JSON body; a
// handler that keeps writing after the error response would concatenate a
// second document onto it.
func TestRejectionsWriteSingleBody(t *testing.T) {
	srv := newTestServer(t)
	id := createJob(t, srv, "555")

	cases := []struct {
		name string
		path string
		auth string
		code int
	}{
		{"get unknown", "/jobs/unknown", "555", http.StatusNotFound},
		{"get foreign", "/jobs/" + id, "666", http.StatusForbidden},
		{"stop unknown", "/copy/unknown/stop", "555", http.StatusNotFound},
		{"pause foreign", "/jobs/" + id + "/pause", "666", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			method := http.MethodGet
			if strings.Contains(tc.path, "stop") || strings.Contains(tc.path, "pause") {
				method = http.MethodPost
			}

			rec := request(t, srv, method, tc.path, tc.auth, "")
			assert.Equal(t, tc.code, rec.Code)

			var payload map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), "body must be one JSON document: %q", rec.Body.String())
			assert.NotEmpty(t, payload["detail"])
		})
	}
}

func TestStopFromPending(t *testing.T) {
	srv := newTestServer(t)
	id := createJob(t, srv, "555")

	rec := request(t, srv, http.MethodPost, "/copy/"+id+"/stop", "555", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = request(t, srv, http.MethodGet, "/jobs/"+id, "555", "")
	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, model.JobStatusStopped, job.Status)
	assert.NotNil(t, job.CompletedAt)

	// Terminal jobs reject further commands.
	rec = request(t, srv, http.MethodPost, "/jobs/"+id+"/pause", "555", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPauseResumeCycle(t *testing.T) {
	srv := newTestServer(t)
	id := createJob(t, srv, "555")

	// Pause is only legal from running; drive the record there directly.
	rec0, err := srv.store.ByID(id)
	require.NoError(t, err)
	rec0.Status = string(model.JobStatusRunning)
	now := time.Now().UTC()
	rec0.StartedAt = &now
	require.NoError(t, srv.store.Update(rec0))

	rec := request(t, srv, http.MethodPost, "/jobs/"+id+"/pause", "555", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ack struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, id, ack.JobID)
	assert.Equal(t, string(model.JobStatusPaused), ack.Status)

	rec = request(t, srv, http.MethodPost, "/jobs/"+id+"/resume", "555", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = request(t, srv, http.MethodPost, "/jobs/"+id+"/resume", "555", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "resume is only legal from paused")
}

func TestUsageReflectsJobs(t *testing.T) {
	srv := newTestServer(t)
	createJob(t, srv, "555")

	rec := request(t, srv, http.MethodGet, "/user/usage", "555", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Owner                  string `json:"phone_number"`
		TotalJobs              int    `json:"total_jobs_count"`
		HistoricalJobs         int    `json:"historical_jobs_count"`
		CanCreateJob           bool   `json:"can_create_job"`
		CanCreateHistoricalJob bool   `json:"can_create_historical_job"`
		CanCreateRealtimeJob   bool   `json:"can_create_realtime_job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "555", stats.Owner)
	assert.Equal(t, 1, stats.TotalJobs)
	assert.Equal(t, 1, stats.HistoricalJobs)
	assert.True(t, stats.CanCreateJob)
	assert.True(t, stats.CanCreateHistoricalJob)
	assert.True(t, stats.CanCreateRealtimeJob)
}

func TestSimulatorAdvancesJobs(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "dev.db"))
	require.NoError(t, err)

	created := time.Now().UTC().Add(-time.Minute)
	rec := &JobRecord{
		ID:            "sim1",
		Owner:         "555",
		SourceChannel: "src",
		TargetChannel: "dst",
		Status:        string(model.JobStatusPending),
		CreatedAt:     created,
	}
	require.NoError(t, store.Create(rec))

	sim := NewSimulator(store, time.Hour)

	sim.step()
	got, err := store.ByID("sim1")
	require.NoError(t, err)
	assert.Equal(t, string(model.JobStatusRunning), got.Status)
	require.NotNil(t, got.StartedAt)

	sim.step()
	got, err = store.ByID("sim1")
	require.NoError(t, err)
	assert.Greater(t, got.MessagesCopied, 0)

	// Paused jobs sit still.
	got.Status = string(model.JobStatusPaused)
	copied := got.MessagesCopied
	require.NoError(t, store.Update(got))
	sim.step()
	got, err = store.ByID("sim1")
	require.NoError(t, err)
	assert.Equal(t, copied, got.MessagesCopied)
}
