package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/errors"
)

func batchRouter(env *testEnv, logs store.JobLogStore, userID string) *gin.Engine {
	h := NewBatchHandler(env.engine, logs)
	r := SetupTestRouter()
	auth := asUser(userID)
	r.POST("/batch/start", auth, h.Start)
	r.GET("/batch", auth, h.List)
	r.GET("/batch/:job/status", auth, h.Status)
	r.GET("/batch/:job/logs", auth, h.Logs)
	r.POST("/batch/:job/pause", auth, h.Pause)
	r.POST("/batch/:job/resume", auth, h.Resume)
	r.POST("/batch/:job/cancel", auth, h.Cancel)
	return r
}

// waitJobStatus polls the job row until it reaches the wanted status.
func waitJobStatus(t *testing.T, s store.Store, jobID string, want model.JobStatus) *model.GenerationJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.Job().GetByID(jobID)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, want)
	return nil
}

func TestBatchStart(t *testing.T) {
	env, cleanup := setupEnv(t,
		docx.TestItem{Heading: 1, Text: "Intro"},
		docx.TestItem{Heading: 1, Text: "Methods"},
	)
	defer cleanup()
	env.useClient(&scriptedClient{content: "section text", tokens: 5})
	r := batchRouter(env, nil, env.user.ID)

	w := perform(r, CreateTestRequest(http.MethodPost, "/batch/start", map[string]interface{}{
		"document_id": env.doc.ID,
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeBody(t, w)
	taskID := body["task_id"].(string)
	require.NotEmpty(t, taskID)
	job := body["job"].(map[string]interface{})
	assert.Equal(t, taskID, job["id"])
	assert.Equal(t, float64(2), job["total"])

	done := waitJobStatus(t, env.store, taskID, model.JobStatusCompleted)
	assert.Equal(t, 2, done.Completed)
}

func TestBatchStart_Validation(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	r := batchRouter(env, nil, env.user.ID)

	t.Run("missing document_id", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/batch/start", map[string]interface{}{}))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(errors.ErrCodeValidation), decodeBody(t, w)["code"])
	})

	t.Run("bad mode", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/batch/start", map[string]interface{}{
			"document_id": env.doc.ID,
			"mode":        "sideways",
		}))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown document", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/batch/start", map[string]interface{}{
			"document_id": "no-such-doc",
		}))
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBatchStatusAndList(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	r := batchRouter(env, nil, env.user.ID)

	completed := store.CreateTestJob(t, env.store, env.doc.ID, env.user.ID, func(j *model.GenerationJob) {
		j.Status = model.JobStatusCompleted
	})
	store.CreateTestJob(t, env.store, env.doc.ID, env.user.ID, func(j *model.GenerationJob) {
		j.Status = model.JobStatusFailed
	})

	w := perform(r, CreateTestRequest(http.MethodGet, "/batch/"+completed.ID+"/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(model.JobStatusCompleted), decodeBody(t, w)["status"])

	t.Run("list all", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/batch", nil))
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, float64(2), body["total"])
	})

	t.Run("filter by status", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/batch?status=failed", nil))
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, float64(1), body["total"])
	})

	t.Run("invalid status filter", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/batch?status=exploded", nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown job", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/batch/no-such-job/status", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, string(errors.ErrCodeJobNotFound), decodeBody(t, w)["code"])
	})

	t.Run("foreign job", func(t *testing.T) {
		other := store.CreateTestUser(t, env.store)
		foreign := batchRouter(env, nil, other.ID)
		w := perform(foreign, CreateTestRequest(http.MethodGet, "/batch/"+completed.ID+"/status", nil))
		require.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestBatchLogs(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	logs, cleanupLogs := store.SetupTestJobLogDB(t)
	defer cleanupLogs()
	r := batchRouter(env, logs, env.user.ID)

	job := store.CreateTestJob(t, env.store, env.doc.ID, env.user.ID, func(j *model.GenerationJob) {
		j.Status = model.JobStatusCompleted
	})
	for i := 0; i < 3; i++ {
		store.CreateTestJobLog(t, logs, job.ID)
	}
	store.CreateTestJobLog(t, logs, job.ID, func(l *model.JobLog) {
		l.Level = model.LogLevelError
		l.Message = "section failed"
	})

	w := perform(r, CreateTestRequest(http.MethodGet, "/batch/"+job.ID+"/logs", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, float64(4), body["total"])
	assert.Len(t, body["data"].([]interface{}), 4)

	t.Run("level filter", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/batch/"+job.ID+"/logs?level=error", nil))
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, float64(1), body["total"])
		entry := body["data"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "section failed", entry["message"])
	})

	t.Run("invalid level", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/batch/"+job.ID+"/logs?level=loud", nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("pagination", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/batch/"+job.ID+"/logs?page=2&page_size=3", nil))
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, float64(4), body["total"])
		assert.Len(t, body["data"].([]interface{}), 1)
	})

	t.Run("unknown job", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/batch/no-such-job/logs", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBatchTransitionsOverREST(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	r := batchRouter(env, nil, env.user.ID)

	completed := store.CreateTestJob(t, env.store, env.doc.ID, env.user.ID, func(j *model.GenerationJob) {
		j.Status = model.JobStatusCompleted
	})

	t.Run("pause completed job refused", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/batch/"+completed.ID+"/pause", nil))
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, string(errors.ErrCodeJobBadTransition), decodeBody(t, w)["code"])
	})

	t.Run("resume completed job refused", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/batch/"+completed.ID+"/resume", nil))
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("cancel completed job refused", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/batch/"+completed.ID+"/cancel", nil))
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("cancel paused job", func(t *testing.T) {
		paused := store.CreateTestJob(t, env.store, env.doc.ID, env.user.ID, func(j *model.GenerationJob) {
			j.Status = model.JobStatusPaused
		})
		w := perform(r, CreateTestRequest(http.MethodPost, "/batch/"+paused.ID+"/cancel", nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, string(model.JobStatusCancelled), decodeBody(t, w)["status"])
	})
}
