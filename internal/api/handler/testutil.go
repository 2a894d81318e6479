// Package handler provides test utilities for HTTP handler testing.
package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/internal/commit"
	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/engine"
	"github.com/draftforge/draftforge/internal/export"
	"github.com/draftforge/draftforge/internal/markdown"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/notification"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/internal/stream"
)

// SetupTestRouter creates a Gin router for testing.
// It sets Gin to test mode and applies basic middleware.
func SetupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// asUser returns a middleware that authenticates the request as the
// given user, standing in for the JWT middleware.
func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

// CreateTestRequest creates an HTTP request for testing.
func CreateTestRequest(method, url string, body interface{}) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, url, nil)
	}
	return req
}

// createUploadRequest builds a multipart upload request carrying content
// under the given form field and filename.
func createUploadRequest(t *testing.T, url, field, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// perform routes one request and returns the recorder.
func perform(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decodeBody unmarshals a JSON response body into a generic map.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "response should be valid JSON: %s", w.Body.String())
	return body
}

// testEnv bundles the full handler wiring around a real SQLite store,
// one user and one parsed document.
type testEnv struct {
	store    store.Store
	sections *section.Manager
	hub      *stream.Hub
	engine   *engine.Engine
	exports  *export.Manager
	commit   *commit.Committer
	cfg      *config.Config
	user     *model.User
	doc      *model.Document
	docPath  string
}

// setupEnv builds a testEnv whose document contains the given items.
// With no items the document still gets one heading so the tree is
// never empty.
func setupEnv(t *testing.T, items ...docx.TestItem) (*testEnv, func()) {
	t.Helper()

	s, cleanupDB := store.SetupTestDB(t)
	user := store.CreateTestUser(t, s)

	if len(items) == 0 {
		items = []docx.TestItem{
			{Heading: 1, Text: "Introduction"},
			{Text: "Opening paragraph."},
		}
	}

	dir := t.TempDir()
	docPath := filepath.Join(dir, "draft.docx")
	require.NoError(t, os.WriteFile(docPath, docx.BuildTestDocx(items...), 0644))

	row := store.CreateTestDocument(t, s, user.ID, func(d *model.Document) {
		d.Name = "draft.docx"
		d.StoredPath = docPath
		d.BackupPolicy = model.BackupNever
	})

	sections := section.NewManager()
	require.NoError(t, sections.EnsureLoaded(row.ID, docPath))

	cfg := &config.Config{}
	cfg.Server.Debug = false
	cfg.Upload.Dir = filepath.Join(dir, "uploads")
	cfg.Upload.MaxBytes = 1 << 20
	cfg.LLM.BaseURL = "http://llm.test"
	cfg.LLM.APIKey = "server-key"
	cfg.LLM.TimeoutSeconds = 30
	cfg.LLM.DefaultModel = "default-model"
	cfg.LLM.Temperature = 0.7
	cfg.LLM.MaxTokens = 4096
	cfg.Generation.QueueSize = 2
	cfg.Backup.Policy = string(model.BackupNever)
	cfg.Backup.Retention = 3
	cfg.Auth.JWTSecret = "handler-test-secret"
	cfg.Auth.TokenHours = 1
	cfg.Auth.RememberMeHours = 24
	cfg.Auth.AllowRegistration = true

	hub := stream.NewHub()
	committer := commit.NewCommitter(s, sections,
		markdown.NewConverter(markdown.Formatting{}), commit.NewBackupManager(cfg.Backup.Retention))
	eng := engine.NewEngine(cfg, s, sections, committer, hub, notification.NewManager(nil))

	env := &testEnv{
		store:    s,
		sections: sections,
		hub:      hub,
		engine:   eng,
		exports:  export.NewManager(),
		commit:   committer,
		cfg:      cfg,
		user:     user,
		doc:      row,
		docPath:  docPath,
	}
	cleanup := func() {
		eng.Stop()
		cleanupDB()
	}
	return env, cleanup
}
