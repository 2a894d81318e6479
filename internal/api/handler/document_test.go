package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/errors"
)

// documentRouter mounts the document routes authenticated as userID
func documentRouter(env *testEnv, userID string) *gin.Engine {
	h := NewDocumentHandler(env.store, env.sections, env.commit, env.exports, env.cfg)
	r := SetupTestRouter()
	auth := asUser(userID)
	r.POST("/documents/upload", auth, h.Upload)
	r.GET("/documents", auth, h.List)
	r.GET("/documents/:id", auth, h.Get)
	r.POST("/documents/:id/commit", auth, h.Commit)
	r.GET("/documents/:id/download", auth, h.Download)
	r.GET("/documents/:id/export", auth, h.Export)
	r.DELETE("/documents/:id", auth, h.Delete)
	return r
}

func TestDocumentUpload(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	r := documentRouter(env, env.user.ID)

	content := docx.BuildTestDocx(
		docx.TestItem{Heading: 1, Text: "Overview"},
		docx.TestItem{Text: "Context paragraph."},
		docx.TestItem{Heading: 2, Text: "Goals"},
	)

	w := perform(r, createUploadRequest(t, "/documents/upload", "file", "report.docx", content))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeBody(t, w)
	doc := body["document"].(map[string]interface{})
	assert.Equal(t, "report.docx", doc["name"])
	assert.Equal(t, float64(2), doc["section_count"])
	id := doc["id"].(string)
	require.NotEmpty(t, id)

	sections := body["sections"].([]interface{})
	require.Len(t, sections, 1)
	root := sections[0].(map[string]interface{})
	assert.Equal(t, "Overview", root["title"])
	assert.Equal(t, true, root["has_content"])
	children := root["children"].([]interface{})
	require.Len(t, children, 1)
	assert.Equal(t, "Goals", children[0].(map[string]interface{})["title"])

	// Stored under <upload_dir>/<id>_<name> and registered in the DB
	storedPath := filepath.Join(env.cfg.Upload.Dir, id+"_report.docx")
	_, err := os.Stat(storedPath)
	assert.NoError(t, err)

	row, err := env.store.Document().GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, env.user.ID, row.OwnerID)
	assert.Equal(t, storedPath, row.StoredPath)
}

func TestDocumentUpload_Rejections(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	r := documentRouter(env, env.user.ID)

	t.Run("missing file field", func(t *testing.T) {
		w := perform(r, createUploadRequest(t, "/documents/upload", "attachment", "report.docx", []byte("x")))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(errors.ErrCodeValidation), decodeBody(t, w)["code"])
	})

	t.Run("wrong extension", func(t *testing.T) {
		w := perform(r, createUploadRequest(t, "/documents/upload", "file", "notes.txt", []byte("plain text")))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(errors.ErrCodeDocumentFormat), decodeBody(t, w)["code"])
	})

	t.Run("oversize upload", func(t *testing.T) {
		env.cfg.Upload.MaxBytes = 16
		defer func() { env.cfg.Upload.MaxBytes = 1 << 20 }()

		content := docx.BuildTestDocx(docx.TestItem{Heading: 1, Text: "Big"})
		w := perform(r, createUploadRequest(t, "/documents/upload", "file", "big.docx", content))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(errors.ErrCodeDocumentTooLarge), decodeBody(t, w)["code"])
	})

	t.Run("corrupt docx removed after parse failure", func(t *testing.T) {
		w := perform(r, createUploadRequest(t, "/documents/upload", "file", "broken.docx", []byte("not a zip archive")))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(errors.ErrCodeDocumentFormat), decodeBody(t, w)["code"])

		entries, err := os.ReadDir(env.cfg.Upload.Dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), "broken.docx")
		}
	})
}

func TestDocumentList(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	r := documentRouter(env, env.user.ID)

	store.CreateTestDocument(t, env.store, env.user.ID, func(d *model.Document) {
		d.Name = "second.docx"
	})

	// Another user's document stays invisible
	other := store.CreateTestUser(t, env.store)
	store.CreateTestDocument(t, env.store, other.ID, func(d *model.Document) {
		d.Name = "foreign.docx"
	})

	w := perform(r, CreateTestRequest(http.MethodGet, "/documents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["total"])
	assert.Len(t, body["data"].([]interface{}), 2)

	t.Run("pagination", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/documents?page=1&page_size=1", nil))
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, float64(2), body["total"])
		assert.Len(t, body["data"].([]interface{}), 1)
		assert.Equal(t, float64(1), body["page_size"])
	})
}

func TestDocumentGet(t *testing.T) {
	env, cleanup := setupEnv(t,
		docx.TestItem{Heading: 1, Text: "Intro"},
		docx.TestItem{Text: "Some prose."},
	)
	defer cleanup()
	r := documentRouter(env, env.user.ID)

	w := perform(r, CreateTestRequest(http.MethodGet, "/documents/"+env.doc.ID, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, env.doc.ID, body["document"].(map[string]interface{})["id"])

	sections := body["sections"].([]interface{})
	require.Len(t, sections, 1)
	root := sections[0].(map[string]interface{})
	assert.Equal(t, "Intro", root["title"])
	assert.Equal(t, "Some prose.", root["content"])
	assert.Equal(t, false, root["edited"])

	t.Run("unknown id", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/documents/no-such-id", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, string(errors.ErrCodeNotFound), decodeBody(t, w)["code"])
	})

	t.Run("foreign owner", func(t *testing.T) {
		other := store.CreateTestUser(t, env.store)
		foreign := documentRouter(env, other.ID)
		w := perform(foreign, CreateTestRequest(http.MethodGet, "/documents/"+env.doc.ID, nil))
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, string(errors.ErrCodeForbidden), decodeBody(t, w)["code"])
	})
}

func TestDocumentCommit(t *testing.T) {
	env, cleanup := setupEnv(t,
		docx.TestItem{Heading: 1, Text: "Intro"},
		docx.TestItem{Text: "old text"},
	)
	defer cleanup()
	r := documentRouter(env, env.user.ID)

	_, tree, _ := env.sections.Get(env.doc.ID)
	target := tree.Flat[0]

	w := perform(r, CreateTestRequest(http.MethodPost, "/documents/"+env.doc.ID+"/commit", map[string]interface{}{
		"section_id": target.ID,
		"content":    "Fresh **bold** words",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := decodeBody(t, w)["commit"].(map[string]interface{})
	assert.Equal(t, float64(1), result["blocks_added"])
	assert.Equal(t, true, result["saved"], "commit saves by default")

	// The tree now reports the section edited with the new content
	w = perform(r, CreateTestRequest(http.MethodGet, "/documents/"+env.doc.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	root := decodeBody(t, w)["sections"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Fresh bold words", root["content"])
	assert.Equal(t, true, root["edited"])

	t.Run("missing content", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/documents/"+env.doc.ID+"/commit", map[string]interface{}{
			"section_id": target.ID,
		}))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad mode", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/documents/"+env.doc.ID+"/commit", map[string]interface{}{
			"section_id": target.ID,
			"content":    "text",
			"mode":       "sideways",
		}))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(errors.ErrCodeValidation), decodeBody(t, w)["code"])
	})

	t.Run("unknown section", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/documents/"+env.doc.ID+"/commit", map[string]interface{}{
			"section_id": "missing-section",
			"content":    "text",
		}))
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDocumentDownload(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	r := documentRouter(env, env.user.ID)

	onDisk, err := os.ReadFile(env.docPath)
	require.NoError(t, err)

	w := perform(r, CreateTestRequest(http.MethodGet, "/documents/"+env.doc.ID+"/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "draft.docx")
	assert.Equal(t, onDisk, w.Body.Bytes())
}

func TestDocumentExport(t *testing.T) {
	env, cleanup := setupEnv(t,
		docx.TestItem{Heading: 1, Text: "Intro"},
		docx.TestItem{Text: "Body text."},
	)
	defer cleanup()
	r := documentRouter(env, env.user.ID)

	t.Run("markdown by default", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/documents/"+env.doc.ID+"/export", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
		assert.Contains(t, w.Header().Get("Content-Disposition"), "draft.md")
		assert.Contains(t, w.Body.String(), "# Intro")
		assert.Contains(t, w.Body.String(), "Body text.")
	})

	t.Run("json", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/documents/"+env.doc.ID+"/export?format=json", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
		body := decodeBody(t, w)
		assert.NotEmpty(t, body)
	})

	t.Run("unsupported format", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodGet, "/documents/"+env.doc.ID+"/export?format=docbook", nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(errors.ErrCodeValidation), decodeBody(t, w)["code"])
	})
}

func TestDocumentDelete(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	r := documentRouter(env, env.user.ID)

	// Commit once so the tracking sidecar exists on disk
	_, tree, _ := env.sections.Get(env.doc.ID)
	w := perform(r, CreateTestRequest(http.MethodPost, "/documents/"+env.doc.ID+"/commit", map[string]interface{}{
		"section_id": tree.Flat[0].ID,
		"content":    "edited",
	}))
	require.Equal(t, http.StatusOK, w.Code)
	sidecar := section.SidecarPath(env.docPath)
	_, err := os.Stat(sidecar)
	require.NoError(t, err)

	w = perform(r, CreateTestRequest(http.MethodDelete, "/documents/"+env.doc.ID, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, err = os.Stat(env.docPath)
	assert.True(t, os.IsNotExist(err), "stored file removed")
	_, err = os.Stat(sidecar)
	assert.True(t, os.IsNotExist(err), "tracking sidecar removed")

	_, err = env.store.Document().GetByID(env.doc.ID)
	assert.Equal(t, gorm.ErrRecordNotFound, err)

	w = perform(r, CreateTestRequest(http.MethodGet, "/documents/"+env.doc.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentDelete_ActiveJobRefused(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	r := documentRouter(env, env.user.ID)

	store.CreateTestJob(t, env.store, env.doc.ID, env.user.ID, func(j *model.GenerationJob) {
		j.Status = model.JobStatusRunning
	})

	w := perform(r, CreateTestRequest(http.MethodDelete, "/documents/"+env.doc.ID, nil))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(errors.ErrCodeConflict), decodeBody(t, w)["code"])

	// Everything still in place
	_, err := os.Stat(env.docPath)
	assert.NoError(t, err)
	_, err = env.store.Document().GetByID(env.doc.ID)
	assert.NoError(t, err)
}
