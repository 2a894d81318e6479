package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/pkg/errors"
)

func TestRedactKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"empty", "", ""},
		{"short key fully masked", "abcd", "****"},
		{"tiny key fully masked", "x", "****"},
		{"long key keeps last four", "sk-proj-1234567890", "****7890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redactKey(tt.key))
		})
	}
}

func TestValidFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     bool
	}{
		{"plain name", "report.docx", true},
		{"spaces ok", "annual report 2026.docx", true},
		{"empty", "", false},
		{"dot dot", "..", false},
		{"traversal", "../etc/passwd", false},
		{"forward slash", "a/b.docx", false},
		{"backslash", "a\\b.docx", false},
		{"null byte", "bad\x00.docx", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validFilename(tt.filename))
		})
	}
}

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		query        string
		wantPage     int
		wantPageSize int
	}{
		{"defaults", "", 1, 20},
		{"explicit", "?page=3&page_size=50", 3, 50},
		{"zero page clamped", "?page=0", 1, 20},
		{"negative page clamped", "?page=-2", 1, 20},
		{"oversize falls back to default", "?page_size=10000", 1, 20},
		{"garbage ignored", "?page=abc&page_size=xyz", 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/documents"+tt.query, nil)

			page, pageSize := parsePagination(c)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPageSize, pageSize)
		})
	}
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("app error keeps code and status", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, errors.New(errors.ErrCodeNotFound, "document d1 not found"))

		require.Equal(t, http.StatusNotFound, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, string(errors.ErrCodeNotFound), body["code"])
		assert.Equal(t, "document d1 not found", body["message"])
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, assert.AnError)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, string(errors.ErrCodeInternal), body["code"])
	})
}
