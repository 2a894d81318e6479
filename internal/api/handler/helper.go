// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/draftforge/draftforge/pkg/errors"
)

// Pagination bounds shared by list endpoints
const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// respondError renders an application error with its mapped HTTP status.
// Unknown error types fall back to a generic internal error.
func respondError(c *gin.Context, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		c.JSON(appErr.HTTPStatus(), gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    errors.ErrCodeInternal,
		"message": "Internal server error",
	})
}

// currentUserID returns the authenticated user's id set by the JWT
// middleware. Handlers behind the auth group can rely on it being present.
func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// parsePagination reads page/page_size query parameters with clamping
func parsePagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))

	if page < 1 {
		page = defaultPage
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

// validFilename rejects names that could escape the upload directory
func validFilename(name string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return false
	}
	if strings.Contains(name, "\x00") {
		return false
	}
	cleaned := filepath.Clean(name)
	return cleaned == name && cleaned != "." && cleaned != ".."
}

// redactKey hides an API key down to its last four characters
func redactKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
