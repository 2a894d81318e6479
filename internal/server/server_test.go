// Package server provides HTTP server for the application.
// This file contains unit tests for the server package.
package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/internal/api/router"
	"github.com/draftforge/draftforge/internal/commit"
	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/engine"
	"github.com/draftforge/draftforge/internal/export"
	"github.com/draftforge/draftforge/internal/markdown"
	"github.com/draftforge/draftforge/internal/notification"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/internal/stream"
	"github.com/draftforge/draftforge/pkg/logger"
)

func init() {
	// Initialize logger for tests
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
}

// testDeps builds a server dependency set over a temp database
func testDeps(t *testing.T, cfg *config.Config) (router.Deps, func()) {
	t.Helper()

	testStore, cleanupDB := store.SetupTestDB(t)
	sections := section.NewManager()
	hub := stream.NewHub()
	committer := commit.NewCommitter(testStore, sections,
		markdown.NewConverter(markdown.Formatting{}), commit.NewBackupManager(cfg.Backup.Retention))
	eng := engine.NewEngine(cfg, testStore, sections, committer, hub, notification.NewManager(nil))

	deps := router.Deps{
		Store:     testStore,
		Sections:  sections,
		Committer: committer,
		Engine:    eng,
		Hub:       hub,
		Exports:   export.NewManager(),
	}
	cleanup := func() {
		eng.Stop()
		cleanupDB()
	}
	return deps, cleanup
}

func testConfig(host string, port int, debug bool) *config.Config {
	cfg := config.Default()
	cfg.Server.Host = host
	cfg.Server.Port = port
	cfg.Server.Debug = debug
	cfg.Auth.JWTSecret = "server-test-secret-0123456789abcdef"
	return cfg
}

// TestServer_New tests creating a new server instance
func TestServer_New(t *testing.T) {
	cfg := testConfig("localhost", 8080, false)
	deps, cleanup := testDeps(t, cfg)
	defer cleanup()

	srv := New(cfg, deps)
	require.NotNil(t, srv)
	assert.Equal(t, cfg, srv.cfg)
	assert.Equal(t, deps.Engine, srv.deps.Engine)
	assert.Equal(t, deps.Store, srv.deps.Store)
	assert.NotNil(t, srv.router)
}

// TestServer_SetupRoutes tests setting up routes
func TestServer_SetupRoutes(t *testing.T) {
	cfg := testConfig("localhost", 8080, false)
	deps, cleanup := testDeps(t, cfg)
	defer cleanup()

	srv := New(cfg, deps)
	srv.SetupRoutes()

	// The health endpoint is public and should answer without auth
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
}

// TestServer_Start tests starting the server
func TestServer_Start(t *testing.T) {
	// Port 0 gets an automatic port assignment in tests
	cfg := testConfig("localhost", 0, false)
	deps, cleanup := testDeps(t, cfg)
	defer cleanup()

	srv := New(cfg, deps)
	srv.SetupRoutes()

	err := srv.Start()
	require.NoError(t, err)
	assert.NotNil(t, srv.httpServer)

	// Stop the server
	err = srv.Stop()
	require.NoError(t, err)
}

// TestServer_Stop tests stopping the server
func TestServer_Stop(t *testing.T) {
	cfg := testConfig("localhost", 0, false)
	deps, cleanup := testDeps(t, cfg)
	defer cleanup()

	srv := New(cfg, deps)
	srv.SetupRoutes()

	// Stop without starting should not error
	err := srv.Stop()
	require.NoError(t, err)

	// Start and then stop
	err = srv.Start()
	require.NoError(t, err)

	// Give server a moment to start
	time.Sleep(100 * time.Millisecond)

	err = srv.Stop()
	require.NoError(t, err)
}

// TestServer_Stop_WithTimeout tests stopping server with timeout
func TestServer_Stop_WithTimeout(t *testing.T) {
	cfg := testConfig("localhost", 0, false)
	deps, cleanup := testDeps(t, cfg)
	defer cleanup()

	srv := New(cfg, deps)
	srv.SetupRoutes()

	err := srv.Start()
	require.NoError(t, err)

	// Stop should complete within timeout
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error)
	go func() {
		done <- srv.Stop()
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Stop() timed out")
	}
}

// TestServer_Router tests getting the router
func TestServer_Router(t *testing.T) {
	cfg := testConfig("localhost", 8080, false)
	deps, cleanup := testDeps(t, cfg)
	defer cleanup()

	srv := New(cfg, deps)
	r := srv.Router()

	assert.NotNil(t, r)
	assert.Equal(t, srv.router, r)
}

// TestServer_Address tests server address configuration
func TestServer_Address(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.ServerConfig
		expected string
	}{
		{
			name: "default port",
			cfg: config.ServerConfig{
				Host: "localhost",
				Port: 8080,
			},
			expected: "localhost:8080",
		},
		{
			name: "custom host and port",
			cfg: config.ServerConfig{
				Host: "0.0.0.0",
				Port: 3000,
			},
			expected: "0.0.0.0:3000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			address := tt.cfg.Address()
			assert.Equal(t, tt.expected, address)
		})
	}
}

// TestServer_DebugMode tests debug mode configuration
func TestServer_DebugMode(t *testing.T) {
	tests := []struct {
		name     string
		debug    bool
		expected string
	}{
		{
			name:     "debug mode enabled",
			debug:    true,
			expected: gin.DebugMode,
		},
		{
			name:     "debug mode disabled",
			debug:    false,
			expected: gin.ReleaseMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("localhost", 8080, tt.debug)
			deps, cleanup := testDeps(t, cfg)
			defer cleanup()

			_ = New(cfg, deps)
			assert.Equal(t, tt.expected, gin.Mode())
		})
	}
}

// TestServer_HTTPTimeouts tests HTTP server timeout configuration
func TestServer_HTTPTimeouts(t *testing.T) {
	cfg := testConfig("localhost", 0, false)
	deps, cleanup := testDeps(t, cfg)
	defer cleanup()

	srv := New(cfg, deps)
	srv.SetupRoutes()

	err := srv.Start()
	require.NoError(t, err)
	defer srv.Stop()

	// Verify timeout values are set
	assert.Equal(t, defaultReadTimeout, srv.httpServer.ReadTimeout)
	assert.Equal(t, defaultWriteTimeout, srv.httpServer.WriteTimeout)
	assert.Equal(t, defaultIdleTimeout, srv.httpServer.IdleTimeout)
}

// TestServer_RouterConfiguration tests router configuration
func TestServer_RouterConfiguration(t *testing.T) {
	cfg := testConfig("localhost", 8080, false)
	deps, cleanup := testDeps(t, cfg)
	defer cleanup()

	srv := New(cfg, deps)

	// Verify router configuration
	assert.False(t, srv.router.RedirectTrailingSlash)
	assert.False(t, srv.router.RedirectFixedPath)
}
