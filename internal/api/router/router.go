// Package router sets up the API routes for the application.
package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/draftforge/draftforge/consts"
	"github.com/draftforge/draftforge/internal/api/handler"
	"github.com/draftforge/draftforge/internal/api/middleware"
	"github.com/draftforge/draftforge/internal/commit"
	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/database"
	"github.com/draftforge/draftforge/internal/engine"
	"github.com/draftforge/draftforge/internal/export"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/internal/stream"
)

// Deps bundles the components the API surface is built on.
type Deps struct {
	Store     store.Store
	Sections  *section.Manager
	Committer *commit.Committer
	Engine    *engine.Engine
	Hub       *stream.Hub
	Exports   *export.Manager
}

// routeHandlers collects the handlers shared by the prefixed and bare route sets
type routeHandlers struct {
	auth      *handler.AuthHandler
	llmConfig *handler.LLMConfigHandler
	proxy     *handler.ProxyHandler
	documents *handler.DocumentHandler
	generate  *handler.GenerateHandler
	batch     *handler.BatchHandler
	stats     *handler.StatsHandler
	// withLogs controls whether the job log endpoint is registered;
	// it is off when the job log database was not initialized
	withLogs bool
}

// Setup configures all API routes
func Setup(r *gin.Engine, cfg *config.Config, d Deps) {
	// Apply global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger(&middleware.LoggerConfig{
		AccessLog: cfg.Logging.AccessLog,
	}))
	r.Use(middleware.CORS(cfg.CORS.Origins))
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler(cfg.Server.Debug))

	// Apply OpenTelemetry tracing middleware
	r.Use(otelgin.Middleware(consts.ServiceName))

	// Health check endpoint (public)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Initialize handlers
	authHandler := handler.NewAuthHandler(d.Store, cfg)

	h := routeHandlers{
		auth:      authHandler,
		llmConfig: handler.NewLLMConfigHandler(d.Store, cfg),
		proxy:     handler.NewProxyHandler(d.Store, cfg),
		documents: handler.NewDocumentHandler(d.Store, d.Sections, d.Committer, d.Exports, cfg),
		generate:  handler.NewGenerateHandler(d.Store, d.Engine, d.Sections),
		stats:     handler.NewStatsHandler(d.Store, d.Engine),
	}

	// Job logs live in a separate database; the logs endpoint is only
	// registered when that database is up
	var logStore store.JobLogStore
	if database.IsJobLogDBInitialized() {
		logStore = store.NewJobLogStore(database.GetJobLogDB())
		h.withLogs = true
	}
	h.batch = handler.NewBatchHandler(d.Engine, logStore)

	// The documented surface lives under /api/v1; the bare aliases keep
	// plain API clients and older frontends working
	registerRoutes(r.Group("/api/v1"), h)
	registerRoutes(r.Group(""), h)

	// Websocket endpoint (public route, token via query parameter)
	wsHandler := handler.NewWSHandler(d.Hub, authHandler, cfg.CORS.Origins)
	r.GET("/ws/:client_id", wsHandler.Handle)
}

// registerRoutes wires the REST surface onto a route group
func registerRoutes(g *gin.RouterGroup, h routeHandlers) {
	// ============== Auth routes ==============

	// Login and register are public, me requires auth
	auth := g.Group("/auth")
	{
		auth.POST("/login", h.auth.Login)
		auth.POST("/register", h.auth.Register)
		auth.GET("/me", middleware.JWTAuth(h.auth), h.auth.Me)
	}

	// ============== LLM configuration routes (protected) ==============

	llmConfig := g.Group("/config")
	llmConfig.Use(middleware.JWTAuth(h.auth))
	{
		llmConfig.POST("", h.llmConfig.Save)
		llmConfig.GET("", h.llmConfig.Get)
	}

	// Proxy listings from the configured LLM endpoint
	g.GET("/models", middleware.JWTAuth(h.auth), h.proxy.ListModels)
	g.GET("/collections", middleware.JWTAuth(h.auth), h.proxy.ListCollections)

	// ============== Document routes (protected) ==============

	documents := g.Group("/documents")
	documents.Use(middleware.JWTAuth(h.auth))
	{
		documents.POST("/upload", h.documents.Upload)
		documents.GET("", h.documents.List)
		documents.GET("/:id", h.documents.Get)
		documents.POST("/:id/commit", h.documents.Commit)
		documents.GET("/:id/download", h.documents.Download)
		documents.GET("/:id/export", h.documents.Export)
		documents.DELETE("/:id", h.documents.Delete)
	}

	// ============== Generation routes (protected) ==============

	g.POST("/generate", middleware.JWTAuth(h.auth), h.generate.Generate)
	g.POST("/review", middleware.JWTAuth(h.auth), h.generate.Review)

	// ============== Batch job routes (protected) ==============

	batch := g.Group("/batch")
	batch.Use(middleware.JWTAuth(h.auth))
	{
		batch.POST("/start", h.batch.Start)
		batch.GET("", h.batch.List)
		batch.GET("/:job/status", h.batch.Status)
		batch.POST("/:job/pause", h.batch.Pause)
		batch.POST("/:job/resume", h.batch.Resume)
		batch.POST("/:job/cancel", h.batch.Cancel)
		if h.withLogs {
			batch.GET("/:job/logs", h.batch.Logs)
		}
	}

	// ============== Stats (protected) ==============

	g.GET("/stats", middleware.JWTAuth(h.auth), h.stats.Get)
}
