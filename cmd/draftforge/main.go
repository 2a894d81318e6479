// Package main is the entry point for the DraftForge application.
// DraftForge is an AI-assisted document editing service: it parses .docx
// documents into section trees and generates prose per section through a
// chat-completions endpoint.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draftforge/draftforge/consts"
	"github.com/draftforge/draftforge/internal/api/router"
	"github.com/draftforge/draftforge/internal/check"
	"github.com/draftforge/draftforge/internal/commit"
	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/database"
	"github.com/draftforge/draftforge/internal/engine"
	"github.com/draftforge/draftforge/internal/export"
	"github.com/draftforge/draftforge/internal/markdown"
	"github.com/draftforge/draftforge/internal/notification"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/internal/server"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/internal/stream"
	"github.com/draftforge/draftforge/pkg/idgen"
	"github.com/draftforge/draftforge/pkg/logger"
	"github.com/draftforge/draftforge/pkg/telemetry"
)

// Build information - set via ldflags during build
// These variables are linked to consts package for global access
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// init synchronizes build info to consts package for global access
func init() {
	consts.Version = Version
	consts.BuildTime = BuildTime
	consts.GitCommit = GitCommit
}

// configPath holds the path to the configuration file
var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "draftforge",
	Short: "DraftForge - AI-Assisted Document Generation Service",
	Long: `DraftForge parses word-processing documents into section trees and
drives per-section and whole-document prose generation against an LLM
endpoint, committing the output back into the document as rich text.`,
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the DraftForge server",
	Long: `Start the HTTP server to handle API requests and generation jobs.

On first run, use --check flag to interactively set up your environment:
  draftforge serve --check

This will guide you through:
  - Creating the configuration file from the template
  - Validating configuration values
  - Creating the upload and data directories

After initial setup, simply run:
  draftforge serve`,
	Run: runServe,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("DraftForge %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
	},
}

func init() {
	// Disable auto-generated completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: config/draftforge.yaml)")

	// Add commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	// Serve command flags
	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "server port (overrides config)")
	serveCmd.Flags().Bool("debug", false, "enable debug mode")
	serveCmd.Flags().Bool("check", false, "run interactive environment check before starting server")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runServe starts the DraftForge server
func runServe(cmd *cobra.Command, args []string) {
	// Check if interactive check is enabled via --check flag
	interactiveCheck, _ := cmd.Flags().GetBool("check")

	if interactiveCheck {
		// Run full interactive environment check
		checker := check.NewChecker()
		if err := checker.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Environment check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("\n✓ Environment check completed successfully")
	} else {
		// Run non-interactive basic check
		checker := check.NewChecker()
		result := checker.RunNonInteractive()

		if !result.Success {
			// Print errors and exit
			check.PrintCheckResult(result)
			os.Exit(1)
		}

		// Print warnings if any (but don't block startup)
		if len(result.Warnings) > 0 {
			for _, warn := range result.Warnings {
				fmt.Fprintf(os.Stderr, "[WARNING] %s\n", warn)
			}
			fmt.Fprintln(os.Stderr)
		}
	}

	// Record server start time
	consts.SetStartedAt(time.Now())

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override config with command line flags
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	}

	// Auto-generate JWT secret if empty and save to config file
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		newSecret := idgen.NewSecureSecret(32)
		cfg.Auth.JWTSecret = newSecret

		if err := config.UpdateJWTSecretInConfig(effectiveConfigPath(), newSecret); err != nil {
			fmt.Fprintf(os.Stderr, "[WARNING] Failed to save JWT secret to config file: %v\n", err)
			fmt.Fprintf(os.Stderr, "Using auto-generated JWT secret for this session only.\n")
			fmt.Fprintf(os.Stderr, "Please manually add auth.jwt_secret to your config file to persist across restarts.\n\n")
		} else {
			fmt.Fprintf(os.Stderr, "[INFO] JWT secret was empty, auto-generated and saved to config file.\n\n")
		}
	}

	// Validate configuration values
	if validationErr := cfg.Validate(); validationErr != nil {
		fmt.Fprintf(os.Stderr, "\n[ERROR] Configuration validation failed\n")
		fmt.Fprintf(os.Stderr, "Error Code: %s\n", validationErr.Code)
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", validationErr)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize job log database (separate from main database)
	var jobLogCleanupService *store.JobLogCleanupService
	if err := database.InitJobLogDB(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARNING] Failed to initialize job log database: %v\n", err)
		// Continue without job logging - not fatal
	} else {
		defer database.CloseJobLogDB()

		// Create JobLogStore and set up the logger hook for dual-write mode
		jobLogStore := store.NewJobLogStore(database.GetJobLogDB())
		logger.SetJobLogHook(jobLogStore)
		defer logger.CloseJobLogHook()

		// Start job log cleanup service (runs daily at 2 AM)
		retention := cfg.JobLogs.RetentionDays
		if retention <= 0 {
			retention = store.DefaultJobLogRetentionDays
		}
		jobLogCleanupService = store.NewJobLogCleanupService(jobLogStore, retention)
		if err := jobLogCleanupService.Start(); err != nil {
			logger.Warn("Failed to start job log cleanup service", zap.Error(err))
			// Continue without cleanup - not fatal
		} else {
			defer jobLogCleanupService.Stop()
		}
	}

	logger.Info("Starting DraftForge",
		zap.String("version", Version),
	)

	// Initialize telemetry (OpenTelemetry traces and metrics)
	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown telemetry", zap.Error(err))
		}
	}()

	// Initialize the main database
	if err := database.Init(); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	// Create store instance for dependency injection
	dataStore := store.NewStore(database.Get())

	// Ensure the upload directory exists
	if err := os.MkdirAll(cfg.Upload.Dir, 0755); err != nil {
		logger.Fatal("Failed to create upload directory",
			zap.String("dir", cfg.Upload.Dir), zap.Error(err))
	}

	// Section manager holds parsed documents; documents are loaded lazily
	// from their stored files on first access
	sections := section.NewManager()

	// Commit engine with the configured formatting overlay
	converter := markdown.NewConverter(markdown.Formatting{
		Highlight: cfg.Generation.Highlight,
		Bold:      cfg.Generation.Bold,
		Italic:    cfg.Generation.Italic,
		Underline: cfg.Generation.Underline,
		FontSize:  cfg.Generation.FontSize,
		FontColor: cfg.Generation.FontColor,
	})
	backups := commit.NewBackupManager(cfg.Backup.Retention)
	committer := commit.NewCommitter(dataStore, sections, converter, backups)

	// Stream hub for progress events
	hub := stream.NewHub()

	// Notification manager for job terminal events
	notifier := notification.NewManager(&cfg.Notification)

	// Create and start the generation engine
	gen := engine.NewEngine(cfg, dataStore, sections, committer, hub, notifier)
	if err := gen.Start(); err != nil {
		logger.Fatal("Failed to start generation engine", zap.Error(err))
	}
	defer gen.Stop()

	// Scheduled auto-backup (disabled when auto_backup_minutes is 0)
	autoBackup := commit.NewAutoBackupService(dataStore, sections, backups, cfg.Backup.AutoBackupMinutes)
	if err := autoBackup.Start(); err != nil {
		logger.Warn("Failed to start auto-backup service", zap.Error(err))
	} else {
		defer autoBackup.Stop()
	}

	// Create and configure server
	srv := server.New(cfg, router.Deps{
		Store:     dataStore,
		Sections:  sections,
		Committer: committer,
		Engine:    gen,
		Hub:       hub,
		Exports:   export.NewManager(),
	})
	srv.SetupRoutes()

	// Start server
	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("DraftForge server is running",
		zap.String("address", cfg.Server.Address()),
	)

	// Log access URLs for user convenience
	port := cfg.Server.Port
	logger.Info(fmt.Sprintf("  Local:   http://localhost:%d", port))
	if lanIP := getLocalIP(); lanIP != "" {
		logger.Info(fmt.Sprintf("  Network: http://%s:%d", lanIP, port))
	}

	// Wait for shutdown
	srv.WaitForShutdown()

	logger.Info("DraftForge stopped")
}

// effectiveConfigPath resolves the config file path from the flag or default
func effectiveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath
}

// loadConfig loads configuration from the config file and applies
// environment variable overrides
func loadConfig() (*config.Config, error) {
	path := effectiveConfigPath()

	if !config.Exists(path) {
		return nil, fmt.Errorf("configuration not found: %s\nRun 'draftforge serve --check' to create it", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Environment variables win over file values
	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// getLocalIP returns the first non-loopback IPv4 address
func getLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return ""
}
