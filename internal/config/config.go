// Package config provides configuration management for the application.
// It supports YAML configuration files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/draftforge/draftforge/consts"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/pkg/logger"
	"github.com/draftforge/draftforge/pkg/telemetry"
)

// DefaultConfigPath is the default location of the configuration file
const DefaultConfigPath = "config/draftforge.yaml"

// Default configuration values
const (
	defaultUploadDir           = "./uploads"
	defaultMaxUploadBytes      = 52_428_800 // 50 MB
	defaultLLMTimeoutSeconds   = 300
	defaultTemperature         = 0.7
	defaultMaxTokens           = 4096
	defaultInterSectionDelayMs = 500
	defaultJobQueueSize        = 100
	defaultTokenHours          = 24
	defaultRememberMeHours     = 168
	defaultJobLogRetentionDays = 30
	defaultBackupRetention     = 10
	defaultOTLPEndpoint        = "localhost:4317"
	defaultPrometheusPort      = 9090
)

// Config represents the complete application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Upload       UploadConfig       `yaml:"upload"`
	LLM          LLMConfig          `yaml:"llm"`
	Generation   GenerationConfig   `yaml:"generation"`
	Backup       BackupConfig       `yaml:"backup"`
	Auth         AuthConfig         `yaml:"auth"`
	CORS         CORSConfig         `yaml:"cors"`
	JobLogs      JobLogsConfig      `yaml:"job_logs"`
	Logging      logger.Config      `yaml:"logging"`
	Telemetry    telemetry.Config   `yaml:"telemetry"`
	Notification NotificationConfig `yaml:"notification"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// Address returns the server address string
func (c *ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// UploadConfig holds document upload configuration
type UploadConfig struct {
	// Dir is the directory where uploaded documents are stored
	Dir string `yaml:"dir"`
	// MaxBytes is the maximum accepted upload size in bytes
	MaxBytes int64 `yaml:"max_bytes"`
}

// LLMConfig holds the global (fallback) LLM endpoint configuration.
// Per-user settings stored in the database take precedence.
type LLMConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	DefaultModel   string  `yaml:"default_model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	// OutputLanguage is an ISO 639-1 code steering generated prose (empty = no instruction)
	OutputLanguage string `yaml:"output_language"`
}

// GenerationConfig holds batch generation and output formatting configuration
type GenerationConfig struct {
	// InterSectionDelayMs is the delay between sections in a batch job,
	// bounding the upstream request rate
	InterSectionDelayMs int `yaml:"inter_section_delay_ms"`
	// QueueSize is the maximum number of concurrently running jobs
	QueueSize int `yaml:"queue_size"`
	// Formatting overlays applied to every generated run
	Highlight string `yaml:"highlight"` // highlight color name (empty = none)
	Bold      bool   `yaml:"bold"`
	Italic    bool   `yaml:"italic"`
	Underline bool   `yaml:"underline"`
	FontSize  int    `yaml:"font_size"`  // half-points; 0 = document default
	FontColor string `yaml:"font_color"` // hex RRGGBB; empty = document default
}

// BackupConfig holds document backup configuration
type BackupConfig struct {
	// Policy is the default backup policy: always, never, or ask
	Policy string `yaml:"policy"`
	// AutoBackupMinutes is the period of the scheduled auto-backup (0 = disabled)
	AutoBackupMinutes int `yaml:"auto_backup_minutes"`
	// Retention is the number of backup files kept per document
	Retention int `yaml:"retention"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTSecret is the JWT signing secret (auto-generated when empty)
	JWTSecret string `yaml:"jwt_secret"`
	// TokenHours is the normal token expiry in hours
	TokenHours int `yaml:"token_hours"`
	// RememberMeHours is the token expiry when "remember me" is enabled
	RememberMeHours int `yaml:"remember_me_hours"`
	// AllowRegistration enables the /auth/register endpoint
	AllowRegistration bool `yaml:"allow_registration"`
}

// CORSConfig holds the CORS origin whitelist
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// JobLogsConfig holds job log retention configuration
type JobLogsConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// NotificationChannelType identifies a notifier implementation
type NotificationChannelType string

const (
	NotificationChannelWebhook NotificationChannelType = "webhook"
	NotificationChannelSlack   NotificationChannelType = "slack"
)

// NotifierConfig configures a single notification channel
type NotifierConfig struct {
	Type NotificationChannelType `yaml:"type"`
	// URL is the webhook endpoint (generic webhook or Slack incoming webhook)
	URL string `yaml:"url"`
	// Secret is optional, used for HMAC signature verification (webhook only)
	Secret string `yaml:"secret"`
}

// NotificationConfig holds job-completion notification configuration
type NotificationConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Notifiers []NotifierConfig `yaml:"notifiers"`
}

// IsEnabled returns true if notifications are enabled and at least one channel is configured
func (c *NotificationConfig) IsEnabled() bool {
	return c.Enabled && len(c.Notifiers) > 0
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:  "0.0.0.0",
			Port:  8000,
			Debug: false,
		},
		Upload: UploadConfig{
			Dir:      defaultUploadDir,
			MaxBytes: defaultMaxUploadBytes,
		},
		LLM: LLMConfig{
			BaseURL:        "",
			APIKey:         "",
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			DefaultModel:   "",
			Temperature:    defaultTemperature,
			MaxTokens:      defaultMaxTokens,
		},
		Generation: GenerationConfig{
			InterSectionDelayMs: defaultInterSectionDelayMs,
			QueueSize:           defaultJobQueueSize,
			Highlight:           "yellow",
		},
		Backup: BackupConfig{
			Policy:            string(model.BackupAsk),
			AutoBackupMinutes: 0,
			Retention:         defaultBackupRetention,
		},
		Auth: AuthConfig{
			JWTSecret:         "", // Auto-generated at startup when empty
			TokenHours:        defaultTokenHours,
			RememberMeHours:   defaultRememberMeHours,
			AllowRegistration: true,
		},
		CORS: CORSConfig{
			Origins: []string{
				"http://localhost:5173",
				"http://localhost:3000",
			},
		},
		JobLogs: JobLogsConfig{
			RetentionDays: defaultJobLogRetentionDays,
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "text", // Default to human-readable text format instead of JSON
			File:       "",
			MaxSize:    100, // Max 100MB per log file
			MaxAge:     7,   // Retain logs for 7 days
			MaxBackups: 5,   // Keep 5 backup files
			Compress:   false,
		},
		Telemetry: telemetry.Config{
			Enabled:     false,
			ServiceName: consts.ServiceName,
			OTLP: telemetry.OTLPConfig{
				Enabled:  false,
				Endpoint: defaultOTLPEndpoint,
				Insecure: true,
			},
			Prometheus: telemetry.PrometheusConfig{
				Enabled: false,
				Port:    defaultPrometheusPort,
			},
		},
		Notification: NotificationConfig{
			Enabled:   false,
			Notifiers: nil,
		},
	}
}

// Load loads configuration from a YAML file with environment variable expansion
func Load(path string) (*Config, error) {
	cfg := Default()

	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables in the configuration
	expanded := expandEnvVars(string(data))

	// Parse YAML
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Exists checks whether a configuration file exists at the given path
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values
// Only matches ${VAR_NAME} format (not $VAR_NAME) to avoid conflicts with special characters
func expandEnvVars(content string) string {
	// Match ${VAR_NAME} patterns only (not $VAR_NAME)
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := match[2 : len(match)-1]

		// Support default values: ${VAR_NAME:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]

		if value := os.Getenv(varName); value != "" {
			return value
		}

		// Return default value if provided
		if len(parts) > 1 {
			return parts[1]
		}

		return ""
	})
}

// Environment variable names recognized by ApplyEnvOverrides
const (
	EnvAPIHost        = "API_HOST"
	EnvAPIPort        = "API_PORT"
	EnvUploadDir      = "UPLOAD_DIR"
	EnvMaxUploadBytes = "MAX_UPLOAD_BYTES"
	EnvLLMBaseURL     = "LLM_BASE_URL"
	EnvLLMAPIKey      = "LLM_API_KEY"
	EnvLLMTimeoutS    = "LLM_TIMEOUT_S"
	EnvCORSOrigins    = "CORS_ORIGINS"
)

// ApplyEnvOverrides overrides configuration values from well-known environment
// variables. Environment variables take precedence over file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvAPIHost); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(EnvAPIPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv(EnvUploadDir); v != "" {
		c.Upload.Dir = v
	}
	if v := os.Getenv(EnvMaxUploadBytes); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Upload.MaxBytes = n
		}
	}
	if v := os.Getenv(EnvLLMBaseURL); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv(EnvLLMAPIKey); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(EnvLLMTimeoutS); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.TimeoutSeconds = n
		}
	}
	if v := os.Getenv(EnvCORSOrigins); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		c.CORS.Origins = origins
	}
}

// configHeader is the comment block written back when the config file is rewritten
const configHeader = `# DraftForge configuration
# This file was updated automatically. A backup of the previous
# version was written next to it with a .backup suffix.

`

// UpdateJWTSecretInConfig updates only the auth.jwt_secret field in the config file,
// preserving all other fields. A backup of the previous file content is written first.
func UpdateJWTSecretInConfig(configPath, jwtSecret string) error {
	// Read current config file
	content, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Backup current config before making changes
	backupPath := configPath + ".backup"
	if err := os.WriteFile(backupPath, content, 0644); err != nil {
		// Continue anyway, backup is optional
		fmt.Fprintf(os.Stderr, "[WARNING] Failed to create backup: %v\n", err)
	}

	// Parse YAML into a generic map to preserve all fields
	var cfg map[string]interface{}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// Get or create auth section
	authSection, ok := cfg["auth"].(map[string]interface{})
	if !ok {
		authSection = make(map[string]interface{})
		cfg["auth"] = authSection
	}

	// Update only the jwt_secret field, preserving all other fields
	authSection["jwt_secret"] = jwtSecret

	// Marshal back to YAML
	newContent, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Add header comment back
	finalContent := configHeader + string(newContent)

	// Write the updated config file
	if err := os.WriteFile(configPath, []byte(finalContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
