// Package config provides configuration management for the application.
// This file contains validation functions for configuration values.
package config

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/pkg/errors"
)

// MinJWTSecretLength is the minimum required length for JWT secret (256 bits for HS256)
const MinJWTSecretLength = 32

// Temperature and token bounds accepted from both the config file and
// per-request overrides.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 100
	MaxMaxTokens   = 100_000
)

// Validate checks the configuration for invalid values.
// Returns an AppError describing the first failure found.
func (c *Config) Validate() *errors.AppError {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Upload.MaxBytes <= 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"upload.max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}

	if c.LLM.TimeoutSeconds <= 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"llm.timeout_seconds must be positive, got %d", c.LLM.TimeoutSeconds)
	}

	if c.LLM.Temperature < MinTemperature || c.LLM.Temperature > MaxTemperature {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"llm.temperature must be between %.1f and %.1f, got %g",
			MinTemperature, MaxTemperature, c.LLM.Temperature)
	}

	if c.LLM.MaxTokens != 0 && (c.LLM.MaxTokens < MinMaxTokens || c.LLM.MaxTokens > MaxMaxTokens) {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"llm.max_tokens must be between %d and %d, got %d",
			MinMaxTokens, MaxMaxTokens, c.LLM.MaxTokens)
	}

	if c.Generation.QueueSize < 1 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"generation.queue_size must be at least 1, got %d", c.Generation.QueueSize)
	}

	if c.Generation.InterSectionDelayMs < 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"generation.inter_section_delay_ms cannot be negative, got %d",
			c.Generation.InterSectionDelayMs)
	}

	if !model.ValidBackupPolicy(c.Backup.Policy) {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"backup.policy must be one of always, never, ask; got %q", c.Backup.Policy)
	}

	if c.Backup.Retention < 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"backup.retention cannot be negative, got %d", c.Backup.Retention)
	}

	if c.Auth.TokenHours <= 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"auth.token_hours must be positive, got %d", c.Auth.TokenHours)
	}

	if c.Auth.RememberMeHours <= 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"auth.remember_me_hours must be positive, got %d", c.Auth.RememberMeHours)
	}

	if err := ValidateAuthConfig(&c.Auth); err != nil {
		return err
	}

	return nil
}

// ValidateAuthConfig validates the auth configuration.
// An empty JWT secret is allowed here; the server auto-generates one at startup.
func ValidateAuthConfig(cfg *AuthConfig) *errors.AppError {
	if cfg == nil {
		return nil
	}

	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		// Auto-generated at startup
		return nil
	}

	if len(secret) < MinJWTSecretLength {
		return errors.New(errors.ErrCodeJWTSecretInvalid,
			fmt.Sprintf("jwt_secret must be at least %d characters long for security (HS256 requires 256 bits)", MinJWTSecretLength))
	}

	return nil
}

// PasswordRequirements defines the password complexity requirements
type PasswordRequirements struct {
	MinLength        int    // Minimum password length
	RequireUppercase bool   // Require at least one uppercase letter
	RequireLowercase bool   // Require at least one lowercase letter
	RequireDigit     bool   // Require at least one digit
	RequireSpecial   bool   // Require at least one special character
	SpecialChars     string // Allowed special characters
}

// DefaultPasswordRequirements returns the default password complexity requirements
func DefaultPasswordRequirements() PasswordRequirements {
	return PasswordRequirements{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   false,
		SpecialChars:     "!@#$%^&*()_+-=[]{}|;:,.<>?",
	}
}

// ValidatePassword validates a password against the complexity requirements
// Returns nil if password is valid, otherwise returns an error describing the failure
func ValidatePassword(password string, req PasswordRequirements) error {
	var failures []string

	// Check minimum length
	if len(password) < req.MinLength {
		failures = append(failures, fmt.Sprintf("at least %d characters", req.MinLength))
	}

	// Check for uppercase letter
	if req.RequireUppercase {
		hasUpper := false
		for _, r := range password {
			if unicode.IsUpper(r) {
				hasUpper = true
				break
			}
		}
		if !hasUpper {
			failures = append(failures, "at least one uppercase letter (A-Z)")
		}
	}

	// Check for lowercase letter
	if req.RequireLowercase {
		hasLower := false
		for _, r := range password {
			if unicode.IsLower(r) {
				hasLower = true
				break
			}
		}
		if !hasLower {
			failures = append(failures, "at least one lowercase letter (a-z)")
		}
	}

	// Check for digit
	if req.RequireDigit {
		hasDigit := false
		for _, r := range password {
			if unicode.IsDigit(r) {
				hasDigit = true
				break
			}
		}
		if !hasDigit {
			failures = append(failures, "at least one digit (0-9)")
		}
	}

	// Check for special character
	if req.RequireSpecial {
		hasSpecial := false
		for _, r := range password {
			if strings.ContainsRune(req.SpecialChars, r) {
				hasSpecial = true
				break
			}
		}
		if !hasSpecial {
			failures = append(failures, fmt.Sprintf("at least one special character (%s)", req.SpecialChars))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("password must contain: %s", strings.Join(failures, ", "))
	}

	return nil
}
