package check

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/draftforge/draftforge/internal/config"
)

// ValidationResult represents the result of a config validation
type ValidationResult struct {
	Path     string
	Valid    bool
	Error    error
	Warnings []string
}

// validateConfigs validates all configuration files
func (c *Checker) validateConfigs() error {
	configResult := c.validateConfigYaml()
	c.report.AddValidationResult(configResult)
	printValidationResult(configResult)

	if !configResult.Valid {
		return fmt.Errorf("draftforge.yaml validation failed: %w", configResult.Error)
	}

	return nil
}

// validateConfigYaml validates the main configuration file: YAML syntax,
// structure, and value ranges (port, temperature, max_tokens, backup policy)
func (c *Checker) validateConfigYaml() ValidationResult {
	path := c.ConfigPath()
	result := ValidationResult{Path: path}

	// Check if file exists
	if !fileExists(path) {
		result.Valid = false
		result.Error = fmt.Errorf("file does not exist")
		return result
	}

	// Syntax check first for a clearer message on malformed YAML
	if err := validateYamlSyntax(path); err != nil {
		result.Valid = false
		result.Error = err
		return result
	}

	// Try to load the config
	cfg, err := config.Load(path)
	if err != nil {
		result.Valid = false
		result.Error = fmt.Errorf("format error: %v", err)
		return result
	}

	// Validate value ranges
	if verr := cfg.Validate(); verr != nil {
		result.Valid = false
		result.Error = verr
		return result
	}

	result.Valid = true

	// Informational warnings that never block startup
	if cfg.LLM.BaseURL == "" {
		result.Warnings = append(result.Warnings,
			"llm.base_url is empty - users must configure their own endpoint via POST /config")
	}
	if cfg.Auth.JWTSecret == "" {
		result.Warnings = append(result.Warnings,
			"auth.jwt_secret is empty - a secret will be generated and saved at startup")
	}

	return result
}

// validateYamlSyntax validates YAML syntax
func validateYamlSyntax(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read file: %w", err)
	}

	var content interface{}
	if err := yaml.Unmarshal(data, &content); err != nil {
		return fmt.Errorf("YAML syntax error: %w", err)
	}

	return nil
}

// printValidationResult prints the validation result
func printValidationResult(result ValidationResult) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	if result.Valid {
		green.Printf("  ✓ %s\n", result.Path)
	} else if result.Error != nil {
		red.Printf("  ✗ %s: %v\n", result.Path, result.Error)
	} else {
		yellow.Printf("  ⚠ %s\n", result.Path)
	}

	// Print warnings if any
	for _, warning := range result.Warnings {
		yellow.Printf("    └─ %s\n", warning)
	}
}
