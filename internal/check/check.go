// Package check provides interactive environment checking and initialization.
// It helps users set up their local DraftForge configuration properly.
package check

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/draftforge/draftforge/internal/config"
)

// CheckResult represents the result of a non-interactive environment check
type CheckResult struct {
	// Success indicates whether all required checks passed
	Success bool
	// Errors contains critical errors that prevent server startup
	Errors []string
	// Warnings contains non-critical issues that don't block startup
	Warnings []string
	// Suggestions contains helpful tips for fixing issues
	Suggestions []string
}

// Checker handles environment checking and initialization
type Checker struct {
	// configDir is the base directory for configuration files
	configDir string
	// report collects check results for final output
	report *Report
	// theme for consistent styling
	theme *huh.Theme
}

// NewChecker creates a new environment checker
func NewChecker() *Checker {
	return &Checker{
		configDir: "config",
		report:    NewReport(),
		theme:     huh.ThemeCharm(),
	}
}

// Run executes the full environment check
func (c *Checker) Run() error {
	// Print header
	c.printHeader()

	// Step 1: Check and create the configuration file
	fmt.Println()
	printSection("Checking configuration files")
	if err := c.checkFiles(); err != nil {
		return fmt.Errorf("file check failed: %w", err)
	}

	// Step 2: Validate configuration format and values
	fmt.Println()
	printSection("Validating configuration")
	if err := c.validateConfigs(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Step 3: Check and create working directories (uploads, data)
	fmt.Println()
	printSection("Checking working directories")
	if err := c.checkDirectories(); err != nil {
		return fmt.Errorf("directory check failed: %w", err)
	}

	// Step 4: Print final report
	fmt.Println()
	c.report.Print()

	return nil
}

// printHeader prints the welcome header
func (c *Checker) printHeader() {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	fmt.Println(titleStyle.Render("🔍 DraftForge Environment Check"))
}

// printSection prints a section header
func printSection(title string) {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15"))
	fmt.Println(style.Render(title + "..."))
}

// RequiredFiles returns the list of required configuration files
func (c *Checker) RequiredFiles() []FileConfig {
	return []FileConfig{
		{
			Path:        filepath.Join(c.configDir, "draftforge.yaml"),
			Description: "Main configuration file (server, LLM, backup, auth, logging)",
			Template:    TemplateConfig,
		},
	}
}

// ConfigPath returns the path to the main config file
func (c *Checker) ConfigPath() string {
	return filepath.Join(c.configDir, "draftforge.yaml")
}

// confirmCreate asks user to confirm file creation
func confirmCreate(path string) (bool, error) {
	var confirm bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Create %s from template?", path)).
		Affirmative("Yes").
		Negative("No").
		Value(&confirm).
		Run()
	if err != nil {
		return false, err
	}
	return confirm, nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ensureDir creates directory if it doesn't exist
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// RunNonInteractive performs a non-interactive environment check.
// Unlike Run(), this method does not prompt for user input and does not create files.
// It returns a CheckResult with errors, warnings, and suggestions.
func (c *Checker) RunNonInteractive() *CheckResult {
	result := &CheckResult{
		Success:     true,
		Errors:      make([]string, 0),
		Warnings:    make([]string, 0),
		Suggestions: make([]string, 0),
	}

	// Step 1: Check if the configuration file exists
	c.checkFilesNonInteractive(result)

	// If the config file is missing, return early with suggestions
	if !result.Success {
		result.Suggestions = append(result.Suggestions,
			"Run 'draftforge serve --check' to interactively create configuration files",
		)
		return result
	}

	// Step 2: Validate the configuration file format and values
	c.validateConfigsNonInteractive(result)

	// Step 3: Check LLM endpoint configuration (as warnings, not errors)
	c.checkLLMNonInteractive(result)

	return result
}

// checkFilesNonInteractive checks if required configuration files exist
func (c *Checker) checkFilesNonInteractive(result *CheckResult) {
	configPath := c.ConfigPath()
	if !fileExists(configPath) {
		result.Success = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("Configuration file not found: %s", configPath))
	}
}

// validateConfigsNonInteractive validates configuration file formats
func (c *Checker) validateConfigsNonInteractive(result *CheckResult) {
	configResult := c.validateConfigYaml()
	if !configResult.Valid {
		result.Success = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("Invalid draftforge.yaml: %v", configResult.Error))
	}
}

// checkLLMNonInteractive checks LLM endpoint settings as warnings (not blocking errors)
func (c *Checker) checkLLMNonInteractive(result *CheckResult) {
	cfg, err := config.Load(c.ConfigPath())
	if err != nil {
		// Config already validated, this shouldn't fail
		return
	}

	// The global endpoint is a fallback; users can configure their own
	// endpoint per account after the server starts, so this never blocks
	if cfg.LLM.BaseURL == "" {
		result.Warnings = append(result.Warnings,
			"Global LLM endpoint not configured; users must set their own via POST /config")
	}

	// Note: jwt_secret is auto-generated at startup when empty,
	// so we don't warn about it here
}

// PrintCheckResult prints the check result in a formatted way
func PrintCheckResult(result *CheckResult) {
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Print errors
	if len(result.Errors) > 0 {
		fmt.Println()
		red.Println("[ERROR] Environment check failed")
		fmt.Println()
		for _, err := range result.Errors {
			red.Printf("  ✗ %s\n", err)
		}
	}

	// Print warnings
	if len(result.Warnings) > 0 {
		fmt.Println()
		yellow.Println("[WARNING] Configuration warnings:")
		fmt.Println()
		for _, warn := range result.Warnings {
			yellow.Printf("  ⚠ %s\n", warn)
		}
	}

	// Print suggestions
	if len(result.Suggestions) > 0 {
		cyan.Println("\nTo fix these issues:")
		for _, suggestion := range result.Suggestions {
			fmt.Printf("  → %s\n", suggestion)
		}
	}

	fmt.Println()
}
