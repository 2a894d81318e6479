package check

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/draftforge/draftforge/internal/config"
	configfiles "github.com/draftforge/draftforge/internal/configfiles"
)

// TemplateType represents the type of template file
type TemplateType int

const (
	TemplateConfig TemplateType = iota
)

// FileConfig represents a configuration file to check
type FileConfig struct {
	Path        string
	Description string
	Template    TemplateType
}

// FileCheckResult represents the result of a file check
type FileCheckResult struct {
	Path        string
	Exists      bool
	Created     bool
	Description string
	Error       error
}

// checkFiles checks all required configuration files
func (c *Checker) checkFiles() error {
	files := c.RequiredFiles()

	for _, file := range files {
		result := c.checkFile(file)
		c.report.AddFileResult(result)

		if result.Error != nil {
			return result.Error
		}
	}

	return nil
}

// checkFile checks a single file and prompts for creation if missing
func (c *Checker) checkFile(file FileConfig) FileCheckResult {
	result := FileCheckResult{
		Path:        file.Path,
		Description: file.Description,
	}

	// Check if file exists
	if fileExists(file.Path) {
		result.Exists = true
		printFileStatus(file.Path, true, false)
		return result
	}

	// File doesn't exist
	result.Exists = false
	printFileStatus(file.Path, false, false)

	// Ask user if they want to create it
	confirm, err := confirmCreate(file.Path)
	if err != nil {
		result.Error = fmt.Errorf("failed to get user confirmation: %w", err)
		return result
	}

	if !confirm {
		// User declined, just note it
		return result
	}

	// Get template content
	content, err := getTemplateContent(file.Template)
	if err != nil {
		result.Error = fmt.Errorf("failed to get template: %w", err)
		return result
	}

	// Create parent directory if needed
	if err := ensureDir(file.Path); err != nil {
		result.Error = err
		return result
	}

	// Write file
	if err := os.WriteFile(file.Path, content, 0644); err != nil {
		result.Error = fmt.Errorf("failed to create file %s: %w", file.Path, err)
		return result
	}

	result.Created = true
	printFileCreated(file.Path)

	return result
}

// getTemplateContent returns the embedded template content
func getTemplateContent(t TemplateType) ([]byte, error) {
	switch t {
	case TemplateConfig:
		return configfiles.GetConfigExample()
	default:
		return nil, fmt.Errorf("unknown template type: %d", t)
	}
}

// printFileStatus prints the status of a file check
func printFileStatus(path string, exists bool, created bool) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	if exists {
		green.Printf("  ✓ %s\n", path)
	} else if created {
		green.Printf("  ✓ %s (created)\n", path)
	} else {
		yellow.Printf("  ⚠ %s does not exist\n", path)
	}
}

// printFileCreated prints a message when a file is created
func printFileCreated(path string) {
	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created %s\n", path)
}

// checkDirectories checks and creates the working directories the server
// writes to: the upload directory for documents and the data directory
// for the databases
func (c *Checker) checkDirectories() error {
	uploadDir := "./uploads"
	if cfg, err := config.Load(c.ConfigPath()); err == nil && cfg.Upload.Dir != "" {
		uploadDir = cfg.Upload.Dir
	}

	dirs := []string{uploadDir, "./data"}
	green := color.New(color.FgGreen)

	for _, dir := range dirs {
		if fileExists(dir) {
			printFileStatus(dir, true, false)
			continue
		}

		printFileStatus(dir, false, false)

		confirm, err := confirmCreate(dir + " (directory)")
		if err != nil {
			return fmt.Errorf("failed to get user confirmation: %w", err)
		}
		if !confirm {
			continue
		}

		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		green.Printf("  ✓ Created %s\n", dir)
	}

	return nil
}
