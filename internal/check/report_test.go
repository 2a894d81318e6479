package check

import (
	"errors"
	"testing"
)

// TestNewReport tests creating a new report
func TestNewReport(t *testing.T) {
	report := NewReport()
	if report == nil {
		t.Fatal("NewReport returned nil")
	}
	if len(report.FileResults) != 0 {
		t.Error("FileResults should be empty")
	}
	if len(report.ValidationResults) != 0 {
		t.Error("ValidationResults should be empty")
	}
}

// TestAddFileResult tests adding file results
func TestAddFileResult(t *testing.T) {
	report := NewReport()

	report.AddFileResult(FileCheckResult{
		Path:   "config/draftforge.yaml",
		Exists: true,
	})

	if len(report.FileResults) != 1 {
		t.Errorf("Expected 1 file result, got %d", len(report.FileResults))
	}
}

// TestAddValidationResult tests adding validation results
func TestAddValidationResult(t *testing.T) {
	report := NewReport()

	report.AddValidationResult(ValidationResult{
		Path:  "config/draftforge.yaml",
		Valid: true,
	})

	if len(report.ValidationResults) != 1 {
		t.Errorf("Expected 1 validation result, got %d", len(report.ValidationResults))
	}
}

// TestCalculateSummary tests summary calculation
func TestCalculateSummary(t *testing.T) {
	report := NewReport()

	report.AddFileResult(FileCheckResult{Path: "a.yaml", Exists: true})
	report.AddFileResult(FileCheckResult{Path: "b.yaml", Created: true, Exists: false})
	report.AddFileResult(FileCheckResult{Path: "c.yaml", Exists: false})
	report.AddValidationResult(ValidationResult{Path: "a.yaml", Valid: true})

	summary := report.calculateSummary()

	if summary.TotalFiles != 3 {
		t.Errorf("Expected 3 total files, got %d", summary.TotalFiles)
	}
	if summary.FilesCreated != 1 {
		t.Errorf("Expected 1 created file, got %d", summary.FilesCreated)
	}
	if summary.FilesMissing != 1 {
		t.Errorf("Expected 1 missing file, got %d", summary.FilesMissing)
	}
	if summary.ValidationsValid != 1 {
		t.Errorf("Expected 1 valid validation, got %d", summary.ValidationsValid)
	}
	if summary.HasErrors {
		t.Error("Summary should not report errors")
	}
}

// TestCalculateSummary_WithErrors tests summary with errors
func TestCalculateSummary_WithErrors(t *testing.T) {
	report := NewReport()

	report.AddValidationResult(ValidationResult{
		Path:  "config/draftforge.yaml",
		Valid: false,
		Error: errors.New("format error"),
	})

	summary := report.calculateSummary()

	if !summary.HasErrors {
		t.Error("Summary should report errors")
	}
	if summary.ValidationErrors != 1 {
		t.Errorf("Expected 1 validation error, got %d", summary.ValidationErrors)
	}
}

// TestCalculateSummary_WithWarnings tests summary with warnings
func TestCalculateSummary_WithWarnings(t *testing.T) {
	report := NewReport()

	report.AddValidationResult(ValidationResult{
		Path:     "config/draftforge.yaml",
		Valid:    true,
		Warnings: []string{"llm.base_url is empty"},
	})

	summary := report.calculateSummary()

	if !summary.HasWarnings {
		t.Error("Summary should report warnings")
	}
}

// TestPrintDetailedReport tests that detailed report printing does not panic
func TestPrintDetailedReport(t *testing.T) {
	report := NewReport()
	report.AddFileResult(FileCheckResult{Path: "config/draftforge.yaml", Exists: true})
	report.AddValidationResult(ValidationResult{Path: "config/draftforge.yaml", Valid: true})

	report.PrintDetailedReport()
}

// TestPrintSummary tests that summary printing covers every status branch
func TestPrintSummary(t *testing.T) {
	cases := []struct {
		name   string
		report *Report
	}{
		{
			name: "all passed",
			report: func() *Report {
				r := NewReport()
				r.AddFileResult(FileCheckResult{Path: "a.yaml", Exists: true})
				r.AddValidationResult(ValidationResult{Path: "a.yaml", Valid: true})
				return r
			}(),
		},
		{
			name: "with warnings",
			report: func() *Report {
				r := NewReport()
				r.AddValidationResult(ValidationResult{Path: "a.yaml", Valid: true, Warnings: []string{"w"}})
				return r
			}(),
		},
		{
			name: "with errors",
			report: func() *Report {
				r := NewReport()
				r.AddValidationResult(ValidationResult{Path: "a.yaml", Valid: false, Error: errors.New("boom")})
				return r
			}(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.report.Print()
		})
	}
}
