package export

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/pkg/logger"
)

// PDFOptions contains configuration for PDF generation
type PDFOptions struct {
	// Paper dimensions in inches (A4: 8.27 x 11.69)
	PaperWidth  float64
	PaperHeight float64

	// Margins in inches
	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64

	// DisplayHeaderFooter turns on the title header and page-number footer
	DisplayHeaderFooter bool

	// PrintBackground prints background colors and images
	PrintBackground bool

	// Scale of the page rendering (1.0 = 100%)
	Scale float64

	// Timeout bounds the whole Chrome session
	Timeout time.Duration
}

// DefaultPDFOptions returns default PDF options for A4 paper
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PaperWidth:  8.27,
		PaperHeight: 11.69,

		MarginTop:    0.59, // ~15mm
		MarginBottom: 0.59,
		MarginLeft:   0.79, // ~20mm
		MarginRight:  0.79,

		DisplayHeaderFooter: true,
		PrintBackground:     true,
		Scale:               1.0,
		Timeout:             120 * time.Second,
	}
}

// PDFExporter prints the HTML rendering to PDF using headless Chrome
type PDFExporter struct {
	html    *HTMLExporter
	options PDFOptions
}

// NewPDFExporter creates a PDF exporter with default options
func NewPDFExporter() *PDFExporter {
	return NewPDFExporterWithOptions(DefaultPDFOptions())
}

// NewPDFExporterWithOptions creates a PDF exporter with custom options
func NewPDFExporterWithOptions(opts PDFOptions) *PDFExporter {
	return &PDFExporter{
		html:    NewHTMLExporter(),
		options: opts,
	}
}

// Export renders the document to PDF.
// Note: this returns the binary PDF as a string for interface
// compatibility; use ExportToPDF for bytes.
func (e *PDFExporter) Export(doc *docx.Document, tree *section.Tree) (string, error) {
	data, err := e.ExportToPDF(doc, tree)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ExportToPDF renders the document to PDF and returns binary data
func (e *PDFExporter) ExportToPDF(doc *docx.Document, tree *section.Tree) ([]byte, error) {
	start := time.Now()

	html, err := e.html.Export(doc, tree)
	if err != nil {
		return nil, err
	}

	title := "Document"
	if len(tree.Roots) > 0 {
		title = tree.Roots[0].Title
	}

	logger.Info("Starting PDF export",
		zap.Int("sections", tree.SectionCount()),
		zap.Int("html_size", len(html)),
		zap.Duration("timeout", e.options.Timeout),
	)

	// Chrome loads the page from a temp file; data URLs hit size limits
	tmpFile, err := os.CreateTemp("", "draftforge-pdf-*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.WriteString(html); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	tmpFile.Close()

	ctx, cancel := context.WithTimeout(context.Background(), e.options.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("headless", true),
	)
	if chromePath := os.Getenv("CHROME_PATH"); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
		logger.Debug("Using custom Chrome path", zap.String("chrome_path", chromePath))
	}

	// The default websocket URL timeout of 20s is too tight on slow hosts
	opts = append(opts, chromedp.WSURLReadTimeout(60*time.Second))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf("chromedp: "+format, args...))
		}),
	)
	defer browserCancel()

	header, footer := e.headerFooter(title)

	var pdfData []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+tmpPath),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPaperWidth(e.options.PaperWidth).
				WithPaperHeight(e.options.PaperHeight).
				WithMarginTop(e.options.MarginTop).
				WithMarginBottom(e.options.MarginBottom).
				WithMarginLeft(e.options.MarginLeft).
				WithMarginRight(e.options.MarginRight).
				WithDisplayHeaderFooter(e.options.DisplayHeaderFooter).
				WithHeaderTemplate(header).
				WithFooterTemplate(footer).
				WithPrintBackground(e.options.PrintBackground).
				WithScale(e.options.Scale).
				WithPreferCSSPageSize(false).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		logger.Error("PDF export failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	logger.Info("PDF export completed",
		zap.Int("pdf_size", len(pdfData)),
		zap.Duration("duration", time.Since(start)),
	)

	return pdfData, nil
}

// Name returns the human-readable name of this exporter
func (e *PDFExporter) Name() string {
	return "PDF"
}

// FileExtension returns the file extension for PDF files
func (e *PDFExporter) FileExtension() string {
	return ".pdf"
}

// headerFooter builds the Chrome print templates. Chrome substitutes the
// pageNumber and totalPages class spans.
func (e *PDFExporter) headerFooter(title string) (header, footer string) {
	header = fmt.Sprintf(`
		<div style="width:100%%; padding:4px 20px; font-size:9px; font-family:system-ui,-apple-system,sans-serif; color:#666;">
			<span>%s</span>
		</div>
	`, escapeHTMLAttr(title))

	footer = `
		<div style="width:100%; padding:0 20px; font-size:9px; font-family:system-ui,-apple-system,sans-serif; color:#666; display:flex; justify-content:space-between; align-items:center;">
			<span>Exported by DraftForge</span>
			<span>Page <span class="pageNumber"></span> of <span class="totalPages"></span></span>
		</div>
	`

	return header, footer
}
