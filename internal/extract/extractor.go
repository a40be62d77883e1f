// Package extract turns uploaded files into text blocks and tables.
// Plain text and CSV are handled in-process; PDF, office formats, and
// image OCR shell out to external tools.
package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// BlockType classifies an extracted text block.
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockTable     BlockType = "table"
	BlockOCR       BlockType = "ocr"
	BlockText      BlockType = "text"
)

// TextBlock is one extracted unit of text.
type TextBlock struct {
	Text       string
	Page       int // 0 when unknown
	Type       BlockType
	Confidence float64
}

// TableData is a parsed table.
type TableData struct {
	Headers []string
	Rows    [][]string
	Page    int
}

// Result holds everything extracted from one file.
type Result struct {
	RawText string
	Blocks  []TextBlock
	Tables  []TableData
	// Errors collects non-fatal problems, e.g. OCR disabled for an image.
	Errors []string
}

// Config holds extractor settings.
type Config struct {
	OCREnabled          bool
	PDFExtractorPath    string // e.g. pdftotext
	OfficeConverterPath string // e.g. soffice
	OCRBinaryPath       string // e.g. tesseract
}

// Extractor dispatches files to format-specific extraction.
type Extractor struct {
	cfg Config
}

// NewExtractor creates an extractor.
func NewExtractor(cfg Config) *Extractor {
	if cfg.PDFExtractorPath == "" {
		cfg.PDFExtractorPath = "pdftotext"
	}
	if cfg.OfficeConverterPath == "" {
		cfg.OfficeConverterPath = "soffice"
	}
	if cfg.OCRBinaryPath == "" {
		cfg.OCRBinaryPath = "tesseract"
	}
	return &Extractor{cfg: cfg}
}

// Extract reads the file at path and returns its text blocks and tables.
// Unknown extensions fall back to plain-text reading.
func (e *Extractor) Extract(ctx context.Context, path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	res := &Result{}
	ext := strings.ToLower(filepath.Ext(path))

	var err error
	switch ext {
	case ".pdf":
		err = e.extractPDF(ctx, path, res)
	case ".docx", ".doc":
		err = e.extractOffice(ctx, path, "txt", res)
	case ".xlsx", ".xls":
		err = e.extractOffice(ctx, path, "csv", res)
	case ".csv":
		err = e.extractCSV(path, res)
	case ".png", ".jpg", ".jpeg", ".tiff", ".bmp":
		err = e.extractImage(ctx, path, res)
	default:
		err = e.extractText(path, res)
	}
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, len(res.Blocks))
	for _, block := range res.Blocks {
		parts = append(parts, block.Text)
	}
	res.RawText = strings.Join(parts, "\n\n")

	return res, nil
}

func (e *Extractor) extractText(path string, res *Result) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read text file: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text != "" {
		res.Blocks = append(res.Blocks, TextBlock{Text: text, Type: BlockText, Confidence: 1.0})
	}
	return nil
}

func (e *Extractor) extractCSV(path string, res *Result) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	table := TableData{Headers: records[0]}
	if len(records) > 1 {
		table.Rows = records[1:]
	}
	res.Tables = append(res.Tables, table)

	lines := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, strings.Join(record, " | "))
	}
	res.Blocks = append(res.Blocks, TextBlock{
		Text:       strings.Join(lines, "\n"),
		Type:       BlockTable,
		Confidence: 1.0,
	})
	return nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string, res *Result) error {
	// pdftotext writes to stdout when the output argument is "-".
	cmd := exec.CommandContext(ctx, e.cfg.PDFExtractorPath, "-layout", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pdf extraction: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	page := 0
	// pdftotext separates pages with form feeds.
	for _, pageText := range strings.Split(stdout.String(), "\f") {
		page++
		for _, para := range strings.Split(pageText, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			res.Blocks = append(res.Blocks, TextBlock{
				Text:       para,
				Page:       page,
				Type:       BlockParagraph,
				Confidence: 1.0,
			})
		}
	}
	return nil
}

func (e *Extractor) extractOffice(ctx context.Context, path, target string, res *Result) error {
	outDir, err := os.MkdirTemp("", "doclens-convert-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	cmd := exec.CommandContext(ctx, e.cfg.OfficeConverterPath,
		"--headless", "--convert-to", target, "--outdir", outDir, path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("office conversion: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	converted := filepath.Join(outDir, base+"."+target)

	if target == "csv" {
		return e.extractCSV(converted, res)
	}
	return e.extractText(converted, res)
}

func (e *Extractor) extractImage(ctx context.Context, path string, res *Result) error {
	if !e.cfg.OCREnabled {
		res.Errors = append(res.Errors, "ocr disabled, image content skipped")
		return nil
	}

	cmd := exec.CommandContext(ctx, e.cfg.OCRBinaryPath, path, "stdout")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// OCR problems degrade the document, they do not fail it.
		res.Errors = append(res.Errors, fmt.Sprintf("ocr: %v (%s)", err, strings.TrimSpace(stderr.String())))
		return nil
	}

	text := strings.TrimSpace(stdout.String())
	if text != "" {
		res.Blocks = append(res.Blocks, TextBlock{Text: text, Type: BlockOCR, Confidence: 0.8})
	}
	return nil
}
