package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtract_PlainText(t *testing.T) {
	e := NewExtractor(Config{})
	path := writeTempFile(t, "note.txt", "  Hello world.\nSecond line.  \n")

	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, "Hello world.\nSecond line.", res.Blocks[0].Text)
	assert.Equal(t, BlockText, res.Blocks[0].Type)
	assert.Equal(t, 1.0, res.Blocks[0].Confidence)
	assert.Equal(t, "Hello world.\nSecond line.", res.RawText)
	assert.Empty(t, res.Tables)
	assert.Empty(t, res.Errors)
}

func TestExtract_EmptyTextFile(t *testing.T) {
	e := NewExtractor(Config{})
	path := writeTempFile(t, "empty.txt", "   \n")

	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Empty(t, res.Blocks)
	assert.Equal(t, "", res.RawText)
}

func TestExtract_CSV(t *testing.T) {
	e := NewExtractor(Config{})
	path := writeTempFile(t, "items.csv", "Name,Qty\nBolt,100\nNut,50\n")

	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, res.Tables, 1)
	assert.Equal(t, []string{"Name", "Qty"}, res.Tables[0].Headers)
	assert.Equal(t, [][]string{{"Bolt", "100"}, {"Nut", "50"}}, res.Tables[0].Rows)

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, BlockTable, res.Blocks[0].Type)
	assert.Equal(t, "Name | Qty\nBolt | 100\nNut | 50", res.Blocks[0].Text)
}

func TestExtract_CSVHeaderOnly(t *testing.T) {
	e := NewExtractor(Config{})
	path := writeTempFile(t, "header.csv", "Name,Qty\n")

	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, res.Tables, 1)
	assert.Equal(t, []string{"Name", "Qty"}, res.Tables[0].Headers)
	assert.Empty(t, res.Tables[0].Rows)
}

func TestExtract_CSVRaggedRows(t *testing.T) {
	e := NewExtractor(Config{})
	path := writeTempFile(t, "ragged.csv", "Name,Qty\nBolt\n")

	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, res.Tables, 1)
	assert.Equal(t, [][]string{{"Bolt"}}, res.Tables[0].Rows)
}

func TestExtract_UnknownExtensionFallsBackToText(t *testing.T) {
	e := NewExtractor(Config{})
	path := writeTempFile(t, "data.log", "some log content")

	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, BlockText, res.Blocks[0].Type)
	assert.Equal(t, "some log content", res.RawText)
}

func TestExtract_ImageWithOCRDisabled(t *testing.T) {
	e := NewExtractor(Config{OCREnabled: false})
	path := writeTempFile(t, "scan.png", "not a real image")

	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Empty(t, res.Blocks)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "ocr disabled")
}

func TestExtract_ImageWithMissingOCRBinary(t *testing.T) {
	e := NewExtractor(Config{OCREnabled: true, OCRBinaryPath: "/nonexistent/tesseract"})
	path := writeTempFile(t, "scan.png", "not a real image")

	// A broken OCR binary degrades the result instead of failing it.
	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Empty(t, res.Blocks)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "ocr:")
}

func TestExtract_MissingFile(t *testing.T) {
	e := NewExtractor(Config{})

	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestNewExtractor_BinaryDefaults(t *testing.T) {
	e := NewExtractor(Config{})

	assert.Equal(t, "pdftotext", e.cfg.PDFExtractorPath)
	assert.Equal(t, "soffice", e.cfg.OfficeConverterPath)
	assert.Equal(t, "tesseract", e.cfg.OCRBinaryPath)
}
