package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/core/ports"
)

// Extractor performs the cheap text pass that feeds content-overlap
// deduplication. It handles the formats bulk imports actually contain:
// PDFs, spreadsheets and plain text. Image formats yield an empty result
// with no error; their text only exists after the expensive analysis step.
type Extractor struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, entry *domain.LedgerEntry) (string, error) {
	reader, err := e.storage.Open(ctx, entry.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open stored document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read stored document: %w", err)
	}

	switch strings.ToLower(filepath.Ext(entry.Filename)) {
	case ".pdf":
		return extractPDF(raw)
	case ".xlsx", ".xlsm":
		return extractSpreadsheet(raw)
	case ".jpg", ".jpeg", ".png", ".heic", ".tiff", ".bmp":
		return "", nil
	default:
		return extractPlaintext(raw), nil
	}
}

func extractPDF(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		// Scanned PDFs without a text layer land here; not an error for
		// the gate, the content tier just gets skipped.
		return "", nil
	}
	text, err := io.ReadAll(textReader)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(string(text)), nil
}

func extractSpreadsheet(raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse spreadsheet: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			for _, cell := range row {
				if cell == "" {
					continue
				}
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(cell)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func extractPlaintext(raw []byte) string {
	if !utf8.Valid(raw) {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
