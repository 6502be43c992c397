package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	apperrors "github.com/target/scriptcheck/internal/errors"
)

// PDF extraction limits.
const (
	MaxPDFPages = 500
	// minPageChars marks pages with less trimmed text as image-only.
	minPageChars = 10
)

// PDFText is the text layer of a PDF document.
type PDFText struct {
	Text string
	// OCRPages lists 1-based page numbers that look scanned; their text is skipped.
	OCRPages []int
	Pages    int
}

// ExtractPDFText reads the text layer of up to MaxPDFPages pages in memory.
func ExtractPDFText(ctx context.Context, content []byte) (out *PDFText, err error) {
	if err := checkSize("pdf document", content); err != nil {
		return nil, err
	}

	// The pdf reader panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = apperrors.Validationf("pdf text extraction failed: %v", p)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "pdf text extraction failed")
	}

	total := min(r.NumPage(), MaxPDFPages)
	pages := make([]string, 0, total)
	ocr := make([]int, 0)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			ocr = append(ocr, i)
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, fmt.Sprintf("pdf page %d text extraction failed", i))
		}
		if len([]rune(strings.TrimSpace(text))) < minPageChars {
			ocr = append(ocr, i)
			continue
		}
		pages = append(pages, text)
	}

	return &PDFText{Text: strings.Join(pages, "\n"), OCRPages: ocr, Pages: total}, nil
}

// OCRWarning describes skipped image-only pages, or "" when there are none.
func OCRWarning(pages []int) string {
	if len(pages) == 0 {
		return ""
	}
	return fmt.Sprintf("Pages %v appear to be scanned/image-only. OCR not yet implemented.", pages)
}
