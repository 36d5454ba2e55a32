// Package extract turns uploaded documents into plain text, page by page.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Clean collapses whitespace runs and trims the result. Extracted PDF text
// is full of layout artifacts that would otherwise leak into chunks.
func Clean(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// IsPDF reports whether the filename looks like a PDF document. Everything
// else is treated as plain text.
func IsPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// PageCount returns the number of pages in a PDF, or 1 for plain text files.
func PageCount(path string) (int, error) {
	if !IsPDF(path) {
		return 1, nil
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// Text extracts the full text of a document. For PDFs it walks pages in
// order and calls onPage after each one, returning early if ctx is
// cancelled; the callback doubles as the pipeline's per-page progress and
// scheduling point. Plain text files are read whole and reported as a
// single page.
func Text(ctx context.Context, path string, onPage func(page, total int)) (string, error) {
	if !IsPDF(path) {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		if onPage != nil {
			onPage(1, 1)
		}
		return string(content), nil
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteByte('\n')
		}
		if onPage != nil {
			onPage(i, numPages)
		}
	}
	return buf.String(), nil
}
