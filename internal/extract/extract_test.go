package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \n\t ", ""},
		{"collapses runs", "a  b\n\nc\td", "a b c d"},
		{"trims edges", "  hello world \n", "hello world"},
		{"already clean", "hello world", "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsPDF(t *testing.T) {
	if !IsPDF("report.pdf") || !IsPDF("REPORT.PDF") {
		t.Error("pdf extensions should be detected case-insensitively")
	}
	if IsPDF("notes.txt") || IsPDF("pdf") {
		t.Error("non-pdf names misdetected")
	}
}

func TestTextPlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("some plain text"), 0644); err != nil {
		t.Fatal(err)
	}

	var pages, total int
	text, err := Text(context.Background(), path, func(p, tot int) {
		pages, total = p, tot
	})
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if text != "some plain text" {
		t.Errorf("Text() = %q", text)
	}
	if pages != 1 || total != 1 {
		t.Errorf("plain text should report a single page, got %d/%d", pages, total)
	}
}

func TestTextMissingFile(t *testing.T) {
	if _, err := Text(context.Background(), "/nonexistent/file.txt", nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPageCountPlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	n, err := PageCount(path)
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PageCount() = %d, want 1", n)
	}
}
