package pdfextract

import (
	"context"
	"strings"
	"testing"
)

func TestExtractRejectsNonPDFInput(t *testing.T) {
	ex := NewExtractor()
	_, _, err := ex.Extract(context.Background(), strings.NewReader("plain text, not a pdf"))
	if err == nil {
		t.Fatalf("expected error for non-pdf input")
	}
	if !strings.Contains(err.Error(), "open pdf") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestExtractRejectsEmptyInput(t *testing.T) {
	ex := NewExtractor()
	_, _, err := ex.Extract(context.Background(), strings.NewReader(""))
	if err == nil {
		t.Fatalf("expected error for empty input")
	}
}
