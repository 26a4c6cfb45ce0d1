package pdfextract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

// Extractor pulls plain text from PDF uploads, one trailing blank line per
// page so the chunker's paragraph splitting sees page boundaries.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, r io.Reader) (string, domain.IngestMetadata, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", domain.IngestMetadata{}, fmt.Errorf("read upload: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.IngestMetadata{}, fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	pageCount := reader.NumPage()
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", domain.IngestMetadata{}, fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	meta := domain.IngestMetadata{
		FileType:  "pdf",
		MimeType:  "application/pdf",
		PageCount: pageCount,
	}
	return strings.TrimSpace(sb.String()), meta, nil
}
