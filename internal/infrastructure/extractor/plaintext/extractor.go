package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

// Extractor reads UTF-8 text uploads as-is. It is the default when no
// extension-specific extractor matches.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, r io.Reader) (string, domain.IngestMetadata, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", domain.IngestMetadata{}, fmt.Errorf("read upload: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", domain.IngestMetadata{}, fmt.Errorf("upload is not valid utf-8 text")
	}

	meta := domain.IngestMetadata{MimeType: "text/plain"}
	return strings.TrimSpace(string(raw)), meta, nil
}
