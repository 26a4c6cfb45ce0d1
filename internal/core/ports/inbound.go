package ports

import (
	"context"
	"io"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document ingestion.
// AddDocument is idempotent by content: re-ingesting identical text returns
// the existing document id without re-chunking.
type DocumentIngestor interface {
	AddDocument(ctx context.Context, title, content, source string, meta domain.IngestMetadata) (string, error)
}

// SearchService is the inbound contract for the retrieval pipeline.
type SearchService interface {
	EnhancedSearch(ctx context.Context, query string, limit int, opts domain.SearchOptions) (*domain.EnhancedSearchResult, error)
	GenerateResponse(ctx context.Context, query string, history []domain.ChatTurn) (*domain.GeneratedResponse, error)
}

// FileUploader accepts a raw file and queues it for asynchronous ingestion.
type FileUploader interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (string, error)
}

// UploadProcessor turns a stored upload into an ingested document.
type UploadProcessor interface {
	ProcessUpload(ctx context.Context, storageKey string) (string, error)
}

// DocumentReader is the inbound read model for stored documents.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
}
