package ports

import (
	"context"
	"io"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

// DocumentRepository persists documents with their chunks.
//
// The storage layer owns a uniqueness constraint on content_hash; it is the
// authoritative dedup guard for concurrent ingestion of identical content.
// CreateWithChunks must report a constraint violation as
// domain.ErrDuplicateContent so the caller can re-read the winner.
type DocumentRepository interface {
	CreateWithChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error
	FindByContentHash(ctx context.Context, hash string) (*domain.Document, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
}

// ChunkSearcher provides the candidate-generation primitives for lexical
// search. Both queries are case-insensitive; docIDs narrows the scope when
// non-empty.
type ChunkSearcher interface {
	SearchByPhrase(ctx context.Context, phrase string, docIDs []string, limit int) ([]domain.Chunk, error)
	SearchByKeywords(ctx context.Context, keywords []string, docIDs []string, limit int) ([]domain.Chunk, error)
}

// Chunker splits document text into bounded, overlapping drafts.
type Chunker interface {
	Split(content, title, source string, meta domain.IngestMetadata) []domain.ChunkDraft
}

// ReasoningService is the external chat-completion call used for relevance
// grading. Provider errors surface as plain errors; the caller degrades
// gracefully.
type ReasoningService interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts domain.CompletionOptions) (string, error)
}

// WebPage is what the fallback fetcher scrapes from one URL.
type WebPage struct {
	Title string
	Text  string
}

// WebFetcher retrieves external page content for the fallback source.
type WebFetcher interface {
	Fetch(ctx context.Context, url string) (WebPage, error)
}

// ObjectStorage stores raw uploaded files until the worker ingests them.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue carries upload events from the api to the worker.
type MessageQueue interface {
	PublishFileUploaded(ctx context.Context, storageKey string) error
	SubscribeFileUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor pulls plain text out of a stored upload.
type TextExtractor interface {
	Extract(ctx context.Context, r io.Reader) (string, domain.IngestMetadata, error)
}
