package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/chat-rag/internal/core/domain"
	"github.com/kirillkom/chat-rag/internal/core/ports"
)

// IngestUseCase turns raw document text into a stored, chunked document.
// Ingestion is idempotent by content hash.
type IngestUseCase struct {
	repo    ports.DocumentRepository
	chunker ports.Chunker
	log     *slog.Logger
}

func NewIngestUseCase(repo ports.DocumentRepository, chunker ports.Chunker, log *slog.Logger) *IngestUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &IngestUseCase{
		repo:    repo,
		chunker: chunker,
		log:     log,
	}
}

func (uc *IngestUseCase) AddDocument(ctx context.Context, title, content, source string, meta domain.IngestMetadata) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "add document", errors.New("empty content"))
	}

	hash := contentHash(content)

	if existing, err := uc.repo.FindByContentHash(ctx, hash); err == nil {
		uc.log.Debug("duplicate_document_skipped", "document_id", existing.ID, "source", source)
		return existing.ID, nil
	} else if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		return "", domain.WrapError(domain.ErrIngestionFailed, "dedup lookup", err)
	}

	doc := &domain.Document{
		ID:          uuid.NewString(),
		Title:       title,
		Content:     content,
		Source:      source,
		ContentHash: hash,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	}

	drafts := uc.chunker.Split(content, title, source, meta)
	chunks := make([]domain.Chunk, 0, len(drafts))
	for _, draft := range drafts {
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Content:    draft.Content,
			Metadata:   draft.Metadata,
		})
	}

	err := uc.repo.CreateWithChunks(ctx, doc, chunks)
	if err == nil {
		uc.log.Info("document_ingested",
			"document_id", doc.ID,
			"source", source,
			"chunks", len(chunks),
		)
		return doc.ID, nil
	}

	// Two concurrent uploads of identical content can both pass the prior
	// existence check; the content_hash unique constraint is the
	// authoritative guard, so re-read the winner.
	if domain.IsKind(err, domain.ErrDuplicateContent) {
		existing, lookupErr := uc.repo.FindByContentHash(ctx, hash)
		if lookupErr != nil {
			return "", domain.WrapError(domain.ErrIngestionFailed, "dedup re-read", lookupErr)
		}
		return existing.ID, nil
	}

	return "", domain.WrapError(domain.ErrIngestionFailed, "persist document", err)
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
