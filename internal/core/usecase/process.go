package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/chat-rag/internal/core/domain"
	"github.com/kirillkom/chat-rag/internal/core/ports"
)

// UploadUseCase accepts a raw file, stores it and queues it for the worker.
type UploadUseCase struct {
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	log     *slog.Logger
}

func NewUploadUseCase(storage ports.ObjectStorage, queue ports.MessageQueue, log *slog.Logger) *UploadUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &UploadUseCase{
		storage: storage,
		queue:   queue,
		log:     log,
	}
}

func (uc *UploadUseCase) Upload(ctx context.Context, filename, mimeType string, body io.Reader) (string, error) {
	storageKey := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := uc.queue.PublishFileUploaded(ctx, storageKey); err != nil {
		return "", fmt.Errorf("publish upload event: %w", err)
	}

	uc.log.Info("file_uploaded", "storage_key", storageKey, "mime_type", mimeType)
	return storageKey, nil
}

// ProcessUploadUseCase is the worker side: open the stored file, extract its
// text with the extractor registered for its extension, and ingest it.
type ProcessUploadUseCase struct {
	storage    ports.ObjectStorage
	ingestor   ports.DocumentIngestor
	extractors map[string]ports.TextExtractor
	fallback   ports.TextExtractor
	log        *slog.Logger
}

func NewProcessUploadUseCase(
	storage ports.ObjectStorage,
	ingestor ports.DocumentIngestor,
	extractors map[string]ports.TextExtractor,
	fallback ports.TextExtractor,
	log *slog.Logger,
) *ProcessUploadUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessUploadUseCase{
		storage:    storage,
		ingestor:   ingestor,
		extractors: extractors,
		fallback:   fallback,
		log:        log,
	}
}

func (uc *ProcessUploadUseCase) ProcessUpload(ctx context.Context, storageKey string) (string, error) {
	started := time.Now()

	reader, err := uc.storage.Open(ctx, storageKey)
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", storageKey, err)
	}
	defer reader.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(storageKey), "."))
	extractor := uc.extractors[ext]
	if extractor == nil {
		extractor = uc.fallback
	}
	if extractor == nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "process upload", fmt.Errorf("no extractor for %q", ext))
	}

	text, meta, err := extractor.Extract(ctx, reader)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", storageKey, err)
	}
	if meta.FileType == "" {
		meta.FileType = ext
	}

	title := titleFromStorageKey(storageKey)
	documentID, err := uc.ingestor.AddDocument(ctx, title, text, storageKey, meta)
	if err != nil {
		return "", err
	}

	uc.log.Info("upload_processed",
		"storage_key", storageKey,
		"document_id", documentID,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return documentID, nil
}

// titleFromStorageKey drops the uuid prefix the uploader added and the
// extension.
func titleFromStorageKey(storageKey string) string {
	name := filepath.Base(storageKey)
	if idx := strings.Index(name, "_"); idx >= 0 && idx == 36 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return storageKey
	}
	return name
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
