package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/kirillkom/chat-rag/internal/core/domain"
	"github.com/kirillkom/chat-rag/internal/core/ports"
)

type storageFake struct {
	files    map[string]string
	savedKey string
	saveErr  error
}

func newStorageFake() *storageFake {
	return &storageFake{files: make(map[string]string)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.files[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	content, ok := f.files[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishFileUploaded(_ context.Context, storageKey string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, storageKey)
	return nil
}

func (f *queueFake) SubscribeFileUploaded(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type extractorFake struct {
	text string
	meta domain.IngestMetadata
	err  error
}

func (f *extractorFake) Extract(_ context.Context, r io.Reader) (string, domain.IngestMetadata, error) {
	if f.err != nil {
		return "", domain.IngestMetadata{}, f.err
	}
	if f.text != "" {
		return f.text, f.meta, nil
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", domain.IngestMetadata{}, err
	}
	return string(raw), f.meta, nil
}

type ingestorFake struct {
	title, content, source string
	meta                   domain.IngestMetadata
	id                     string
	err                    error
}

func (f *ingestorFake) AddDocument(_ context.Context, title, content, source string, meta domain.IngestMetadata) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.title, f.content, f.source, f.meta = title, content, source, meta
	if f.id == "" {
		f.id = "doc-1"
	}
	return f.id, nil
}

func TestUploadSavesAndPublishes(t *testing.T) {
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewUploadUseCase(storage, queue, slog.New(slog.DiscardHandler))

	key, err := uc.Upload(context.Background(), "my report.txt", "text/plain", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !strings.HasSuffix(key, "_my_report.txt") {
		t.Fatalf("expected sanitized key suffix, got %s", key)
	}
	if storage.files[key] != "hello" {
		t.Fatalf("file body not stored")
	}
	if len(queue.published) != 1 || queue.published[0] != key {
		t.Fatalf("expected upload event for %s, got %v", key, queue.published)
	}
}

func TestUploadQueueErrorPropagates(t *testing.T) {
	uc := NewUploadUseCase(newStorageFake(), &queueFake{err: errors.New("queue down")}, slog.New(slog.DiscardHandler))
	if _, err := uc.Upload(context.Background(), "a.txt", "text/plain", bytes.NewBufferString("x")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestProcessUploadSelectsExtractorByExtension(t *testing.T) {
	storage := newStorageFake()
	storage.files["123_doc.pdf"] = "%PDF raw bytes"
	pdfExtractor := &extractorFake{text: "extracted pdf text", meta: domain.IngestMetadata{FileType: "pdf", PageCount: 2}}
	plain := &extractorFake{}
	ingestor := &ingestorFake{}

	uc := NewProcessUploadUseCase(storage, ingestor, map[string]ports.TextExtractor{
		"pdf": pdfExtractor,
	}, plain, slog.New(slog.DiscardHandler))

	id, err := uc.ProcessUpload(context.Background(), "123_doc.pdf")
	if err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}
	if id != "doc-1" {
		t.Fatalf("expected ingested document id, got %s", id)
	}
	if ingestor.content != "extracted pdf text" {
		t.Fatalf("pdf extractor not used: %q", ingestor.content)
	}
	if ingestor.meta.PageCount != 2 {
		t.Fatalf("extractor metadata not forwarded: %+v", ingestor.meta)
	}
}

func TestProcessUploadFallsBackToDefaultExtractor(t *testing.T) {
	storage := newStorageFake()
	storage.files["k_notes.md"] = "plain markdown notes"
	ingestor := &ingestorFake{}

	uc := NewProcessUploadUseCase(storage, ingestor, map[string]ports.TextExtractor{}, &extractorFake{}, slog.New(slog.DiscardHandler))

	if _, err := uc.ProcessUpload(context.Background(), "k_notes.md"); err != nil {
		t.Fatalf("ProcessUpload() error = %v", err)
	}
	if ingestor.content != "plain markdown notes" {
		t.Fatalf("default extractor not used: %q", ingestor.content)
	}
	if ingestor.meta.FileType != "md" {
		t.Fatalf("expected file type from extension, got %q", ingestor.meta.FileType)
	}
}

func TestProcessUploadMissingFileFails(t *testing.T) {
	uc := NewProcessUploadUseCase(newStorageFake(), &ingestorFake{}, nil, &extractorFake{}, slog.New(slog.DiscardHandler))
	if _, err := uc.ProcessUpload(context.Background(), "gone.txt"); err == nil {
		t.Fatalf("expected error for missing upload")
	}
}

func TestTitleFromStorageKey(t *testing.T) {
	key := "b3c8a5be-92d5-4a8f-bb09-0a1e56d3f7aa_quarterly_report.pdf"
	if got := titleFromStorageKey(key); got != "quarterly report" {
		t.Fatalf("titleFromStorageKey = %q", got)
	}
	if got := titleFromStorageKey("plain.txt"); got != "plain" {
		t.Fatalf("titleFromStorageKey without prefix = %q", got)
	}
}
