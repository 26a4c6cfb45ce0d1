package domain

import "time"

type ChunkType string

const (
	ChunkTypeText     ChunkType = "text_chunk"
	ChunkTypePDF      ChunkType = "pdf_chunk"
	ChunkTypePDFLarge ChunkType = "pdf_chunk_large"
)

// IsPDF reports whether the chunk came out of the prose-aware strategy.
func (t ChunkType) IsPDF() bool {
	return t == ChunkTypePDF || t == ChunkTypePDFLarge
}

// Document is an ingested source text. It is immutable after creation;
// deleting it removes all of its chunks.
type Document struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Source      string         `json:"source"`
	ContentHash string         `json:"content_hash"`
	Metadata    IngestMetadata `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

// IngestMetadata travels with a document from upload to chunking.
// Known fields are first-class; Extra carries anything the caller adds.
type IngestMetadata struct {
	FileType  string            `json:"file_type,omitempty"`
	MimeType  string            `json:"mime_type,omitempty"`
	PageCount int               `json:"page_count,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Chunk is the unit of retrieval: a bounded passage owned by exactly one
// document.
type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Content    string        `json:"content"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// ChunkMetadata always carries the owning document's title and source for
// display, the zero-based index within the document, and a type tag.
type ChunkMetadata struct {
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	ChunkIndex int       `json:"chunk_index"`
	Type       ChunkType `json:"type"`
	WordCount  int       `json:"word_count,omitempty"`
	Page       int       `json:"page,omitempty"`
}

// ChunkDraft is a chunker output before it is bound to a stored document.
type ChunkDraft struct {
	Content  string
	Metadata ChunkMetadata
}
