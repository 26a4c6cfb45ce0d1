package chunking

import (
	"strings"
	"testing"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

func TestSplitWhitespaceOnlyProducesNothing(t *testing.T) {
	s := NewSplitter(1000, 200)
	if drafts := s.Split("   \n\t  \n", "t", "s", domain.IngestMetadata{}); len(drafts) != 0 {
		t.Fatalf("expected no chunks for whitespace input, got %d", len(drafts))
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	drafts := s.Split("hello world", "greeting", "notes.txt", domain.IngestMetadata{})
	if len(drafts) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(drafts))
	}
	d := drafts[0]
	if d.Content != "hello world" {
		t.Fatalf("unexpected content %q", d.Content)
	}
	if d.Metadata.Title != "greeting" || d.Metadata.Source != "notes.txt" {
		t.Fatalf("metadata not copied: %+v", d.Metadata)
	}
	if d.Metadata.ChunkIndex != 0 || d.Metadata.Type != domain.ChunkTypeText {
		t.Fatalf("unexpected index/type: %+v", d.Metadata)
	}
}

func TestSplitLineBasedOverlapSeed(t *testing.T) {
	// ~1500 characters of short lines: expect two chunks, the second
	// seeded with the trailing words of the first.
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("some plain text line with filler words here\n")
	}
	content := strings.TrimSuffix(b.String(), "\n")

	s := NewSplitter(1000, 200)
	drafts := s.Split(content, "doc", "doc.txt", domain.IngestMetadata{})
	if len(drafts) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(drafts))
	}

	seed := trailingWords(drafts[0].Content, 20)
	if !strings.HasPrefix(drafts[1].Content, seed) {
		t.Fatalf("second chunk does not start with overlap seed\nseed: %q\nchunk: %q", seed, drafts[1].Content[:min(len(drafts[1].Content), 200)])
	}
	for i, d := range drafts {
		if d.Metadata.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d", i, d.Metadata.ChunkIndex)
		}
	}
}

func TestSplitSizeBound(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("alpha beta gamma delta epsilon zeta eta theta\n")
	}

	s := NewSplitter(500, 100)
	for _, d := range s.Split(b.String(), "t", "t.txt", domain.IngestMetadata{}) {
		if len(d.Content) > 500 {
			t.Fatalf("chunk exceeds size bound: %d chars", len(d.Content))
		}
	}
}

func TestSplitCoversInput(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("unique")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(" content line number goes here\n")
	}
	content := b.String()

	s := NewSplitter(400, 80)
	drafts := s.Split(content, "t", "t.txt", domain.IngestMetadata{})
	joined := " " + normalizeSpace(joinDrafts(drafts)) + " "
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.Contains(joined, normalizeSpace(line)) {
			t.Fatalf("line dropped during chunking: %q", line)
		}
	}
}

func TestSplitProseParagraphs(t *testing.T) {
	content := "First paragraph with some prose content.\n\nSecond paragraph continues the document.\n\nThird paragraph closes it."
	s := NewSplitter(1000, 200)
	drafts := s.Split(content, "report", "report.pdf", domain.IngestMetadata{FileType: "pdf"})
	if len(drafts) != 1 {
		t.Fatalf("expected paragraphs to accumulate into 1 chunk, got %d", len(drafts))
	}
	d := drafts[0]
	if d.Metadata.Type != domain.ChunkTypePDF {
		t.Fatalf("expected pdf_chunk, got %s", d.Metadata.Type)
	}
	if d.Metadata.WordCount == 0 {
		t.Fatalf("expected word count on pdf chunk")
	}
}

func TestSplitProseSentenceFallback(t *testing.T) {
	// Single block, no blank lines: must fall back to sentence splitting.
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("This sentence is part of one long single block of prose. ")
	}

	s := NewSplitter(300, 60)
	drafts := s.Split(b.String(), "prose", "prose.pdf", domain.IngestMetadata{FileType: "pdf"})
	if len(drafts) < 2 {
		t.Fatalf("expected multiple chunks from sentence fallback, got %d", len(drafts))
	}
	for _, d := range drafts {
		if len(d.Content) > 300 {
			t.Fatalf("prose chunk exceeds bound: %d", len(d.Content))
		}
		if d.Metadata.Type != domain.ChunkTypePDF {
			t.Fatalf("expected pdf_chunk, got %s", d.Metadata.Type)
		}
	}
}

func TestSplitProseOversizeSection(t *testing.T) {
	section := strings.Repeat("word ", 300) // single paragraph, no sentence bounds
	s := NewSplitter(500, 100)
	drafts := s.Split(section, "big", "big.pdf", domain.IngestMetadata{FileType: "pdf"})
	if len(drafts) < 2 {
		t.Fatalf("expected oversize section to split, got %d chunks", len(drafts))
	}
	for _, d := range drafts {
		if d.Metadata.Type != domain.ChunkTypePDFLarge {
			t.Fatalf("expected pdf_chunk_large, got %s", d.Metadata.Type)
		}
		if len(d.Content) > 500 {
			t.Fatalf("chunk exceeds bound: %d", len(d.Content))
		}
	}
}

func TestSplitIndivisibleWordMayExceedBound(t *testing.T) {
	giant := strings.Repeat("a", 700)
	s := NewSplitter(500, 100)
	drafts := s.Split(giant, "t", "t.pdf", domain.IngestMetadata{FileType: "pdf"})
	if len(drafts) != 1 {
		t.Fatalf("expected single chunk for indivisible word, got %d", len(drafts))
	}
	if drafts[0].Content != giant {
		t.Fatalf("indivisible word must be emitted whole")
	}
}

func TestSplitStrategySelection(t *testing.T) {
	cases := []struct {
		name   string
		source string
		meta   domain.IngestMetadata
		want   domain.ChunkType
	}{
		{"pdf suffix", "paper.PDF", domain.IngestMetadata{}, domain.ChunkTypePDF},
		{"pdf mime", "upload", domain.IngestMetadata{MimeType: "application/pdf"}, domain.ChunkTypePDF},
		{"plain", "notes.txt", domain.IngestMetadata{}, domain.ChunkTypeText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSplitter(1000, 200)
			drafts := s.Split("short body", "t", tc.source, tc.meta)
			if len(drafts) != 1 {
				t.Fatalf("expected 1 chunk, got %d", len(drafts))
			}
			if drafts[0].Metadata.Type != tc.want {
				t.Fatalf("expected type %s, got %s", tc.want, drafts[0].Metadata.Type)
			}
		})
	}
}

func joinDrafts(drafts []domain.ChunkDraft) string {
	parts := make([]string, 0, len(drafts))
	for _, d := range drafts {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, " ")
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
