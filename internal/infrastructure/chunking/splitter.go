package chunking

import (
	"regexp"
	"strings"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// Splitter turns document text into bounded, overlapping chunk drafts.
// PDF-like sources go through a prose-aware strategy (paragraphs, then
// sentences); everything else is split line by line with a trailing-word
// overlap seed.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(content, title, source string, meta domain.IngestMetadata) []domain.ChunkDraft {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if isPDFLike(source, meta) {
		return s.splitProse(content, title, source)
	}
	return s.splitLines(content, title, source)
}

func isPDFLike(source string, meta domain.IngestMetadata) bool {
	if strings.EqualFold(meta.FileType, "pdf") {
		return true
	}
	if strings.Contains(meta.MimeType, "pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(source), ".pdf")
}

// splitLines accumulates lines until the next one would overflow ChunkSize,
// then flushes and seeds the next chunk with the trailing overlap words of
// the previous one (Overlap/10 approximates the character overlap in words).
func (s *Splitter) splitLines(content, title, source string) []domain.ChunkDraft {
	overlapWords := s.Overlap / 10
	lines := strings.Split(content, "\n")

	var out []domain.ChunkDraft
	var current strings.Builder
	for _, line := range lines {
		if len(line) > s.ChunkSize {
			if current.Len() > 0 {
				out = s.appendDraft(out, current.String(), title, source, domain.ChunkTypeText, 0)
				current.Reset()
			}
			for _, piece := range splitWords(line, s.ChunkSize) {
				out = s.appendDraft(out, piece, title, source, domain.ChunkTypeText, 0)
			}
			continue
		}
		addition := len(line)
		if current.Len() > 0 {
			addition++ // joining newline
		}
		if current.Len() > 0 && current.Len()+addition > s.ChunkSize {
			flushed := current.String()
			out = s.appendDraft(out, flushed, title, source, domain.ChunkTypeText, 0)

			current.Reset()
			// Seed the next chunk with the tail of the previous one unless
			// the incoming line leaves no room for it.
			seed := trailingWords(flushed, overlapWords)
			if seed != "" && len(seed)+1+len(line) <= s.ChunkSize {
				current.WriteString(seed)
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	out = s.appendDraft(out, current.String(), title, source, domain.ChunkTypeText, 0)
	return out
}

// splitProse splits on blank-line paragraph boundaries, falling back to
// sentence boundaries when the text is a single block. Sections accumulate
// up to ChunkSize; a single oversize section is split further on word
// boundaries.
func (s *Splitter) splitProse(content, title, source string) []domain.ChunkDraft {
	sections := splitParagraphs(content)
	if len(sections) <= 1 {
		sections = splitSentences(content)
	}

	var out []domain.ChunkDraft
	var current strings.Builder
	flush := func() {
		out = s.appendDraft(out, current.String(), title, source, domain.ChunkTypePDF, 0)
		current.Reset()
	}

	for _, section := range sections {
		if len(section) > s.ChunkSize {
			if current.Len() > 0 {
				flush()
			}
			for _, piece := range splitWords(section, s.ChunkSize) {
				out = s.appendDraft(out, piece, title, source, domain.ChunkTypePDFLarge, 0)
			}
			continue
		}
		addition := len(section)
		if current.Len() > 0 {
			addition += 2
		}
		if current.Len() > 0 && current.Len()+addition > s.ChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(section)
	}
	if current.Len() > 0 {
		flush()
	}
	return out
}

func (s *Splitter) appendDraft(drafts []domain.ChunkDraft, text, title, source string, chunkType domain.ChunkType, page int) []domain.ChunkDraft {
	text = strings.TrimSpace(text)
	if text == "" {
		return drafts
	}
	return append(drafts, domain.ChunkDraft{
		Content: text,
		Metadata: domain.ChunkMetadata{
			Title:      title,
			Source:     source,
			ChunkIndex: len(drafts),
			Type:       chunkType,
			WordCount:  len(strings.Fields(text)),
			Page:       page,
		},
	})
}

func splitParagraphs(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	raw := regexp.MustCompile(`\n\s*\n`).Split(normalized, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitSentences(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	bounds := sentenceBoundary.FindAllStringIndex(content, -1)
	out := make([]string, 0, len(bounds)+1)
	start := 0
	for _, b := range bounds {
		// keep the terminating punctuation, drop the whitespace
		sentence := strings.TrimSpace(content[start : b[0]+1])
		if sentence != "" {
			out = append(out, sentence)
		}
		start = b[1]
	}
	if rest := strings.TrimSpace(content[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// splitWords cuts an oversize section on word boundaries. A single word
// longer than the limit is emitted as-is: it cannot be split further.
func splitWords(section string, limit int) []string {
	words := strings.Fields(section)
	var out []string
	var current strings.Builder
	for _, word := range words {
		addition := len(word)
		if current.Len() > 0 {
			addition++
		}
		if current.Len() > 0 && current.Len()+addition > limit {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

func trailingWords(text string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
