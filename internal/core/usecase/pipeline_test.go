package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

func TestEnhancedSearchEmptyRetrievalWithFallback(t *testing.T) {
	reasoner := &reasonerFake{}
	uc := newTestSearchUseCase(&searcherFake{}, reasoner, nil)

	out, err := uc.EnhancedSearch(context.Background(), "unknown topic", 5, domain.SearchOptions{
		UseCorrective: true,
		FallbackToWeb: true,
	})
	if err != nil {
		t.Fatalf("EnhancedSearch() error = %v", err)
	}
	if len(out.Results) != 0 {
		t.Fatalf("expected empty structured results, got %d", len(out.Results))
	}
	if out.Outcome == nil || out.Outcome.FallbackContent == "" {
		t.Fatalf("expected fallback text on the side channel: %+v", out.Outcome)
	}
}

func TestEnhancedSearchWithoutCorrectiveReturnsRerankedTop(t *testing.T) {
	searcher := &searcherFake{
		keywords: []domain.Chunk{
			textChunk("weather", "The weather is sunny today."),
			textChunk("ml", "Support vector machines and random forests are popular machine learning algorithms."),
			textChunk("other", "A note about gardening in spring."),
		},
	}
	uc := newTestSearchUseCase(searcher, nil, nil)

	out, err := uc.EnhancedSearch(context.Background(), "machine learning algorithms", 2, domain.SearchOptions{})
	if err != nil {
		t.Fatalf("EnhancedSearch() error = %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected top 2, got %d", len(out.Results))
	}
	if out.Results[0].Chunk.ID != "ml" {
		t.Fatalf("expected ml chunk first, got %s", out.Results[0].Chunk.ID)
	}
	if out.Outcome != nil {
		t.Fatalf("no corrective outcome expected")
	}
}

func TestEnhancedSearchCorrectiveAcceptKeepsResults(t *testing.T) {
	searcher := &searcherFake{
		keywords: []domain.Chunk{textChunk("ml", "machine learning algorithms explained in detail here")},
	}
	reasoner := &reasonerFake{reply: "relevant\nconfidence: 0.95"}
	uc := newTestSearchUseCase(searcher, reasoner, nil)

	out, err := uc.EnhancedSearch(context.Background(), "machine learning", 5, domain.SearchOptions{UseCorrective: true})
	if err != nil {
		t.Fatalf("EnhancedSearch() error = %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("expected verified results, got %d", len(out.Results))
	}
	if out.Outcome == nil || !out.Outcome.UseRetrievedContent {
		t.Fatalf("expected accepting outcome: %+v", out.Outcome)
	}
}

func TestEnhancedSearchCorrectiveRejectEmptiesResults(t *testing.T) {
	searcher := &searcherFake{
		keywords: []domain.Chunk{textChunk("weather", "sunny weather today")},
	}
	reasoner := &reasonerFake{reply: "irrelevant"}
	uc := newTestSearchUseCase(searcher, reasoner, nil)

	out, err := uc.EnhancedSearch(context.Background(), "weather machine learning", 5, domain.SearchOptions{
		UseCorrective: true,
		FallbackToWeb: true,
	})
	if err != nil {
		t.Fatalf("EnhancedSearch() error = %v", err)
	}
	if len(out.Results) != 0 {
		t.Fatalf("rejected retrieval must return no structured results")
	}
	if out.Outcome.FallbackContent == "" {
		t.Fatalf("expected fallback content")
	}
	if !out.Outcome.WebSearchPerformed && out.Outcome.FallbackContent == "" {
		t.Fatalf("expected fallback signal")
	}
}

func TestEnhancedSearchStorageErrorSurfaces(t *testing.T) {
	uc := newTestSearchUseCase(&searcherFake{err: errors.New("db unreachable")}, nil, nil)
	if _, err := uc.EnhancedSearch(context.Background(), "q", 5, domain.SearchOptions{}); err == nil {
		t.Fatalf("storage failure must surface")
	}
}

func TestGenerateResponseFormatsContextBlock(t *testing.T) {
	searcher := &searcherFake{
		keywords: []domain.Chunk{
			{
				ID:      "c1",
				Content: "machine learning algorithms overview",
				Metadata: domain.ChunkMetadata{
					Title: "ML Guide", Type: domain.ChunkTypeText, WordCount: 4,
				},
			},
		},
	}
	uc := newTestSearchUseCase(searcher, nil, nil)

	resp, err := uc.GenerateResponse(context.Background(), "what are machine learning algorithms", nil)
	if err != nil {
		t.Fatalf("GenerateResponse() error = %v", err)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(resp.Sources))
	}
	if resp.Confidence <= 0 || resp.Confidence > 0.95 {
		t.Fatalf("confidence out of range: %f", resp.Confidence)
	}
	if want := "[Source: ML Guide]"; !strings.Contains(resp.Answer, want) {
		t.Fatalf("answer missing %q:\n%s", want, resp.Answer)
	}
}

func TestGenerateResponseNoMatches(t *testing.T) {
	uc := newTestSearchUseCase(&searcherFake{}, nil, nil)

	resp, err := uc.GenerateResponse(context.Background(), "nothing stored", nil)
	if err != nil {
		t.Fatalf("GenerateResponse() error = %v", err)
	}
	if resp.Answer != noMatchesAnswer {
		t.Fatalf("expected default answer, got %q", resp.Answer)
	}
	if resp.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %f", resp.Confidence)
	}
}

func TestExpandShortQueryUsesLastUserTurn(t *testing.T) {
	history := []domain.ChatTurn{
		{Role: "user", Content: "tell me about the quarterly budget report"},
		{Role: "assistant", Content: "it covers Q3 spending"},
	}
	got := expandShortQuery("and revenue?", history)
	if got != "tell me about the quarterly budget report and revenue?" {
		t.Fatalf("expandShortQuery = %q", got)
	}

	long := "what does the report say about revenue growth"
	if expandShortQuery(long, history) != long {
		t.Fatalf("long queries must pass through unchanged")
	}
}
