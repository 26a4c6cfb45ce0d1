package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/chat-rag/internal/core/ports"
)

func TestOptimizeFallbackQuery(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"What is machine learning?", "machine learning"},
		{"how does the chunker work", "chunker work"},
		{"machine learning", "machine learning"},
		{"Tell me about Go", "me about Go"},
		{"why?", "why"}, // degenerate all-interrogative query keeps the original
	}
	for _, tc := range cases {
		if got := optimizeFallbackQuery(tc.in); got != tc.want {
			t.Fatalf("optimizeFallbackQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFallbackContentUsesWebFetch(t *testing.T) {
	fetcher := &fetcherFake{page: ports.WebPage{Title: "Result page", Text: "useful external content"}}
	uc := newTestSearchUseCase(&searcherFake{}, nil, fetcher)
	uc.fallbackCfg.SearchURLTemplates = []string{"https://search.example/q=%s"}

	content, fetched := uc.fallbackContent(context.Background(), "what is machine learning?", true)
	if !fetched {
		t.Fatalf("expected a live fetch")
	}
	if !strings.Contains(content, "useful external content") {
		t.Fatalf("content missing page text: %q", content)
	}
	if !strings.Contains(fetcher.url, "machine+learning") {
		t.Fatalf("expected optimized query in url, got %q", fetcher.url)
	}
}

func TestFallbackContentFetchFailureFallsBackToGuidance(t *testing.T) {
	fetcher := &fetcherFake{err: errors.New("timeout")}
	uc := newTestSearchUseCase(&searcherFake{}, nil, fetcher)
	uc.fallbackCfg.SearchURLTemplates = []string{"https://search.example/q=%s"}

	content, fetched := uc.fallbackContent(context.Background(), "obscure topic", true)
	if fetched {
		t.Fatalf("failed fetch must not be reported as performed")
	}
	if !strings.Contains(content, "obscure topic") {
		t.Fatalf("guidance message must name the query, got %q", content)
	}
}

func TestFallbackContentWithoutWebIsTemplated(t *testing.T) {
	uc := newTestSearchUseCase(&searcherFake{}, nil, nil)

	content, fetched := uc.fallbackContent(context.Background(), "what is quantum computing", false)
	if fetched {
		t.Fatalf("no fetch expected")
	}
	if !strings.Contains(content, "quantum computing") {
		t.Fatalf("guidance must name the topic: %q", content)
	}
}

func TestFallbackContentTruncatesLongPages(t *testing.T) {
	fetcher := &fetcherFake{page: ports.WebPage{Text: strings.Repeat("x", 10000)}}
	uc := newTestSearchUseCase(&searcherFake{}, nil, fetcher)
	uc.fallbackCfg.SearchURLTemplates = []string{"https://search.example/q=%s"}
	uc.fallbackCfg.MaxContentChars = 100

	content, _ := uc.fallbackContent(context.Background(), "topic", true)
	if len(content) > 110 {
		t.Fatalf("expected truncation, got %d chars", len(content))
	}
}
