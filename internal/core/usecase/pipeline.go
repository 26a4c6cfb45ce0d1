package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

const candidateMultiplier = 3

const noMatchesAnswer = "I could not find relevant information in the uploaded documents for this question."

// EnhancedSearch runs the full pipeline: an oversized lexical pass feeds the
// re-ranker, the top results optionally go through corrective evaluation,
// and any stage failure degrades to plain lexical output. The only error
// surfaced to the caller is the storage layer being unreachable.
func (uc *SearchUseCase) EnhancedSearch(ctx context.Context, query string, limit int, opts domain.SearchOptions) (*domain.EnhancedSearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	candidates, err := uc.Search(ctx, query, limit*candidateMultiplier, opts.DocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	if len(candidates) == 0 {
		out := &domain.EnhancedSearchResult{Results: []domain.SearchResult{}}
		if opts.UseCorrective {
			out.Outcome = uc.evaluateCorrective(ctx, query, nil, opts)
		}
		return out, nil
	}

	top := uc.safeRerank(query, candidates)
	if len(top) > limit {
		top = top[:limit]
	}

	if !opts.UseCorrective {
		return &domain.EnhancedSearchResult{Results: top}, nil
	}

	outcome := uc.evaluateCorrective(ctx, query, top, opts)
	if !outcome.UseRetrievedContent {
		// Caller reads the fallback text from the outcome side channel.
		return &domain.EnhancedSearchResult{
			Results: []domain.SearchResult{},
			Outcome: outcome,
		}, nil
	}
	return &domain.EnhancedSearchResult{Results: top, Outcome: outcome}, nil
}

// safeRerank degrades to the input order if the re-ranker blows up; pipeline
// failure past the lexical pass is never fatal.
func (uc *SearchUseCase) safeRerank(query string, candidates []domain.SearchResult) (out []domain.SearchResult) {
	defer func() {
		if r := recover(); r != nil {
			uc.log.Error("rerank_panic", "error", fmt.Sprint(r))
			out = candidates
		}
	}()
	return uc.rerank(query, candidates)
}

// GenerateResponse runs a plain search and formats the matches into a
// context block. Confidence is the mean result score normalized to
// [0, 0.95].
func (uc *SearchUseCase) GenerateResponse(ctx context.Context, query string, history []domain.ChatTurn) (*domain.GeneratedResponse, error) {
	searchQuery := expandShortQuery(query, history)

	results, err := uc.Search(ctx, searchQuery, 5, nil)
	if err != nil {
		return nil, fmt.Errorf("search for response: %w", err)
	}

	if len(results) == 0 {
		return &domain.GeneratedResponse{
			Answer:     noMatchesAnswer,
			Sources:    []domain.SearchResult{},
			Confidence: 0,
		}, nil
	}

	var b strings.Builder
	b.WriteString("Based on the uploaded documents:\n")
	total := 0.0
	for _, r := range results {
		total += r.Score
		fmt.Fprintf(&b, "\n[Source: %s]\n%s\n", r.Chunk.Metadata.Title, r.Chunk.Content)
	}

	confidence := total / float64(len(results)) / 100
	if confidence > 0.95 {
		confidence = 0.95
	}
	if confidence < 0 {
		confidence = 0
	}

	return &domain.GeneratedResponse{
		Answer:     b.String(),
		Sources:    results,
		Confidence: confidence,
	}, nil
}

// expandShortQuery folds the latest user turn into very short queries so
// follow-ups like "and the second one?" still retrieve something useful.
func expandShortQuery(query string, history []domain.ChatTurn) string {
	if len(strings.Fields(query)) >= 4 {
		return query
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != "user" {
			continue
		}
		prior := strings.TrimSpace(history[i].Content)
		if prior == "" || prior == strings.TrimSpace(query) {
			continue
		}
		return prior + " " + query
	}
	return query
}
