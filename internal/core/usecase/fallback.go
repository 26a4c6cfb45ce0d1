package usecase

import (
	"context"
	"fmt"
	"strings"
)

// FallbackConfig controls the alternate content source consulted when
// retrieval is judged insufficient.
type FallbackConfig struct {
	// SearchURLTemplates are fetched in order with %s replaced by the
	// URL-escaped optimized query; the first page with usable text wins.
	SearchURLTemplates []string
	MaxContentChars    int
}

func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		SearchURLTemplates: nil,
		MaxContentChars:    4000,
	}
}

var interrogatives = map[string]struct{}{
	"what": {}, "when": {}, "where": {}, "which": {}, "who": {}, "whom": {},
	"whose": {}, "why": {}, "how": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "do": {}, "does": {}, "did": {}, "can": {}, "could": {},
	"should": {}, "would": {}, "will": {}, "tell": {}, "explain": {},
	"please": {},
}

const fallbackApology = "I wasn't able to find additional information for this request. Please try rephrasing your question."

// fallbackContent returns alternative text for the query. It reports whether
// a live web fetch produced the content. It never fails past this boundary:
// internal errors degrade to a generic apology.
func (uc *SearchUseCase) fallbackContent(ctx context.Context, query string, useWeb bool) (content string, fetched bool) {
	defer func() {
		if r := recover(); r != nil {
			uc.log.Error("fallback_panic", "error", fmt.Sprint(r))
			content, fetched = fallbackApology, false
		}
	}()

	optimized := optimizeFallbackQuery(query)

	if useWeb && uc.fetcher != nil {
		for _, tmpl := range uc.fallbackCfg.SearchURLTemplates {
			url := fmt.Sprintf(tmpl, urlQueryEscape(optimized))
			page, err := uc.fetcher.Fetch(ctx, url)
			if err != nil {
				uc.log.Warn("fallback_fetch_failed", "url", url, "error", err)
				continue
			}
			text := strings.TrimSpace(page.Text)
			if text == "" {
				continue
			}
			if len(text) > uc.fallbackCfg.MaxContentChars {
				text = text[:uc.fallbackCfg.MaxContentChars]
			}
			if page.Title != "" {
				return page.Title + "\n\n" + text, true
			}
			return text, true
		}
	}

	return guidanceMessage(optimized), false
}

// optimizeFallbackQuery strips leading interrogative words and the trailing
// question mark so the remainder works as a search phrase.
func optimizeFallbackQuery(query string) string {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), "?"))
	words := strings.Fields(trimmed)
	for len(words) > 0 {
		if _, ok := interrogatives[strings.ToLower(words[0])]; !ok {
			break
		}
		words = words[1:]
	}
	if len(words) == 0 {
		return trimmed
	}
	return strings.Join(words, " ")
}

func guidanceMessage(topic string) string {
	if topic == "" {
		topic = "this topic"
	}
	return fmt.Sprintf(
		"I couldn't find relevant information about %q in the uploaded documents. "+
			"You may want to consult general web resources, official documentation or "+
			"a subject-matter reference for %q, or upload a document that covers it.",
		topic, topic,
	)
}

func urlQueryEscape(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "+")
}
