package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

func rerankInput(score float64, id, content string) domain.SearchResult {
	return domain.SearchResult{
		Chunk: domain.Chunk{
			ID:      id,
			Content: content,
			Metadata: domain.ChunkMetadata{
				Type:      domain.ChunkTypeText,
				WordCount: len(strings.Fields(content)),
			},
		},
		Score: score,
	}
}

func TestRerankOrdersRelevantAboveUnrelated(t *testing.T) {
	uc := newTestSearchUseCase(&searcherFake{}, nil, nil)

	results := []domain.SearchResult{
		rerankInput(10, "weather", "The weather is sunny today."),
		rerankInput(10, "ml", "Support vector machines and random forests are popular machine learning algorithms."),
	}

	out := uc.rerank("machine learning algorithms", results)
	if out[0].Chunk.ID != "ml" {
		t.Fatalf("expected machine-learning chunk first, got %s", out[0].Chunk.ID)
	}
	if out[0].Score <= out[1].Score {
		t.Fatalf("expected strict ordering, got %f <= %f", out[0].Score, out[1].Score)
	}
}

func TestRerankExactMatchDominatesNoOverlap(t *testing.T) {
	uc := newTestSearchUseCase(&searcherFake{}, nil, nil)

	results := []domain.SearchResult{
		rerankInput(20, "none", "completely different subject matter entirely"),
		rerankInput(20, "exact", "this passage contains the budget forecast verbatim for review"),
	}

	out := uc.rerank("budget forecast", results)
	if out[0].Chunk.ID != "exact" {
		t.Fatalf("expected exact-match chunk first, got %s", out[0].Chunk.ID)
	}
}

func TestRerankScoreBounds(t *testing.T) {
	uc := newTestSearchUseCase(&searcherFake{}, nil, nil)

	content := strings.Repeat("machine learning algorithms are great. ", 20)
	results := []domain.SearchResult{
		rerankInput(95, "hot", content),
		rerankInput(0, "cold", "x"),
	}
	out := uc.rerank("machine learning algorithms", results)
	for _, r := range out {
		if r.Score < 0 || r.Score > 100 {
			t.Fatalf("score out of bounds: %f", r.Score)
		}
	}
}

func TestRerankPreservesInputSlice(t *testing.T) {
	uc := newTestSearchUseCase(&searcherFake{}, nil, nil)
	in := []domain.SearchResult{
		rerankInput(1, "a", "alpha"),
		rerankInput(2, "b", "machine learning algorithms"),
	}
	_ = uc.rerank("machine learning algorithms", in)
	if in[0].Chunk.ID != "a" || in[0].Score != 1 {
		t.Fatalf("rerank mutated its input: %+v", in[0])
	}
}

func TestRerankEmptyInput(t *testing.T) {
	uc := newTestSearchUseCase(&searcherFake{}, nil, nil)
	if out := uc.rerank("q", nil); len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
}

func TestExactMatchBonus(t *testing.T) {
	q := newRerankQuery("machine learning", DefaultRerankConfig())
	if got := q.exactMatchBonus("all about machine learning here"); got != 25 {
		t.Fatalf("exact match bonus = %f, want 25", got)
	}
	if got := q.exactMatchBonus("machine tools and deep learning"); got != 0 {
		t.Fatalf("non-contiguous terms must not get exact bonus, got %f", got)
	}
}

func TestTermFrequencyBonusCapsPerTerm(t *testing.T) {
	q := newRerankQuery("budget", DefaultRerankConfig())
	content := strings.Repeat("budget ", 10)
	if got := q.termFrequencyBonus(content); got != 12 {
		t.Fatalf("term frequency bonus = %f, want cap 12", got)
	}
	if got := q.termFrequencyBonus("budget once"); got != 3 {
		t.Fatalf("single occurrence bonus = %f, want 3", got)
	}
}

func TestTermFrequencyUsesWordBoundaries(t *testing.T) {
	q := newRerankQuery("rate", DefaultRerankConfig())
	if got := q.termFrequencyBonus("corporate strategies operate separately"); got != 0 {
		t.Fatalf("substring matches must not count, got %f", got)
	}
}

func TestProximityBonusWithinWindow(t *testing.T) {
	q := newRerankQuery("machine learning", DefaultRerankConfig())
	near := q.proximityBonus("machine learning")
	far := q.proximityBonus("machine " + strings.Repeat("x ", 60) + "learning")
	if near <= 0 {
		t.Fatalf("adjacent terms must earn proximity bonus, got %f", near)
	}
	if far != 0 {
		t.Fatalf("terms beyond the window must earn nothing, got %f", far)
	}
}

func TestPositionBonusFavorsEarlyTerms(t *testing.T) {
	q := newRerankQuery("budget", DefaultRerankConfig())
	early := q.positionBonus("budget " + strings.Repeat("filler ", 50))
	late := q.positionBonus(strings.Repeat("filler ", 50) + "budget")
	if early <= late {
		t.Fatalf("expected early occurrence to score higher: early=%f late=%f", early, late)
	}
}

func TestLengthAdjustment(t *testing.T) {
	q := newRerankQuery("q", DefaultRerankConfig())
	if got := q.lengthAdjustment("tiny"); got != -5 {
		t.Fatalf("short chunk adjustment = %f, want -5", got)
	}
	long := strings.Repeat("word ", 400)
	if got := q.lengthAdjustment(long); got != -3 {
		t.Fatalf("long chunk adjustment = %f, want -3", got)
	}
	optimal := strings.Repeat("word ", 60)
	if got := q.lengthAdjustment(optimal); got != 3 {
		t.Fatalf("optimal chunk adjustment = %f, want 3", got)
	}
}

func TestTitleBonusRatio(t *testing.T) {
	q := newRerankQuery("machine learning", DefaultRerankConfig())
	if got := q.titleBonus("Machine Learning Basics"); got != 10 {
		t.Fatalf("full title match = %f, want 10", got)
	}
	if got := q.titleBonus("Machine Tools"); got != 5 {
		t.Fatalf("half title match = %f, want 5", got)
	}
	if got := q.titleBonus(""); got != 0 {
		t.Fatalf("missing title must score 0, got %f", got)
	}
}

func TestBigramBonus(t *testing.T) {
	q := newRerankQuery("machine learning algorithms", DefaultRerankConfig())
	got := q.bigramBonus("popular machine learning algorithms overview")
	if got != 16 {
		t.Fatalf("expected both bigrams to match (+16), got %f", got)
	}
}

func TestExtractPhrases(t *testing.T) {
	phrases := extractPhrases(`find "annual report" numbers for the last fiscal year`, []string{"find", "annual", "report", "numbers", "for", "the", "last", "fiscal", "year"}, 5)
	if len(phrases) == 0 {
		t.Fatalf("expected phrases")
	}
	if phrases[0] != "annual report" {
		t.Fatalf("quoted phrase must come first, got %q", phrases[0])
	}
	for _, p := range phrases {
		if len(p) <= 5 {
			t.Fatalf("short phrase %q not filtered", p)
		}
	}
}
