package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/chat-rag/internal/core/domain"
	"github.com/kirillkom/chat-rag/internal/core/ports"
)

// SearchConfig holds the injected lexical-scoring tables. Treat values as
// immutable after construction; tests swap whole configs instead of mutating.
type SearchConfig struct {
	StopWords        []string
	MaxKeywords      int
	MinKeywordLength int

	// Boost factors from the lexical pass.
	AnalysisBoost      float64
	AnalysisMinChars   int
	PDFBoost           float64
	LongChunkBoost     float64
	LongChunkWordCount int
	KeywordHitBoost    float64
	MaxScore           float64
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		StopWords: []string{
			"the", "and", "for", "are", "but", "not", "you", "all", "can",
			"had", "her", "was", "one", "our", "out", "day", "get", "has",
			"him", "his", "how", "its", "may", "new", "now", "old", "see",
			"two", "way", "who", "did", "that", "this", "with", "from",
			"they", "will", "have", "what", "when", "where", "which",
		},
		MaxKeywords:      15,
		MinKeywordLength: 3,

		AnalysisBoost:      1.3,
		AnalysisMinChars:   200,
		PDFBoost:           1.1,
		LongChunkBoost:     1.05,
		LongChunkWordCount: 50,
		KeywordHitBoost:    0.1,
		MaxScore:           100,
	}
}

var (
	punctuation     = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	analysisRequest = regexp.MustCompile(`(?i)\b(analy[sz]e|analysis|review|rate|improve|evaluate|assess|critique|feedback|summari[sz]e)\b`)
)

// SearchUseCase runs the retrieval pipeline: lexical search, multi-signal
// re-ranking, corrective relevance evaluation and the fallback source.
type SearchUseCase struct {
	chunks   ports.ChunkSearcher
	reasoner ports.ReasoningService
	fetcher  ports.WebFetcher

	searchCfg     SearchConfig
	rerankCfg     RerankConfig
	correctiveCfg CorrectiveConfig
	fallbackCfg   FallbackConfig

	log *slog.Logger
}

func NewSearchUseCase(
	chunks ports.ChunkSearcher,
	reasoner ports.ReasoningService,
	fetcher ports.WebFetcher,
	searchCfg SearchConfig,
	rerankCfg RerankConfig,
	correctiveCfg CorrectiveConfig,
	fallbackCfg FallbackConfig,
	log *slog.Logger,
) *SearchUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &SearchUseCase{
		chunks:        chunks,
		reasoner:      reasoner,
		fetcher:       fetcher,
		searchCfg:     searchCfg,
		rerankCfg:     rerankCfg,
		correctiveCfg: correctiveCfg,
		fallbackCfg:   fallbackCfg,
		log:           log,
	}
}

// Search is the plain lexical pass: keyword extraction, candidate union,
// Jaccard scoring with boosts, descending stable order, truncated to limit.
func (uc *SearchUseCase) Search(ctx context.Context, query string, limit int, docIDs []string) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	keywords := uc.extractKeywords(query)

	candidates, err := uc.collectCandidates(ctx, query, keywords, docIDs, limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []domain.SearchResult{}, nil
	}

	results := make([]domain.SearchResult, 0, len(candidates))
	for _, chunk := range candidates {
		similarity, score := uc.scoreChunk(query, keywords, chunk)
		results = append(results, domain.SearchResult{
			Chunk:      chunk,
			Score:      score,
			Similarity: similarity,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// collectCandidates unions the phrase-substring pass with the per-keyword
// pass, deduplicated by chunk id in retrieval order.
func (uc *SearchUseCase) collectCandidates(ctx context.Context, query string, keywords []string, docIDs []string, limit int) ([]domain.Chunk, error) {
	// Oversized fetch so dedup and scoring have something to work with.
	fetch := limit * 4
	if fetch < 20 {
		fetch = 20
	}

	seen := make(map[string]struct{})
	var out []domain.Chunk
	add := func(chunks []domain.Chunk) {
		for _, c := range chunks {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}

	byPhrase, err := uc.chunks.SearchByPhrase(ctx, strings.TrimSpace(query), docIDs, fetch)
	if err != nil {
		return nil, fmt.Errorf("phrase candidates: %w", err)
	}
	add(byPhrase)

	if len(keywords) > 0 {
		byKeywords, err := uc.chunks.SearchByKeywords(ctx, keywords, docIDs, fetch)
		if err != nil {
			return nil, fmt.Errorf("keyword candidates: %w", err)
		}
		add(byKeywords)
	}
	return out, nil
}

func (uc *SearchUseCase) scoreChunk(query string, keywords []string, chunk domain.Chunk) (similarity, score float64) {
	queryWords := toWordSet(query)
	chunkWords := toWordSet(chunk.Content)
	similarity = jaccard(queryWords, chunkWords)
	score = similarity * 100

	if analysisRequest.MatchString(query) && len(chunk.Content) > uc.searchCfg.AnalysisMinChars {
		score *= uc.searchCfg.AnalysisBoost
	}
	if chunk.Metadata.Type.IsPDF() {
		score *= uc.searchCfg.PDFBoost
	}
	if chunk.Metadata.WordCount > uc.searchCfg.LongChunkWordCount {
		score *= uc.searchCfg.LongChunkBoost
	}

	content := strings.ToLower(chunk.Content)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			hits++
		}
	}
	score *= 1 + uc.searchCfg.KeywordHitBoost*float64(hits)

	if score > uc.searchCfg.MaxScore {
		score = uc.searchCfg.MaxScore
	}
	return similarity, score
}

// extractKeywords lowercases, strips punctuation, drops short tokens and
// stop words, dedupes in order and caps the count.
func (uc *SearchUseCase) extractKeywords(query string) []string {
	stop := make(map[string]struct{}, len(uc.searchCfg.StopWords))
	for _, w := range uc.searchCfg.StopWords {
		stop[w] = struct{}{}
	}

	cleaned := punctuation.ReplaceAllString(strings.ToLower(query), " ")
	seen := make(map[string]struct{})
	var out []string
	for _, token := range strings.Fields(cleaned) {
		if len(token) < uc.searchCfg.MinKeywordLength {
			continue
		}
		if _, isStop := stop[token]; isStop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
		if len(out) >= uc.searchCfg.MaxKeywords {
			break
		}
	}
	return out
}

func toWordSet(s string) map[string]struct{} {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(s), " ")
	out := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
