package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

// RerankConfig holds the weights of the multi-signal lexical scorer. The
// "cross-encoder" role from the literature is filled here by deterministic
// rules, not a learned model.
type RerankConfig struct {
	ExactMatchBonus   float64
	PhraseMatchTotal  float64
	MinPhraseLength   int
	TermFreqPerHit    float64
	TermFreqCap       float64
	ProximityWindow   int
	ProximityScale    float64
	ProximityCap      float64
	PositionScale     float64
	PositionCap       float64
	ShortPenalty      float64
	LongPenalty       float64
	OptimalBonus      float64
	MinChars          int
	MinWords          int
	MaxChars          int
	MaxWords          int
	OptimalMinChars   int
	OptimalMaxChars   int
	OptimalMinWords   int
	OptimalMaxWords   int
	TitleBoostCap     float64
	BigramBonus       float64
	MaxScore          float64
}

func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		ExactMatchBonus:  25,
		PhraseMatchTotal: 15,
		MinPhraseLength:  5,
		TermFreqPerHit:   3,
		TermFreqCap:      12,
		ProximityWindow:  100,
		ProximityScale:   8,
		ProximityCap:     20,
		PositionScale:    5,
		PositionCap:      15,
		ShortPenalty:     5,
		LongPenalty:      3,
		OptimalBonus:     3,
		MinChars:         50,
		MinWords:         10,
		MaxChars:         1500,
		MaxWords:         300,
		OptimalMinChars:  100,
		OptimalMaxChars:  800,
		OptimalMinWords:  20,
		OptimalMaxWords:  150,
		TitleBoostCap:    10,
		BigramBonus:      8,
		MaxScore:         100,
	}
}

var quotedPhrase = regexp.MustCompile(`"([^"]+)"`)

// rerank recomputes every result's score from the original score plus the
// configured lexical bonuses, then sorts descending. A failure while scoring
// one chunk keeps that chunk's original score; the batch never aborts.
func (uc *SearchUseCase) rerank(query string, results []domain.SearchResult) []domain.SearchResult {
	if len(results) == 0 {
		return results
	}

	q := newRerankQuery(query, uc.rerankCfg)
	out := make([]domain.SearchResult, len(results))
	copy(out, results)

	for i := range out {
		score, err := q.score(out[i])
		if err != nil {
			uc.log.Warn("rerank_chunk_failed",
				"chunk_id", out[i].Chunk.ID,
				"error", err,
			)
			continue // original score stands
		}
		out[i].Score = score
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// rerankQuery precomputes query-derived state shared by every chunk.
type rerankQuery struct {
	cfg     RerankConfig
	lowered string
	terms   []string
	phrases []string
	bigrams []string
	termRe  map[string]*regexp.Regexp
}

func newRerankQuery(query string, cfg RerankConfig) *rerankQuery {
	lowered := strings.ToLower(strings.TrimSpace(query))
	terms := strings.Fields(punctuation.ReplaceAllString(lowered, " "))

	q := &rerankQuery{
		cfg:     cfg,
		lowered: lowered,
		terms:   terms,
		phrases: extractPhrases(lowered, terms, cfg.MinPhraseLength),
		bigrams: extractBigrams(terms),
		termRe:  make(map[string]*regexp.Regexp, len(terms)),
	}
	for _, term := range terms {
		if _, ok := q.termRe[term]; ok {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		q.termRe[term] = re
	}
	return q
}

func (q *rerankQuery) score(result domain.SearchResult) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("score chunk: %v", r)
		}
	}()

	content := strings.ToLower(result.Chunk.Content)
	bonus := 0.0
	bonus += q.exactMatchBonus(content)
	bonus += q.phraseBonus(content)
	bonus += q.termFrequencyBonus(content)
	bonus += q.proximityBonus(content)
	bonus += q.positionBonus(content)
	bonus += q.lengthAdjustment(result.Chunk.Content)
	bonus += q.titleBonus(result.Chunk.Metadata.Title)
	bonus += q.bigramBonus(content)

	score = result.Score + bonus
	if score > q.cfg.MaxScore {
		score = q.cfg.MaxScore
	}
	if score < 0 {
		score = 0
	}
	return score, nil
}

func (q *rerankQuery) exactMatchBonus(content string) float64 {
	if q.lowered == "" {
		return 0
	}
	if strings.Contains(content, q.lowered) {
		return q.cfg.ExactMatchBonus
	}
	return 0
}

func (q *rerankQuery) phraseBonus(content string) float64 {
	if len(q.phrases) == 0 {
		return 0
	}
	per := q.cfg.PhraseMatchTotal / float64(len(q.phrases))
	bonus := 0.0
	for _, phrase := range q.phrases {
		if strings.Contains(content, phrase) {
			bonus += per
		}
	}
	return bonus
}

func (q *rerankQuery) termFrequencyBonus(content string) float64 {
	bonus := 0.0
	for _, term := range q.terms {
		re := q.termRe[term]
		if re == nil {
			continue
		}
		occurrences := len(re.FindAllStringIndex(content, -1))
		if occurrences == 0 {
			continue
		}
		hit := q.cfg.TermFreqPerHit * float64(occurrences)
		if hit > q.cfg.TermFreqCap {
			hit = q.cfg.TermFreqCap
		}
		bonus += hit
	}
	return bonus
}

// proximityBonus rewards adjacent query terms that appear close together.
func (q *rerankQuery) proximityBonus(content string) float64 {
	bonus := 0.0
	for i := 0; i+1 < len(q.terms); i++ {
		first := q.firstIndex(content, q.terms[i])
		second := q.firstIndex(content, q.terms[i+1])
		if first < 0 || second < 0 {
			continue
		}
		distance := second - first
		if distance < 0 {
			distance = -distance
		}
		if distance > q.cfg.ProximityWindow {
			continue
		}
		bonus += float64(q.cfg.ProximityWindow-distance) / float64(q.cfg.ProximityWindow) * q.cfg.ProximityScale
	}
	if bonus > q.cfg.ProximityCap {
		bonus = q.cfg.ProximityCap
	}
	return bonus
}

// positionBonus rewards terms that occur early in the chunk.
func (q *rerankQuery) positionBonus(content string) float64 {
	if len(content) == 0 {
		return 0
	}
	bonus := 0.0
	for _, term := range q.terms {
		idx := q.firstIndex(content, term)
		if idx < 0 {
			continue
		}
		bonus += (1 - float64(idx)/float64(len(content))) * q.cfg.PositionScale
	}
	if bonus > q.cfg.PositionCap {
		bonus = q.cfg.PositionCap
	}
	return bonus
}

func (q *rerankQuery) lengthAdjustment(content string) float64 {
	chars := len(content)
	words := len(strings.Fields(content))
	switch {
	case chars < q.cfg.MinChars || words < q.cfg.MinWords:
		return -q.cfg.ShortPenalty
	case chars > q.cfg.MaxChars || words > q.cfg.MaxWords:
		return -q.cfg.LongPenalty
	case chars >= q.cfg.OptimalMinChars && chars <= q.cfg.OptimalMaxChars &&
		words >= q.cfg.OptimalMinWords && words <= q.cfg.OptimalMaxWords:
		return q.cfg.OptimalBonus
	default:
		return 0
	}
}

func (q *rerankQuery) titleBonus(title string) float64 {
	if title == "" || len(q.terms) == 0 {
		return 0
	}
	lowered := strings.ToLower(title)
	matches := 0
	for _, term := range q.terms {
		if strings.Contains(lowered, term) {
			matches++
		}
	}
	return float64(matches) / float64(len(q.terms)) * q.cfg.TitleBoostCap
}

func (q *rerankQuery) bigramBonus(content string) float64 {
	bonus := 0.0
	for _, bigram := range q.bigrams {
		if strings.Contains(content, bigram) {
			bonus += q.cfg.BigramBonus
		}
	}
	return bonus
}

func (q *rerankQuery) firstIndex(content, term string) int {
	re := q.termRe[term]
	if re == nil {
		return -1
	}
	loc := re.FindStringIndex(content)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// extractPhrases collects quoted substrings plus every 3-word sliding window
// of the query, length-filtered.
func extractPhrases(lowered string, terms []string, minLen int) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		p = strings.TrimSpace(p)
		if len(p) <= minLen {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, m := range quotedPhrase.FindAllStringSubmatch(lowered, -1) {
		add(m[1])
	}
	for i := 0; i+2 < len(terms); i++ {
		add(strings.Join(terms[i:i+3], " "))
	}
	return out
}

func extractBigrams(terms []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for i := 0; i+1 < len(terms); i++ {
		pair := terms[i] + " " + terms[i+1]
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		out = append(out, pair)
	}
	return out
}
