package domain

// SearchResult pairs a chunk with its heuristic relevance score.
// Score is 0..100 and capped, not a probability; Similarity is the raw
// Jaccard similarity in [0,1] from the lexical pass.
type SearchResult struct {
	Chunk      Chunk   `json:"chunk"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

type RelevanceLabel string

const (
	LabelRelevant          RelevanceLabel = "relevant"
	LabelPartiallyRelevant RelevanceLabel = "partially_relevant"
	LabelIrrelevant        RelevanceLabel = "irrelevant"
)

// Counts toward the "good enough" aggregate.
func (l RelevanceLabel) Useful() bool {
	return l == LabelRelevant || l == LabelPartiallyRelevant
}

// RelevanceGrade classifies one (query, chunk) pair.
type RelevanceGrade struct {
	ChunkID    string         `json:"chunk_id"`
	ChunkIndex int            `json:"chunk_index"`
	Label      RelevanceLabel `json:"label"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning,omitempty"`
}

// CorrectiveOutcome records what the corrective pass decided for one query.
// It is recomputed per request and never persisted.
type CorrectiveOutcome struct {
	UseRetrievedContent bool             `json:"use_retrieved_content"`
	WebSearchPerformed  bool             `json:"web_search_performed"`
	FallbackContent     string           `json:"fallback_content,omitempty"`
	CorrectionReason    string           `json:"correction_reason,omitempty"`
	OverallRelevance    float64          `json:"overall_relevance"`
	Grades              []RelevanceGrade `json:"grades,omitempty"`
}

// SearchOptions tunes one EnhancedSearch call.
type SearchOptions struct {
	DocumentIDs   []string `json:"document_ids,omitempty"`
	UseCorrective bool     `json:"use_corrective"`
	FallbackToWeb bool     `json:"fallback_to_web"`
	GradingModel  string   `json:"grading_model,omitempty"`
}

// EnhancedSearchResult is what the pipeline hands back: the verified
// structured results plus, when a corrective pass ran, its outcome. When the
// outcome says fallback content should be used, Results is empty and the
// caller reads Outcome.FallbackContent instead.
type EnhancedSearchResult struct {
	Results []SearchResult     `json:"results"`
	Outcome *CorrectiveOutcome `json:"outcome,omitempty"`
}

// ChatTurn is a prior exchange passed to GenerateResponse for context.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GeneratedResponse is the formatted answer for the chat layer.
type GeneratedResponse struct {
	Answer     string         `json:"answer"`
	Sources    []SearchResult `json:"sources"`
	Confidence float64        `json:"confidence"`
}

// CompletionOptions tune one reasoning-service call.
type CompletionOptions struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}
