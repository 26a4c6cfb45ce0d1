package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

// CorrectiveConfig tunes the relevance-grading pass. The 0.4 relevance
// threshold and 0.8 high-quality cutoff come straight from operational
// tuning; they are injected so tests can vary them.
type CorrectiveConfig struct {
	RelevanceThreshold   float64
	HighConfidenceCutoff float64
	MaxGradedChars       int
	GradeConcurrency     int
	GradeTimeout         time.Duration
	GradeTemperature     float64
	GradeMaxTokens       int
}

func DefaultCorrectiveConfig() CorrectiveConfig {
	return CorrectiveConfig{
		RelevanceThreshold:   0.4,
		HighConfidenceCutoff: 0.8,
		MaxGradedChars:       800,
		GradeConcurrency:     5,
		GradeTimeout:         20 * time.Second,
		GradeTemperature:     0.1,
		GradeMaxTokens:       200,
	}
}

const gradingSystemPrompt = `You grade whether a retrieved document passage is relevant to a user query.
Answer with exactly one of: relevant, partially relevant, irrelevant.
Optionally add a line "confidence: <0..1>" and a short reason.
Rule: if the user asked to analyze, review, rate or improve their content (for example "rate my resume"), a passage of that content counts as relevant even when it does not literally answer a question.`

var confidenceLine = regexp.MustCompile(`(?i)confidence[^0-9]*([01](?:\.\d+)?)`)

const (
	reasonAllIrrelevant   = "all retrieved chunks graded irrelevant"
	reasonVeryLow         = "very low overall relevance"
	reasonNoStrongMatches = "no chunks graded fully relevant"
	reasonInsufficient    = "insufficient overall relevance"
	reasonThresholdNotMet = "relevance threshold not met"
	reasonEvaluationError = "error in evaluation"
)

// evaluateCorrective grades the retrieved set and decides whether to trust
// it or consult the fallback source. It never fails: any unexpected error
// short-circuits to trusting the retrieved content.
func (uc *SearchUseCase) evaluateCorrective(ctx context.Context, query string, results []domain.SearchResult, opts domain.SearchOptions) (outcome *domain.CorrectiveOutcome) {
	defer func() {
		if r := recover(); r != nil {
			uc.log.Error("corrective_evaluation_panic", "error", fmt.Sprint(r))
			outcome = &domain.CorrectiveOutcome{
				UseRetrievedContent: true,
				CorrectionReason:    reasonEvaluationError,
			}
		}
	}()

	if len(results) == 0 {
		content, fetched := uc.fallbackContent(ctx, query, opts.FallbackToWeb)
		return &domain.CorrectiveOutcome{
			UseRetrievedContent: false,
			WebSearchPerformed:  fetched,
			FallbackContent:     content,
			CorrectionReason:    "no chunks retrieved",
		}
	}

	grades := uc.gradeAll(ctx, query, results, opts.GradingModel)

	useful := 0
	relevant := 0
	irrelevant := 0
	hasHighQuality := false
	for _, g := range grades {
		if g.Label.Useful() {
			useful++
		}
		switch g.Label {
		case domain.LabelRelevant:
			relevant++
			if g.Confidence > uc.correctiveCfg.HighConfidenceCutoff {
				hasHighQuality = true
			}
		case domain.LabelIrrelevant:
			irrelevant++
		}
	}
	overall := float64(useful) / float64(len(grades))

	if overall >= uc.correctiveCfg.RelevanceThreshold && hasHighQuality {
		return &domain.CorrectiveOutcome{
			UseRetrievedContent: true,
			OverallRelevance:    overall,
			Grades:              grades,
		}
	}

	reason := classifyCorrectionReason(grades, overall, relevant, irrelevant)
	uc.log.Info("corrective_rejected_retrieval",
		"overall_relevance", overall,
		"reason", reason,
		"graded", len(grades),
	)

	if opts.FallbackToWeb {
		content, fetched := uc.fallbackContent(ctx, query, true)
		return &domain.CorrectiveOutcome{
			UseRetrievedContent: false,
			WebSearchPerformed:  fetched,
			FallbackContent:     content,
			CorrectionReason:    reason,
			OverallRelevance:    overall,
			Grades:              grades,
		}
	}

	// Fallback disabled: keep the retrieved content but flag why it is
	// suspect.
	return &domain.CorrectiveOutcome{
		UseRetrievedContent: true,
		CorrectionReason:    reason,
		OverallRelevance:    overall,
		Grades:              grades,
	}
}

// gradeAll grades every chunk with bounded concurrency, zipping grades back
// to the original chunk order. A failed call yields the default
// partially_relevant grade for that chunk only.
func (uc *SearchUseCase) gradeAll(ctx context.Context, query string, results []domain.SearchResult, model string) []domain.RelevanceGrade {
	grades := make([]domain.RelevanceGrade, len(results))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.correctiveCfg.GradeConcurrency)

	for i := range results {
		group.Go(func() error {
			grades[i] = uc.gradeChunk(groupCtx, query, results[i].Chunk, model)
			return nil
		})
	}
	_ = group.Wait()
	return grades
}

func (uc *SearchUseCase) gradeChunk(ctx context.Context, query string, chunk domain.Chunk, model string) domain.RelevanceGrade {
	grade := domain.RelevanceGrade{
		ChunkID:    chunk.ID,
		ChunkIndex: chunk.Metadata.ChunkIndex,
	}

	content := chunk.Content
	if len(content) > uc.correctiveCfg.MaxGradedChars {
		content = content[:uc.correctiveCfg.MaxGradedChars]
	}
	prompt := fmt.Sprintf("Query: %s\n\nPassage:\n%s\n\nGrade the passage.", query, content)

	callCtx, cancel := context.WithTimeout(ctx, uc.correctiveCfg.GradeTimeout)
	defer cancel()

	reply, err := uc.reasoner.Complete(callCtx, gradingSystemPrompt, prompt, domain.CompletionOptions{
		Model:       model,
		Temperature: uc.correctiveCfg.GradeTemperature,
		MaxTokens:   uc.correctiveCfg.GradeMaxTokens,
	})
	if err != nil {
		uc.log.Warn("grading_call_failed", "chunk_id", chunk.ID, "error", err)
		grade.Label = domain.LabelPartiallyRelevant
		grade.Confidence = 0.5
		grade.Reasoning = "grading call failed"
		return grade
	}

	grade.Label, grade.Confidence = parseGradeReply(reply)
	grade.Reasoning = firstLine(reply)
	return grade
}

// parseGradeReply classifies the textual reply by keyword precedence:
// irrelevant beats partially relevant beats bare relevant. An ambiguous
// reply defaults to partially_relevant with low confidence.
func parseGradeReply(reply string) (domain.RelevanceLabel, float64) {
	lowered := strings.ToLower(reply)

	confidence := 0.0
	if m := confidenceLine.FindStringSubmatch(lowered); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 1 {
			confidence = v
		}
	}

	var label domain.RelevanceLabel
	switch {
	case strings.Contains(lowered, "irrelevant"):
		label = domain.LabelIrrelevant
	case strings.Contains(lowered, "partially relevant"), strings.Contains(lowered, "partially_relevant"):
		label = domain.LabelPartiallyRelevant
	case strings.Contains(lowered, "relevant"):
		label = domain.LabelRelevant
	default:
		return domain.LabelPartiallyRelevant, 0.4
	}

	if confidence == 0 {
		confidence = 0.85
	}
	return label, confidence
}

func classifyCorrectionReason(grades []domain.RelevanceGrade, overall float64, relevant, irrelevant int) string {
	switch {
	case irrelevant == len(grades):
		return reasonAllIrrelevant
	case overall < 0.3:
		return reasonVeryLow
	case relevant == 0:
		return reasonNoStrongMatches
	case overall < 0.6:
		return reasonInsufficient
	default:
		return reasonThresholdNotMet
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
