// Package reconcile merges primary recognition output with a fallback
// engine's second opinion. Lines the primary engine is confident about are
// accepted as-is; contested lines are re-recognized from their crop and the
// candidate texts are arbitrated by string similarity.
package reconcile

import (
	"context"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/ocr"
)

// Source records which engine produced the final text of a line.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Decision is the reconciled outcome for one line. Every input line yields
// exactly one decision; lines are never dropped at this stage.
type Decision struct {
	Text   string
	Source Source
}

// Default thresholds. These are heuristics, not validated optima; they are
// fields on Reconciler rather than constants so deployments can tune them.
const (
	DefaultConfidenceThreshold = 0.75
	DefaultSimilarityThreshold = 0.85
	DefaultLengthDelta         = 3
)

// Reconciler arbitrates between primary and fallback candidate texts.
type Reconciler struct {
	// Fallback is consulted for lines below ConfidenceThreshold. Nil
	// means every line keeps its primary text.
	Fallback ocr.LineEngine

	// ConfidenceThreshold is the primary confidence at or above which a
	// line is accepted without a fallback call. Bounding fallback
	// invocations to genuinely uncertain lines is both a cost and an
	// accuracy policy: the fallback engine is not uniformly better, just
	// a useful second opinion under uncertainty.
	ConfidenceThreshold float64

	// SimilarityThreshold is the edit-distance ratio at or above which
	// the fallback candidate replaces the primary text.
	SimilarityThreshold float64

	// LengthDelta is the number of characters by which a fallback
	// candidate must exceed the primary text to win on length alone; a
	// much longer fallback result suggests the primary engine truncated.
	LengthDelta int

	Log observability.Logger
}

// New builds a Reconciler with the default thresholds.
func New(fallback ocr.LineEngine) *Reconciler {
	return &Reconciler{
		Fallback:            fallback,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		SimilarityThreshold: DefaultSimilarityThreshold,
		LengthDelta:         DefaultLengthDelta,
		Log:                 observability.NopLogger{},
	}
}

// Reconcile resolves every line to a final text, preserving input order.
// A fallback engine failure for a line degrades to keeping the primary
// text; it never fails the whole batch.
func (r *Reconciler) Reconcile(ctx context.Context, lines []ocr.Line) ([]Decision, error) {
	decisions := make([]Decision, 0, len(lines))
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decisions = append(decisions, r.reconcileLine(ctx, line))
	}
	return decisions, nil
}

func (r *Reconciler) reconcileLine(ctx context.Context, line ocr.Line) Decision {
	if line.Confidence >= r.ConfidenceThreshold || r.Fallback == nil {
		return Decision{Text: line.Text, Source: SourcePrimary}
	}

	candidate, err := r.Fallback.RecognizeLine(ctx, line.Crop)
	if err != nil {
		r.log().Warn("fallback recognition failed, keeping primary text",
			observability.String("text", line.Text),
			observability.Error("err", err))
		return Decision{Text: line.Text, Source: SourcePrimary}
	}

	similarity := 0.0
	if candidate.Text != "" {
		similarity = Similarity(candidate.Text, line.Text)
	}
	longer := utf8.RuneCountInString(candidate.Text) > utf8.RuneCountInString(line.Text)+r.LengthDelta
	if candidate.Text != "" && (similarity >= r.SimilarityThreshold || longer) {
		r.log().Info("fallback text accepted",
			observability.String("primary", line.Text),
			observability.String("fallback", candidate.Text),
			observability.Float64("similarity", similarity))
		return Decision{Text: candidate.Text, Source: SourceFallback}
	}

	r.log().Info("kept primary text",
		observability.String("text", line.Text),
		observability.Float64("confidence", line.Confidence))
	return Decision{Text: line.Text, Source: SourcePrimary}
}

func (r *Reconciler) log() observability.Logger {
	if r.Log == nil {
		return observability.NopLogger{}
	}
	return r.Log
}

// Similarity is a normalized edit-distance ratio in [0, 1]; 1.0 means the
// strings are identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// Texts flattens decisions into their final strings, in order.
func Texts(decisions []Decision) []string {
	out := make([]string, len(decisions))
	for i, d := range decisions {
		out[i] = d.Text
	}
	return out
}
