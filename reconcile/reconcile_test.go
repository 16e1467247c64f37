package reconcile

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/wudi/ocrkit/ocr"
)

// spyEngine is a scripted fallback: it returns the configured candidates in
// order and counts invocations.
type spyEngine struct {
	candidates []ocr.Candidate
	err        error
	calls      int
}

func (s *spyEngine) Name() string { return "spy" }

func (s *spyEngine) RecognizeLine(_ context.Context, _ image.Image) (ocr.Candidate, error) {
	s.calls++
	if s.err != nil {
		return ocr.Candidate{}, s.err
	}
	if len(s.candidates) == 0 {
		return ocr.Candidate{}, nil
	}
	c := s.candidates[0]
	s.candidates = s.candidates[1:]
	return c, nil
}

func line(text string, conf float64) ocr.Line {
	return ocr.Line{
		Text:       text,
		Confidence: conf,
		Bounds:     image.Rect(0, 0, 50, 10),
		Crop:       image.NewGray(image.Rect(0, 0, 50, 10)),
	}
}

func TestReconcileConfidentLinesSkipFallback(t *testing.T) {
	spy := &spyEngine{}
	r := New(spy)
	decisions, err := r.Reconcile(context.Background(), []ocr.Line{
		line("Total: $40", 0.99),
		line("Invoice 001", 0.75), // at the threshold, not below
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if spy.calls != 0 {
		t.Fatalf("fallback called %d times for confident lines", spy.calls)
	}
	for _, d := range decisions {
		if d.Source != SourcePrimary {
			t.Fatalf("decision %+v, want primary source", d)
		}
	}
}

func TestReconcileConsultsFallbackJustBelowThreshold(t *testing.T) {
	// The threshold comparison is >=: a confidence any amount below it
	// must trigger the fallback call.
	spy := &spyEngine{candidates: []ocr.Candidate{{Text: "below", Confidence: 0.9}}}
	r := New(spy)
	_, err := r.Reconcile(context.Background(), []ocr.Line{
		line("below", r.ConfidenceThreshold-1e-9),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if spy.calls != 1 {
		t.Fatalf("fallback called %d times for confidence just below threshold, want 1", spy.calls)
	}
}

func TestReconcileAcceptsSimilarFallback(t *testing.T) {
	spy := &spyEngine{candidates: []ocr.Candidate{{Text: "Total: $40", Confidence: 0.9}}}
	r := New(spy)
	decisions, err := r.Reconcile(context.Background(), []ocr.Line{line("Tota1: $40", 0.5)})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if spy.calls != 1 {
		t.Fatalf("fallback called %d times, want 1", spy.calls)
	}
	if decisions[0].Text != "Total: $40" || decisions[0].Source != SourceFallback {
		t.Fatalf("decision = %+v, want fallback text accepted", decisions[0])
	}
}

func TestReconcileRejectsDissimilarFallback(t *testing.T) {
	// Dissimilar and not meaningfully longer: the primary text wins.
	spy := &spyEngine{candidates: []ocr.Candidate{{Text: "#@!? ~~~", Confidence: 0.9}}}
	r := New(spy)
	decisions, err := r.Reconcile(context.Background(), []ocr.Line{line("Total: $40", 0.5)})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if decisions[0].Text != "Total: $40" || decisions[0].Source != SourcePrimary {
		t.Fatalf("decision = %+v, want primary kept", decisions[0])
	}
}

func TestReconcileAcceptsMuchLongerFallback(t *testing.T) {
	// Dissimilar but more than LengthDelta characters longer: the primary
	// engine likely truncated the line.
	spy := &spyEngine{candidates: []ocr.Candidate{{Text: "Grand Total: $40.00 USD", Confidence: 0.9}}}
	r := New(spy)
	decisions, err := r.Reconcile(context.Background(), []ocr.Line{line("Grand", 0.5)})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if decisions[0].Source != SourceFallback {
		t.Fatalf("decision = %+v, want fallback accepted on length", decisions[0])
	}
}

func TestReconcileIgnoresEmptyFallback(t *testing.T) {
	spy := &spyEngine{candidates: []ocr.Candidate{{Text: "", Confidence: 0.9}}}
	r := New(spy)
	decisions, err := r.Reconcile(context.Background(), []ocr.Line{line("Total: $40", 0.5)})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if decisions[0].Text != "Total: $40" || decisions[0].Source != SourcePrimary {
		t.Fatalf("decision = %+v, want primary kept over empty fallback", decisions[0])
	}
}

func TestReconcileKeepsPrimaryOnFallbackError(t *testing.T) {
	spy := &spyEngine{err: errors.New("engine exploded")}
	r := New(spy)
	decisions, err := r.Reconcile(context.Background(), []ocr.Line{
		line("first", 0.1),
		line("second", 0.2),
	})
	if err != nil {
		t.Fatalf("fallback failure must not fail the batch: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("got %d decisions, want 2", len(decisions))
	}
	for i, d := range decisions {
		if d.Source != SourcePrimary {
			t.Fatalf("decision %d = %+v, want primary", i, d)
		}
	}
}

func TestReconcileNilFallback(t *testing.T) {
	r := New(nil)
	decisions, err := r.Reconcile(context.Background(), []ocr.Line{line("anything", 0.01)})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if decisions[0].Text != "anything" || decisions[0].Source != SourcePrimary {
		t.Fatalf("decision = %+v", decisions[0])
	}
}

func TestReconcileHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(nil)
	if _, err := r.Reconcile(ctx, []ocr.Line{line("x", 0.9)}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"same", "same", 1},
		{"abcd", "abxd", 0.75},
		{"abc", "xyz", 0},
	}
	for _, tc := range cases {
		if got := Similarity(tc.a, tc.b); got != tc.want {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
	if got := Similarity("Tota1: $40", "Total: $40"); got < 0.85 {
		t.Errorf("Similarity(Tota1: $40, Total: $40) = %v, want >= 0.85", got)
	}
}

func TestTexts(t *testing.T) {
	got := Texts([]Decision{{Text: "a"}, {Text: "b"}})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("texts = %v", got)
	}
}
