package ocr

import (
	"image"
	"testing"
)

func quad(x0, y0, x1, y1 float64) Quad {
	return Quad{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}
}

func TestQuadBounds(t *testing.T) {
	// Rotated quadrilateral: the box spans the extreme vertices.
	q := Quad{
		{X: 10, Y: 5},
		{X: 30, Y: 12},
		{X: 25, Y: 40},
		{X: 4, Y: 33},
	}
	got := q.Bounds()
	want := image.Rect(4, 5, 30, 40)
	if got != want {
		t.Fatalf("bounds = %v, want %v", got, want)
	}
}

func TestQuadBoundsRoundsUp(t *testing.T) {
	got := quad(1.2, 1.2, 9.7, 4.6).Bounds()
	want := image.Rect(1, 1, 10, 5)
	if got != want {
		t.Fatalf("bounds = %v, want %v", got, want)
	}
}

func TestExtractLines(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	regions := []Region{
		{Quad: quad(0, 0, 50, 20), Text: "  first line  ", Confidence: 0.9},
		{Quad: quad(0, 30, 50, 50), Text: "second line", Confidence: 0.4},
	}
	lines := ExtractLines(img, regions)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Text != "first line" {
		t.Fatalf("text not trimmed: %q", lines[0].Text)
	}
	if lines[0].Confidence != 0.9 || lines[1].Confidence != 0.4 {
		t.Fatal("confidences not preserved")
	}
	if lines[1].Text != "second line" {
		t.Fatal("region order not preserved")
	}
	if lines[0].Bounds != image.Rect(0, 0, 50, 20) {
		t.Fatalf("bounds = %v", lines[0].Bounds)
	}
	if b := lines[0].Crop.Bounds(); b.Dx() != 50 || b.Dy() != 20 {
		t.Fatalf("crop size = %dx%d", b.Dx(), b.Dy())
	}
}

func TestExtractLinesDiscardsTinyRegions(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	regions := []Region{
		{Quad: quad(0, 0, 4, 4), Text: "dust", Confidence: 0.9},
		{Quad: quad(0, 0, 50, 3), Text: "sliver", Confidence: 0.9},
		{Quad: quad(0, 10, 60, 25), Text: "kept", Confidence: 0.9},
	}
	lines := ExtractLines(img, regions)
	if len(lines) != 1 || lines[0].Text != "kept" {
		t.Fatalf("lines = %+v, want only the full-size region", lines)
	}
}

func TestExtractLinesClipsToImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 60, 60))
	regions := []Region{
		// Extends past the right edge; clipped, still big enough.
		{Quad: quad(40, 10, 90, 30), Text: "edge", Confidence: 0.9},
		// Entirely outside.
		{Quad: quad(70, 70, 120, 90), Text: "gone", Confidence: 0.9},
	}
	lines := ExtractLines(img, regions)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0].Bounds != image.Rect(40, 10, 60, 30) {
		t.Fatalf("clipped bounds = %v", lines[0].Bounds)
	}
}

func TestExtractLinesEmpty(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	if lines := ExtractLines(img, nil); len(lines) != 0 {
		t.Fatalf("got %d lines for no regions", len(lines))
	}
}
