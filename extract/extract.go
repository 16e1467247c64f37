// Package extract wires the full pipeline together: quality gate, image
// normalization, primary recognition, confidence reconciliation against a
// fallback engine, text postprocessing, and the content-addressed result
// cache. Engines and stores are injected by the caller and constructed
// once at startup; the package holds no global state.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wudi/ocrkit/cache"
	"github.com/wudi/ocrkit/normalize"
	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/ocr"
	"github.com/wudi/ocrkit/quality"
	"github.com/wudi/ocrkit/raster"
	"github.com/wudi/ocrkit/reconcile"
	"github.com/wudi/ocrkit/textproc"
)

// ErrNotAnImage reports input bytes that do not carry a recognizable image
// signature.
var ErrNotAnImage = errors.New("extract: input is not a supported image")

// Result is the structured outcome returned to callers. Quality rejection,
// engine failure, and "no text found" are all reported here as normal
// negative results, never as raw errors.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Text    string `json:"text"`
}

// Messages used in results.
const (
	msgExtracted    = "Text extracted successfully"
	msgNoText       = "No text detected"
	msgNoValidText  = "No valid text found"
	msgOCRFailedFmt = "OCR failed: %v"
)

// Config assembles an Extractor. Layout is the only required field.
type Config struct {
	// Layout is the primary full-page recognition engine.
	Layout ocr.LayoutEngine
	// Fallback is consulted for low-confidence lines. Nil disables
	// reconciliation; primary text is always kept.
	Fallback ocr.LineEngine
	// Gate overrides the default quality gate.
	Gate *quality.Gate
	// Normalize selects the optional normalization stages.
	Normalize normalize.Options
	// Upscaler backs the super-resolution stage when enabled.
	Upscaler normalize.Upscaler
	// DebugSink receives stage snapshots when Normalize.Debug is set.
	DebugSink normalize.DebugSink
	// Store caches final text by content hash. Nil disables caching.
	Store cache.Store
	// Rules override the default postprocessing substitutions.
	Rules []textproc.Rule
	// Logger receives pipeline progress events.
	Logger observability.Logger
	// Tracer receives one span per extraction, tagged with stage timings.
	Tracer observability.Tracer
}

// Extractor is the pipeline entry point. Safe for concurrent use: per-image
// state stays on the stack and the cache store carries its own locking.
type Extractor struct {
	gate       *quality.Gate
	normalizer *normalize.Normalizer
	layout     ocr.LayoutEngine
	reconciler *reconcile.Reconciler
	post       textproc.Processor
	store      cache.Store
	log        observability.Logger
	tracer     observability.Tracer
}

// New validates the configuration and builds an Extractor.
func New(cfg Config) (*Extractor, error) {
	if cfg.Layout == nil {
		return nil, errors.New("extract: layout engine is required")
	}
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	gate := cfg.Gate
	if gate == nil {
		gate = quality.NewGate()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	mods := []normalize.Option{normalize.WithLogger(log)}
	if cfg.Upscaler != nil {
		mods = append(mods, normalize.WithUpscaler(cfg.Upscaler))
	} else if cfg.Normalize.SuperResolution {
		mods = append(mods, normalize.WithUpscaler(normalize.ResampleUpscaler{}))
	}
	if cfg.DebugSink != nil {
		mods = append(mods, normalize.WithDebugSink(cfg.DebugSink))
	}
	rec := reconcile.New(cfg.Fallback)
	rec.Log = log
	return &Extractor{
		gate:       gate,
		normalizer: normalize.New(cfg.Normalize, mods...),
		layout:     cfg.Layout,
		reconciler: rec,
		post:       textproc.Processor{Rules: cfg.Rules},
		store:      cfg.Store,
		log:        log,
		tracer:     tracer,
	}, nil
}

// Reconciler exposes the reconciler so callers can tune its thresholds
// before first use.
func (e *Extractor) Reconciler() *reconcile.Reconciler { return e.reconciler }

// Extract runs the pipeline over raw image bytes. The returned error is
// reserved for caller mistakes (unsupported input, cancellation); every
// recognition-level outcome is reported in the Result.
func (e *Extractor) Extract(ctx context.Context, raw []byte) (Result, error) {
	start := time.Now()
	ctx, span := e.tracer.StartSpan(ctx, "ocr.extract")
	defer func() {
		span.SetTag(observability.MetricExtractTime, time.Since(start).Milliseconds())
		span.Finish()
	}()

	if raster.Sniff(raw) == "" {
		span.SetError(ErrNotAnImage)
		return Result{}, ErrNotAnImage
	}

	key := cache.Key(raw)
	log := e.log.With(observability.String("key", key[:12]))
	if e.store != nil {
		if text, ok, err := e.store.Get(ctx, key); err != nil {
			log.Warn("cache get failed", observability.Error("err", err))
		} else if ok {
			log.Info("cache hit")
			span.SetTag(observability.MetricCacheHit, true)
			return Result{Success: true, Message: msgExtracted, Text: text}, nil
		}
	}

	img, err := raster.Decode(raw)
	if err != nil {
		span.SetError(err)
		return Result{}, err
	}

	gateStart := time.Now()
	verdict, err := e.gate.Assess(img)
	span.SetTag(observability.MetricGateTime, time.Since(gateStart).Milliseconds())
	if err != nil {
		span.SetError(err)
		return Result{}, err
	}
	if !verdict.Valid {
		log.Info("image rejected by quality gate",
			observability.String("reason", string(verdict.Reason)),
			observability.Float64("focus_measure", verdict.Metrics.FocusMeasure))
		return Result{Message: verdict.Message()}, nil
	}

	normStart := time.Now()
	normalized, err := e.normalizer.Apply(ctx, img)
	span.SetTag(observability.MetricNormalizeTime, time.Since(normStart).Milliseconds())
	if err != nil {
		span.SetError(err)
		return Result{}, err
	}

	layoutStart := time.Now()
	regions, err := e.layout.RecognizeLayout(ctx, normalized)
	span.SetTag(observability.MetricLayoutTime, time.Since(layoutStart).Milliseconds())
	if err != nil {
		if ctx.Err() != nil {
			span.SetError(ctx.Err())
			return Result{}, ctx.Err()
		}
		log.Warn("primary recognition failed", observability.Error("err", err))
		return Result{Message: fmt.Sprintf(msgOCRFailedFmt, err)}, nil
	}
	if len(regions) == 0 {
		log.Info("primary engine detected no text")
		return Result{Message: msgNoText}, nil
	}

	lines := ocr.ExtractLines(normalized, regions)
	if len(lines) == 0 {
		log.Info("all detected regions filtered out",
			observability.Int("regions", len(regions)))
		return Result{Message: msgNoValidText}, nil
	}
	log.Debug("recognized lines", observability.Int("count", len(lines)))
	span.SetTag(observability.MetricLineCount, len(lines))

	decisions, err := e.reconciler.Reconcile(ctx, lines)
	if err != nil {
		span.SetError(err)
		return Result{}, err
	}
	fromFallback := 0
	for _, d := range decisions {
		if d.Source == reconcile.SourceFallback {
			fromFallback++
		}
	}
	span.SetTag(observability.MetricFallbackLines, fromFallback)

	cleaned := e.post.Clean(reconcile.Texts(decisions))
	final := joinUnique(cleaned)

	if e.store != nil {
		if err := e.store.Put(ctx, key, final); err != nil {
			log.Warn("cache put failed", observability.Error("err", err))
		}
	}
	log.Info("extraction complete",
		observability.Int("lines", len(cleaned)),
		observability.Int("duration_ms", int(time.Since(start).Milliseconds())))
	return Result{Success: true, Message: msgExtracted, Text: final}, nil
}

// joinUnique drops repeated lines, keeping first occurrences in order, and
// joins the rest with newlines.
func joinUnique(lines []string) string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	if len(out) == 0 {
		return ""
	}
	result := out[0]
	for _, line := range out[1:] {
		result += "\n" + line
	}
	return result
}
