// Command ocrextract runs the text extraction pipeline over image files.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wudi/ocrkit/cache"
	"github.com/wudi/ocrkit/extract"
	"github.com/wudi/ocrkit/normalize"
	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/ocr"
	"github.com/wudi/ocrkit/ocr/tesseract"
	"github.com/wudi/ocrkit/ocr/vision"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "ocrextract [image-file...]",
	Short: "Extract text from document images",
	Long: `ocrextract runs scanned or photographed documents through a quality
gate, a normalization pipeline, and a dual-engine recognition step, then
prints the cleaned text.

The primary engine is Google Cloud Vision (requires credentials via
GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS); Tesseract serves
as the local fallback for low-confidence lines and can also run as the
sole engine with --engine tesseract for fully offline use.`,
	Example: `  # Extract text from a receipt photo
  ocrextract receipt.jpg

  # Offline, Tesseract only, with deskew enabled
  ocrextract --engine tesseract --deskew scan.png

  # Share results across runs through Redis
  ocrextract --redis localhost:6379 invoice.png`,
	Version: version,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runExtract,
}

func init() {
	rootCmd.Flags().String("engine", "vision", "Primary engine: vision or tesseract")
	rootCmd.Flags().StringSlice("lang", []string{"eng"}, "Tesseract languages")
	rootCmd.Flags().Bool("deskew", false, "Estimate and correct page skew")
	rootCmd.Flags().Bool("superres", false, "Upscale the image before recognition")
	rootCmd.Flags().String("debug-dir", "", "Write per-stage snapshots to this directory")
	rootCmd.Flags().String("redis", "", "Redis address for the result cache (host:port)")
	rootCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.Flags().Int("timeout", 120, "Per-image timeout in seconds")
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().String("log-format", "console", "Log format: console or json")
}

// Execute runs the root command and exits nonzero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ocrextract: %v\n", err)
		os.Exit(1)
	}
}

type fileResult struct {
	File string `json:"file"`
	extract.Result
}

func runExtract(cmd *cobra.Command, args []string) error {
	// Missing .env is fine; explicit environment still applies.
	_ = godotenv.Load()

	engine, _ := cmd.Flags().GetString("engine")
	langs, _ := cmd.Flags().GetStringSlice("lang")
	deskew, _ := cmd.Flags().GetBool("deskew")
	superres, _ := cmd.Flags().GetBool("superres")
	debugDir, _ := cmd.Flags().GetString("debug-dir")
	redisAddr, _ := cmd.Flags().GetString("redis")
	jsonOut, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	zl, err := newLogger(levelName, format)
	if err != nil {
		return err
	}
	log := observability.NewZerologLogger(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	layout, fallback, cleanup, err := buildEngines(ctx, engine, langs)
	if err != nil {
		return err
	}
	defer cleanup()

	var store cache.Store = cache.NewMemoryStore()
	if redisAddr != "" {
		store = cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: redisAddr}))
	}

	cfg := extract.Config{
		Layout:   layout,
		Fallback: fallback,
		Normalize: normalize.Options{
			SuperResolution: superres,
			Deskew:          deskew,
			Debug:           debugDir != "",
		},
		Store:  store,
		Logger: log,
	}
	if debugDir != "" {
		cfg.DebugSink = normalize.DirSink{Dir: debugDir}
	}
	ex, err := extract.New(cfg)
	if err != nil {
		return err
	}

	failed := false
	for _, path := range args {
		res, err := extractFile(ctx, ex, path, time.Duration(timeoutSecs)*time.Second)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if !res.Success {
			failed = true
		}
		if jsonOut {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(fileResult{File: path, Result: res}); err != nil {
				return err
			}
			continue
		}
		if res.Success {
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, res.Message)
		}
	}
	if failed {
		// Results were already reported; signal the failure without
		// cobra re-printing it.
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return fmt.Errorf("one or more images failed")
	}
	return nil
}

func extractFile(ctx context.Context, ex *extract.Extractor, path string, timeout time.Duration) (extract.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return extract.Result{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return ex.Extract(ctx, raw)
}

// buildEngines wires the primary and fallback engines for the selected
// mode. Tesseract-only mode leaves the fallback nil.
func buildEngines(ctx context.Context, engine string, langs []string) (ocr.LayoutEngine, ocr.LineEngine, func(), error) {
	switch engine {
	case "vision":
		v, err := vision.New(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("vision engine: %w", err)
		}
		fallback := tesseract.New(tesseract.WithLanguages(langs...))
		return v, fallback, func() { _ = v.Close() }, nil
	case "tesseract":
		t := tesseract.New(tesseract.WithLanguages(langs...))
		return t, nil, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown engine %q (want vision or tesseract)", engine)
	}
}

func newLogger(levelName, format string) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q", levelName)
	}
	var zl zerolog.Logger
	switch format {
	case "console":
		zl = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	case "json":
		zl = zerolog.New(os.Stderr)
	default:
		return zerolog.Logger{}, fmt.Errorf("invalid log format %q (want console or json)", format)
	}
	return zl.Level(level).With().Timestamp().Logger(), nil
}
