// Package analysis composes the text, alignment, signal, metric and feedback
// stages into one pass over an utterance.
//
// The [Orchestrator] receives every collaborator at construction and keeps
// no per-call state, so a single instance may serve concurrent calls. The
// first failing stage aborts the analysis; no partial [Result] is returned.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicemeter/internal/acoustic"
	"github.com/MrWong99/voicemeter/internal/align"
	"github.com/MrWong99/voicemeter/internal/feedback"
	"github.com/MrWong99/voicemeter/internal/observe"
	"github.com/MrWong99/voicemeter/internal/speechmetrics"
	"github.com/MrWong99/voicemeter/internal/textnorm"
	"github.com/MrWong99/voicemeter/pkg/lang"
	"github.com/MrWong99/voicemeter/pkg/types"
)

// Stage names used in spans, metrics and logs.
const (
	StageValidate  = "validate"
	StageNormalize = "normalize"
	StageAlign     = "align"
	StageAcoustic  = "acoustic"
	StageMetrics   = "metrics"
	StageFeedback  = "feedback"
)

// defaultBatchLimit bounds the number of utterances analysed concurrently by
// [Orchestrator.AnalyzeBatch].
const defaultBatchLimit = 4

// LanguageResolver picks the language of an utterance.
type LanguageResolver interface {
	Resolve(explicit types.LanguageCode, detected, text string) types.LanguageCode
}

// Normalizer turns text into tokens. Normalize rejects empty text; Tokenize
// accepts it.
type Normalizer interface {
	Normalize(text string, code types.LanguageCode) ([]types.Token, error)
	Tokenize(text string, code types.LanguageCode) []types.Token
}

// Aligner diffs expected against transcribed tokens.
type Aligner interface {
	Align(expected, actual []types.Token) align.Result
}

// SignalAnalyzer derives the volume envelope and pauses from a waveform.
type SignalAnalyzer interface {
	Analyze(waveform []float64, sampleRate int, durationSeconds float64) (acoustic.Result, error)
}

// MetricsCalculator derives rate, pause, vocabulary and fluency metrics.
type MetricsCalculator interface {
	Compute(tokens []types.Token, durationSeconds float64, pauses []types.PauseInterval, code types.LanguageCode, opts ...speechmetrics.ComputeOption) (types.Metrics, error)
}

// FeedbackGenerator turns metrics into ranked recommendations.
type FeedbackGenerator interface {
	Generate(b feedback.Bundle) ([]types.FeedbackItem, error)
}

var (
	_ LanguageResolver  = (*lang.Table)(nil)
	_ Normalizer        = (*textnorm.Normalizer)(nil)
	_ Aligner           = (*align.Aligner)(nil)
	_ SignalAnalyzer    = (*acoustic.Analyzer)(nil)
	_ MetricsCalculator = (*speechmetrics.Calculator)(nil)
	_ FeedbackGenerator = (*feedback.Engine)(nil)
)

// Components are the collaborators of an [Orchestrator]. All are required.
type Components struct {
	Languages  LanguageResolver
	Normalizer Normalizer
	Aligner    Aligner
	Signal     SignalAnalyzer
	Calculator MetricsCalculator
	Feedback   FeedbackGenerator
}

func (c Components) validate() error {
	var errs []error
	if c.Languages == nil {
		errs = append(errs, errors.New("languages is nil"))
	}
	if c.Normalizer == nil {
		errs = append(errs, errors.New("normalizer is nil"))
	}
	if c.Aligner == nil {
		errs = append(errs, errors.New("aligner is nil"))
	}
	if c.Signal == nil {
		errs = append(errs, errors.New("signal analyzer is nil"))
	}
	if c.Calculator == nil {
		errs = append(errs, errors.New("metrics calculator is nil"))
	}
	if c.Feedback == nil {
		errs = append(errs, errors.New("feedback generator is nil"))
	}
	return errors.Join(errs...)
}

// Result is the aggregate outcome of one analysis. The orchestrator keeps no
// reference to it after returning.
type Result struct {
	Language        types.LanguageCode
	ExpectedText    string
	TranscribedText string

	ExpectedTokens    []types.Token
	TranscribedTokens []types.Token

	Alignment align.Result

	Envelope []types.VolumeSample
	Volume   types.VolumeStats
	Pauses   []types.PauseInterval

	Metrics  types.Metrics
	Feedback []types.FeedbackItem
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithBatchLimit bounds concurrency in [Orchestrator.AnalyzeBatch]. Values
// below 1 are ignored.
func WithBatchLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchLimit = n
		}
	}
}

// Orchestrator runs the analysis pipeline. It is safe for concurrent use.
type Orchestrator struct {
	c          Components
	metrics    *observe.Metrics
	batchLimit int
}

// New builds an [Orchestrator] from explicit collaborators.
func New(c Components, opts ...Option) (*Orchestrator, error) {
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	o := &Orchestrator{c: c, batchLimit: defaultBatchLimit}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o, nil
}

// NewDefault wires the standard collaborators over table.
func NewDefault(table *lang.Table, signal []acoustic.Option, fb []feedback.Option, opts ...Option) (*Orchestrator, error) {
	an, err := acoustic.New(signal...)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	eng, err := feedback.New(table, fb...)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	return New(Components{
		Languages:  table,
		Normalizer: textnorm.New(),
		Aligner:    align.New(),
		Signal:     an,
		Calculator: speechmetrics.New(table),
		Feedback:   eng,
	}, opts...)
}

// Analyze runs every stage over u. Errors are returned as produced by the
// failing stage, so callers can match them with errors.As against the types
// in [types].
func (o *Orchestrator) Analyze(ctx context.Context, u types.Utterance) (res Result, err error) {
	ctx, span := observe.StartSpan(ctx, "analysis.Analyze")
	defer span.End()

	start := time.Now()
	o.metrics.ActiveAnalyses.Add(ctx, 1)
	defer o.metrics.ActiveAnalyses.Add(ctx, -1)

	log := observe.Logger(ctx)
	stage := StageValidate
	code := types.LanguageCode("")
	defer func() {
		elapsed := time.Since(start).Seconds()
		if err != nil {
			errCode := errorCode(err)
			observe.Fail(span, err, observe.AttrFailedStage.String(stage), observe.AttrErrorCode.String(errCode))
			o.metrics.RecordAnalysisError(ctx, errCode, stage)
			o.metrics.RecordAnalysis(ctx, string(code), "error", elapsed)
			log.Warn("analysis failed", "stage", stage, "language", code, "err", err)
			return
		}
		o.metrics.RecordAnalysis(ctx, string(code), "ok", elapsed)
	}()

	stageDone := func(name string, t time.Time, ok bool) {
		elapsed := time.Since(t)
		o.metrics.RecordStage(ctx, name, elapsed.Seconds())
		log.Debug("analysis stage done", "stage", name, "elapsed", elapsed, "ok", ok)
	}
	timed := func(name string, fn func() error) error {
		stage = name
		t := time.Now()
		e := fn()
		stageDone(name, t, e == nil)
		return e
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if d := u.DurationSeconds; d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return Result{}, &types.AnalysisError{Stage: "duration", Reason: fmt.Sprintf("duration must be positive and finite, got %v", d)}
	}

	code = o.c.Languages.Resolve(u.LanguageCode, u.DetectedLanguage, u.TranscribedText)
	span.SetAttributes(observe.AttrLanguage.String(string(code)))

	var expected, actual []types.Token
	if err := timed(StageNormalize, func() error {
		var e error
		if expected, e = o.c.Normalizer.Normalize(u.ExpectedText, code); e != nil {
			return e
		}
		actual = o.c.Normalizer.Tokenize(u.TranscribedText, code)
		return nil
	}); err != nil {
		return Result{}, err
	}

	stage = StageAlign
	alignStart := time.Now()
	alignment := o.c.Aligner.Align(expected, actual)
	stageDone(StageAlign, alignStart, true)

	var signal acoustic.Result
	if err := timed(StageAcoustic, func() error {
		var e error
		signal, e = o.c.Signal.Analyze(u.Waveform, u.SampleRate, u.DurationSeconds)
		return e
	}); err != nil {
		return Result{}, err
	}

	var metrics types.Metrics
	if err := timed(StageMetrics, func() error {
		var e error
		metrics, e = o.c.Calculator.Compute(actual, signal.DurationSeconds, signal.Pauses, code,
			speechmetrics.WithScripted(speechmetrics.ScriptedIndexes(alignment.Entries)...))
		return e
	}); err != nil {
		return Result{}, err
	}

	var items []types.FeedbackItem
	if err := timed(StageFeedback, func() error {
		var e error
		items, e = o.c.Feedback.Generate(feedback.Bundle{
			Language:        code,
			Metrics:         metrics,
			ExpectedCount:   len(expected),
			SimilarityRatio: alignment.SimilarityRatio,
			MissingWords:    alignment.MissingWords,
			ExtraWords:      alignment.ExtraWords,
		})
		return e
	}); err != nil {
		return Result{}, err
	}

	for _, p := range metrics.Pauses.Pauses {
		o.metrics.RecordPause(ctx, string(p.Band))
	}
	for _, it := range items {
		o.metrics.RecordFeedback(ctx, it.Rule, string(it.Severity))
	}

	log.Info("analysis complete",
		slog.String("language", string(code)),
		slog.Int("expected_tokens", len(expected)),
		slog.Int("transcribed_tokens", len(actual)),
		slog.Float64("similarity", alignment.SimilarityRatio),
		slog.Float64("wpm", metrics.Rate.WordsPerMinute),
		slog.Int("pauses", metrics.Pauses.Count),
		slog.Float64("duration_s", signal.DurationSeconds),
	)

	return Result{
		Language:          code,
		ExpectedText:      u.ExpectedText,
		TranscribedText:   u.TranscribedText,
		ExpectedTokens:    expected,
		TranscribedTokens: actual,
		Alignment:         alignment,
		Envelope:          signal.Envelope,
		Volume:            signal.Volume,
		Pauses:            signal.Pauses,
		Metrics:           metrics,
		Feedback:          items,
	}, nil
}

// AnalyzeBatch analyses independent utterances concurrently, at most the
// configured batch limit at a time. Results keep the input order. The first
// failure cancels the remaining work and is returned wrapped with the index
// of the failing utterance.
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, utterances []types.Utterance) ([]Result, error) {
	ctx, span := observe.StartSpan(ctx, "analysis.AnalyzeBatch")
	defer span.End()
	span.SetAttributes(observe.AttrBatchSize.Int(len(utterances)))

	out := make([]Result, len(utterances))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.batchLimit)
	for i, u := range utterances {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := o.Analyze(gctx, u)
			if err != nil {
				return fmt.Errorf("analysis: utterance %d: %w", i, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observe.Fail(span, err)
		return nil, err
	}
	return out, nil
}

// errorCode maps err to its taxonomy code, or "INTERNAL" for anything else.
func errorCode(err error) string {
	var c types.Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELED"
	}
	return "INTERNAL"
}
