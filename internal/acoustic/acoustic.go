// Package acoustic derives a loudness envelope and the list of pauses from
// a decoded waveform.
//
// The waveform is cut into overlapping frames. Each frame's RMS energy is
// converted to dBFS and clamped to a floor so digital silence does not
// produce -Inf. A frame is silent when it is at the floor or quieter than
// the loudest frame minus a configurable offset. Runs of silent frames that
// last at least the minimum pause length become [types.PauseInterval]s;
// shorter runs are dropped.
package acoustic

import (
	"fmt"
	"math"
	"time"

	"github.com/MrWong99/voicemeter/pkg/types"
)

const (
	defaultFrame             = 30 * time.Millisecond
	defaultHop               = 15 * time.Millisecond
	defaultSilenceOffsetDB   = 35.0
	defaultFloorDB           = -100.0
	defaultMinPause          = 250 * time.Millisecond
	defaultDurationTolerance = 250 * time.Millisecond

	minSampleRate = 1000
	maxSampleRate = 384000
)

// Option configures an [Analyzer].
type Option func(*Analyzer)

// WithFrame sets the frame length and hop. Zero values keep the defaults
// (30 ms frames, 15 ms hop).
func WithFrame(frame, hop time.Duration) Option {
	return func(a *Analyzer) {
		if frame > 0 {
			a.frame = frame
		}
		if hop > 0 {
			a.hop = hop
		}
	}
}

// WithSilenceOffset sets how many dB below the loudest frame a frame must be
// to count as silent. Default: 35 dB.
func WithSilenceOffset(db float64) Option {
	return func(a *Analyzer) {
		a.silenceOffsetDB = db
	}
}

// WithFloor sets the lowest reported loudness in dBFS. Default: -100.
func WithFloor(db float64) Option {
	return func(a *Analyzer) {
		a.floorDB = db
	}
}

// WithMinPause sets the shortest silence reported as a pause. Default:
// 250 ms.
func WithMinPause(d time.Duration) Option {
	return func(a *Analyzer) {
		a.minPause = d
	}
}

// WithDurationTolerance sets how far the caller-supplied duration may differ
// from the duration implied by the samples. Default: 250 ms.
func WithDurationTolerance(d time.Duration) Option {
	return func(a *Analyzer) {
		a.durationTolerance = d
	}
}

// Analyzer computes envelopes and pauses. It is read-only after
// construction and safe for concurrent use.
type Analyzer struct {
	frame             time.Duration
	hop               time.Duration
	silenceOffsetDB   float64
	floorDB           float64
	minPause          time.Duration
	durationTolerance time.Duration
}

// New returns an [Analyzer] configured with opts.
func New(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		frame:             defaultFrame,
		hop:               defaultHop,
		silenceOffsetDB:   defaultSilenceOffsetDB,
		floorDB:           defaultFloorDB,
		minPause:          defaultMinPause,
		durationTolerance: defaultDurationTolerance,
	}
	for _, o := range opts {
		o(a)
	}
	if a.hop > a.frame {
		return nil, fmt.Errorf("acoustic: hop %s exceeds frame %s", a.hop, a.frame)
	}
	if a.silenceOffsetDB <= 0 {
		return nil, fmt.Errorf("acoustic: silence offset must be positive, got %g dB", a.silenceOffsetDB)
	}
	if a.floorDB >= 0 {
		return nil, fmt.Errorf("acoustic: floor must be negative, got %g dB", a.floorDB)
	}
	if a.minPause < 0 || a.durationTolerance < 0 {
		return nil, fmt.Errorf("acoustic: min pause and duration tolerance must not be negative")
	}
	return a, nil
}

// Result is the outcome of [Analyzer.Analyze].
type Result struct {
	// Envelope has one sample per frame, timed at the frame centre.
	Envelope []types.VolumeSample

	// Pauses are ordered, non-overlapping and end no later than
	// DurationSeconds.
	Pauses []types.PauseInterval

	// Volume summarises voiced frames.
	Volume types.VolumeStats

	PeakDB          float64
	ThresholdDB     float64
	DurationSeconds float64
}

// Analyze frames waveform (mono samples in [-1, 1]) and detects pauses.
// durationSeconds is the caller's idea of the recording length; a
// non-positive value means "derive it from the samples". It fails with
// [*types.AudioProcessingError] when the waveform is empty or non-finite,
// the sample rate is out of range, or the durations disagree beyond the
// tolerance.
func (a *Analyzer) Analyze(waveform []float64, sampleRate int, durationSeconds float64) (Result, error) {
	if len(waveform) == 0 {
		return Result{}, &types.AudioProcessingError{Reason: "empty waveform"}
	}
	if sampleRate < minSampleRate || sampleRate > maxSampleRate {
		return Result{}, &types.AudioProcessingError{
			Reason: fmt.Sprintf("unsupported sample rate %d Hz (want %d–%d)", sampleRate, minSampleRate, maxSampleRate),
		}
	}
	computed := float64(len(waveform)) / float64(sampleRate)
	duration := computed
	if durationSeconds > 0 {
		if diff := math.Abs(durationSeconds - computed); diff > a.durationTolerance.Seconds() {
			return Result{}, &types.AudioProcessingError{
				Reason: fmt.Sprintf("duration %.3fs does not match %d samples at %d Hz (%.3fs)",
					durationSeconds, len(waveform), sampleRate, computed),
			}
		}
		duration = durationSeconds
	}

	frameLen := max(1, int(math.Round(a.frame.Seconds()*float64(sampleRate))))
	hopLen := max(1, int(math.Round(a.hop.Seconds()*float64(sampleRate))))
	frameLen = min(frameLen, len(waveform))

	levels, err := a.frameLevels(waveform, frameLen, hopLen)
	if err != nil {
		return Result{}, err
	}

	peak := a.floorDB
	for _, db := range levels {
		peak = max(peak, db)
	}
	threshold := peak - a.silenceOffsetDB
	silent := func(db float64) bool { return db <= a.floorDB || db < threshold }

	sr := float64(sampleRate)
	res := Result{
		Envelope:        make([]types.VolumeSample, len(levels)),
		PeakDB:          peak,
		ThresholdDB:     threshold,
		DurationSeconds: duration,
	}
	for k, db := range levels {
		start := k * hopLen
		end := min(start+frameLen, len(waveform))
		res.Envelope[k] = types.VolumeSample{
			TimeSeconds: min(float64(start+end)/2/sr, duration),
			AmplitudeDB: db,
		}
	}

	res.Volume = a.volumeStats(levels, silent)
	res.Pauses = a.pauses(levels, silent, frameLen, hopLen, len(waveform), sr, duration)
	return res, nil
}

// frameLevels returns the dBFS level of every frame. The final frame may be
// shorter than frameLen.
func (a *Analyzer) frameLevels(waveform []float64, frameLen, hopLen int) ([]float64, error) {
	n := len(waveform)
	count := 1
	if n > frameLen {
		count += (n - frameLen + hopLen - 1) / hopLen
	}
	levels := make([]float64, count)
	for k := range levels {
		start := k * hopLen
		end := min(start+frameLen, n)
		var sum float64
		for _, s := range waveform[start:end] {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				return nil, &types.AudioProcessingError{Reason: fmt.Sprintf("non-finite sample near %d", start)}
			}
			sum += s * s
		}
		levels[k] = a.toDB(math.Sqrt(sum / float64(end-start)))
	}
	return levels, nil
}

func (a *Analyzer) toDB(rms float64) float64 {
	if rms <= 0 {
		return a.floorDB
	}
	return max(20*math.Log10(rms), a.floorDB)
}

func (a *Analyzer) volumeStats(levels []float64, silent func(float64) bool) types.VolumeStats {
	var (
		stats types.VolumeStats
		sum   float64
		n     int
	)
	for _, db := range levels {
		if silent(db) {
			continue
		}
		if n == 0 || db < stats.MinDB {
			stats.MinDB = db
		}
		if n == 0 || db > stats.MaxDB {
			stats.MaxDB = db
		}
		sum += db
		n++
	}
	if n == 0 {
		return types.VolumeStats{MinDB: a.floorDB, MaxDB: a.floorDB, MeanDB: a.floorDB}
	}
	stats.MeanDB = sum / float64(n)
	return stats
}

// pauses merges runs of silent frames into intervals. A run of frames i..j
// spans from the start of frame i to the end of frame j, clamped to the
// utterance duration.
func (a *Analyzer) pauses(levels []float64, silent func(float64) bool, frameLen, hopLen, n int, sr, duration float64) []types.PauseInterval {
	var (
		out      []types.PauseInterval
		runStart = -1
		prevEnd  float64
	)
	emit := func(first, last int) {
		start := float64(first*hopLen) / sr
		end := min(float64(min(last*hopLen+frameLen, n))/sr, duration)
		start = max(start, prevEnd)
		if end-start < a.minPause.Seconds() || end <= start {
			return
		}
		out = append(out, types.PauseInterval{StartSeconds: start, EndSeconds: end, DurationSeconds: end - start})
		prevEnd = end
	}
	for k, db := range levels {
		switch {
		case silent(db) && runStart < 0:
			runStart = k
		case !silent(db) && runStart >= 0:
			emit(runStart, k-1)
			runStart = -1
		}
	}
	if runStart >= 0 {
		emit(runStart, len(levels)-1)
	}
	return out
}

// Downsample reduces envelope to at most points samples by averaging
// consecutive buckets. It returns the input unchanged when it is already
// small enough or points is not positive.
func Downsample(envelope []types.VolumeSample, points int) []types.VolumeSample {
	if points <= 0 || len(envelope) <= points {
		return envelope
	}
	out := make([]types.VolumeSample, points)
	for b := range out {
		lo := b * len(envelope) / points
		hi := (b + 1) * len(envelope) / points
		var t, db float64
		for _, s := range envelope[lo:hi] {
			t += s.TimeSeconds
			db += s.AmplitudeDB
		}
		k := float64(hi - lo)
		out[b] = types.VolumeSample{TimeSeconds: t / k, AmplitudeDB: db / k}
	}
	return out
}
