package analysis

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voicemeter/internal/acoustic"
	"github.com/MrWong99/voicemeter/internal/align"
	"github.com/MrWong99/voicemeter/pkg/types"
)

// DefaultEnvelopePoints is the envelope size used when a record is built
// with a non-positive point count.
const DefaultEnvelopePoints = 200

// Record is the flat presentation form of a [Result], the shape returned by
// the HTTP API and printed by the CLI.
type Record struct {
	RequestID string    `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
	Language  string    `json:"language"`

	ExpectedText    string `json:"expected_text"`
	TranscribedText string `json:"transcribed_text"`

	SimilarityRatio float64                  `json:"similarity_ratio"`
	WordAccuracy    float64                  `json:"word_accuracy"`
	MissingWords    []string                 `json:"missing_words"`
	ExtraWords      []string                 `json:"extra_words"`
	Mispronounced   []align.Mispronunciation `json:"mispronounced,omitempty"`

	WordsPerMinute  float64               `json:"words_per_minute"`
	PauseCount      int                   `json:"pause_count"`
	DurationSeconds float64               `json:"duration_seconds"`
	Pauses          []types.PauseInterval `json:"pauses"`
	VolumeSamples   []types.VolumeSample  `json:"volume_samples"`
	Volume          types.VolumeStats     `json:"volume"`

	Feedback      []string             `json:"feedback"`
	FeedbackItems []types.FeedbackItem `json:"feedback_items"`

	Scores  types.Scores  `json:"scores"`
	Metrics types.Metrics `json:"metrics"`
}

// NewRecord flattens r. The envelope is reduced to at most points samples.
func NewRecord(id uuid.UUID, createdAt time.Time, r Result, points int) Record {
	if points <= 0 {
		points = DefaultEnvelopePoints
	}
	messages := make([]string, len(r.Feedback))
	for i, it := range r.Feedback {
		messages[i] = it.Message
	}
	return Record{
		RequestID:       id.String(),
		CreatedAt:       createdAt.UTC(),
		Language:        string(r.Language),
		ExpectedText:    r.ExpectedText,
		TranscribedText: r.TranscribedText,
		SimilarityRatio: r.Alignment.SimilarityRatio,
		WordAccuracy:    r.Alignment.WordAccuracy,
		MissingWords:    nonNil(r.Alignment.MissingWords),
		ExtraWords:      nonNil(r.Alignment.ExtraWords),
		Mispronounced:   r.Alignment.Mispronounced,
		WordsPerMinute:  r.Metrics.Rate.WordsPerMinute,
		PauseCount:      r.Metrics.Pauses.Count,
		DurationSeconds: r.Metrics.DurationSeconds,
		Pauses:          nonNil(r.Pauses),
		VolumeSamples:   nonNil(acoustic.Downsample(r.Envelope, points)),
		Volume:          r.Volume,
		Feedback:        messages,
		FeedbackItems:   r.Feedback,
		Scores:          r.Metrics.Scores,
		Metrics:         r.Metrics,
	}
}

// nonNil keeps empty lists as [] rather than null in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
