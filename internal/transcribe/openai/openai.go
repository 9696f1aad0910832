// Package openai transcribes audio with the OpenAI audio transcription API.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"github.com/MrWong99/voicemeter/internal/transcribe"
	"github.com/MrWong99/voicemeter/pkg/audio"
)

// DefaultModel is the default transcription model.
const DefaultModel = oai.AudioModelWhisper1

var _ transcribe.Transcriber = (*Client)(nil)

type config struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
}

// Option is a functional option for Client.
type Option func(*config)

// WithBaseURL overrides the API base URL, e.g. for an OpenAI-compatible
// self-hosted server.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the SDK retries a failed request.
// Default: 2.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// Client implements [transcribe.Transcriber].
type Client struct {
	client oai.Client
	model  string
}

// New constructs a Client. If model is empty, [DefaultModel] is used.
func New(apiKey, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai transcribe: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &config{maxRetries: 2}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Client{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Transcribe uploads req.Audio as a 16 kHz mono WAV file and asks for the
// verbose JSON format, which also reports language and duration.
func (c *Client) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Transcription, error) {
	if req.Audio.Frames() == 0 {
		return transcribe.Transcription{}, transcribe.ErrEmptyAudio
	}
	wav := audio.EncodeWAV(transcribe.Prepare(req.Audio, transcribe.WhisperRate))

	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model:          oai.AudioModel(c.model),
		ResponseFormat: oai.AudioResponseFormatVerboseJSON,
		Temperature:    oai.Float(0),
	}
	if lang := transcribe.BaseLanguage(req.Language); lang != "" {
		params.Language = oai.String(lang)
	}

	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return transcribe.Transcription{}, fmt.Errorf("openai transcribe: %w", err)
	}

	raw := resp.RawJSON()
	tr := transcribe.Transcription{
		Text:     strings.TrimSpace(resp.Text),
		Language: gjson.Get(raw, "language").String(),
		Duration: time.Duration(gjson.Get(raw, "duration").Float() * float64(time.Second)),
	}
	if tr.Duration == 0 {
		tr.Duration = req.Audio.Duration()
	}
	return tr, nil
}
