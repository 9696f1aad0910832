// Package whisper transcribes audio with whisper.cpp, either through a
// running whisper-server (POST /inference) or, when built with the
// "whispercpp" tag, in-process through the cgo bindings.
//
// Usage:
//
//	c, err := whisper.New("http://localhost:8080", whisper.WithModel("small"))
//	tr, err := c.Transcribe(ctx, transcribe.Request{Audio: pcm, Language: "pt-BR"})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/voicemeter/internal/transcribe"
	"github.com/MrWong99/voicemeter/pkg/audio"
)

const (
	defaultTimeout = 2 * time.Minute

	// maxErrorBody bounds how much of an error response is quoted.
	maxErrorBody = 512
)

var _ transcribe.Transcriber = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the model identifier forwarded to the server. When empty
// the server uses whichever model it was started with.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// Client talks to a whisper.cpp HTTP server. It is safe for concurrent use.
type Client struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// New creates a Client for the server at serverURL
// (e.g. "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// inferenceResponse is the verbose_json answer of whisper-server. Only text
// is guaranteed.
type inferenceResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Transcribe uploads req.Audio as a 16 kHz mono WAV file.
func (c *Client) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Transcription, error) {
	if req.Audio.Frames() == 0 {
		return transcribe.Transcription{}, transcribe.ErrEmptyAudio
	}
	wav := audio.EncodeWAV(transcribe.Prepare(req.Audio, transcribe.WhisperRate))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return transcribe.Transcription{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return transcribe.Transcription{}, fmt.Errorf("whisper: write wav data: %w", err)
	}

	lang := transcribe.BaseLanguage(req.Language)
	if lang == "" {
		lang = "auto"
	}
	fields := [][2]string{
		{"language", lang},
		{"response_format", "verbose_json"},
		{"temperature", "0.0"},
	}
	if c.model != "" {
		fields = append(fields, [2]string{"model", c.model})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return transcribe.Transcription{}, fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return transcribe.Transcription{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/inference", &body)
	if err != nil {
		return transcribe.Transcription{}, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return transcribe.Transcription{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return transcribe.Transcription{}, fmt.Errorf("whisper: server returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return transcribe.Transcription{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	tr := transcribe.Transcription{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Duration: time.Duration(out.Duration * float64(time.Second)),
	}
	if tr.Duration == 0 {
		tr.Duration = req.Audio.Duration()
	}
	return tr, nil
}
