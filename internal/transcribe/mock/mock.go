// Package mock provides a test double for [transcribe.Transcriber].
//
// Example:
//
//	m := &mock.Transcriber{Result: transcribe.Transcription{Text: "hello"}}
//	tr, _ := m.Transcribe(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicemeter/internal/transcribe"
)

var _ transcribe.Transcriber = (*Transcriber)(nil)

// Call records a single invocation of [Transcriber.Transcribe].
type Call struct {
	Ctx context.Context
	Req transcribe.Request
}

// Transcriber is a mock implementation of [transcribe.Transcriber]. It is
// safe for concurrent use.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned when Err is nil.
	Result transcribe.Transcription

	// Err, if non-nil, is returned by every call.
	Err error

	// Calls records every call in order.
	Calls []Call
}

// Transcribe records the call and returns Result, Err.
func (m *Transcriber) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Transcription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Ctx: ctx, Req: req})
	if m.Err != nil {
		return transcribe.Transcription{}, m.Err
	}
	return m.Result, nil
}

// CallCount returns the number of recorded calls.
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears all recorded calls.
func (m *Transcriber) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}
