package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/voicemeter/internal/resilience"
	"github.com/MrWong99/voicemeter/internal/transcribe"
)

// ErrBackendNotRegistered is returned by [Registry.CreateTranscriber] when
// no factory has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: transcription backend not registered")

// TranscriberFactory builds a backend from its configuration block.
type TranscriberFactory func(BackendEntry) (transcribe.Transcriber, error)

// Registry maps backend names to their constructors. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	transcriber map[string]TranscriberFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{transcriber: make(map[string]TranscriberFactory)}
}

// RegisterTranscriber registers a backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTranscriber(name string, factory TranscriberFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriber[name] = factory
}

// CreateTranscriber instantiates the backend registered under entry.Name.
// Returns [ErrBackendNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateTranscriber(entry BackendEntry) (transcribe.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.transcriber[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, entry.Name)
	}
	return factory(entry)
}

// BuildTranscriber creates every backend of cfg and chains them into a
// failover group. It returns (nil, nil) when no primary backend is
// configured.
func (r *Registry) BuildTranscriber(cfg TranscriptionConfig) (*resilience.TranscriberGroup, error) {
	if cfg.Primary.Name == "" {
		return nil, nil
	}
	primary, err := r.CreateTranscriber(cfg.Primary)
	if err != nil {
		return nil, fmt.Errorf("config: transcription.primary: %w", err)
	}
	g := resilience.NewTranscriberGroup(cfg.Primary.Name, primary, cfg.CircuitBreaker.Resilience())
	for i, e := range cfg.Fallbacks {
		t, err := r.CreateTranscriber(e)
		if err != nil {
			return nil, fmt.Errorf("config: transcription.fallbacks[%d]: %w", i, err)
		}
		g.AddFallback(e.Name, t)
	}
	return g, nil
}
