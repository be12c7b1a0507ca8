package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pario-ai/inserter/pkg/settings"
)

var (
	// ErrEmptyPrompt is returned when a prompt is blank after trimming.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrNoEditor is reported by a Sink when there is no active editor.
	ErrNoEditor = errors.New("no active editor")
)

// Sink places resolved text into the active document.
type Sink interface {
	Insert(ctx context.Context, text string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, text string) error

// Insert implements Sink.
func (f SinkFunc) Insert(ctx context.Context, text string) error { return f(ctx, text) }

// Session holds the credential for the host's lifetime and routes prompts
// through the Orchestrator.
type Session struct {
	orch     *Orchestrator
	settings *settings.Store

	mu         sync.RWMutex
	credential string
}

// NewSession loads the stored credential once and returns a ready Session.
func NewSession(orch *Orchestrator, st *settings.Store) (*Session, error) {
	cred, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	return &Session{orch: orch, settings: st, credential: cred}, nil
}

// Credential returns the in-memory credential.
func (s *Session) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// SaveCredential persists cred and then replaces the in-memory copy.
func (s *Session) SaveCredential(cred string) error {
	if err := s.settings.Save(cred); err != nil {
		return err
	}
	s.mu.Lock()
	s.credential = cred
	s.mu.Unlock()
	return nil
}

// Handle trims prompt and resolves it with the held credential.
func (s *Session) Handle(ctx context.Context, prompt string) (Outcome, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Outcome{}, ErrEmptyPrompt
	}
	return s.orch.HandlePrompt(ctx, prompt, s.Credential()), nil
}

// Submit resolves prompt and, when resolved, hands the text to sink.
func (s *Session) Submit(ctx context.Context, prompt string, sink Sink) (Outcome, error) {
	out, err := s.Handle(ctx, prompt)
	if err != nil || out.Kind != Resolved {
		return out, err
	}
	if err := sink.Insert(ctx, out.Text); err != nil {
		return out, fmt.Errorf("insert text: %w", err)
	}
	return out, nil
}

// Orchestrator returns the underlying orchestrator.
func (s *Session) Orchestrator() *Orchestrator { return s.orch }

// Close tears down the orchestrator, clearing the cache.
func (s *Session) Close() error {
	return s.orch.Close()
}
