// Package orchestrator turns a prompt into exactly one outcome: a cached
// response, a fresh generation, or a classified failure.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/pario-ai/inserter/pkg/cache"
	"github.com/pario-ai/inserter/pkg/provider"
)

// Orchestrator composes the cache and the provider.
type Orchestrator struct {
	cache     *cache.Cache
	generator provider.Generator
	log       zerolog.Logger
	flight    *singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithCoalescing makes concurrent misses for the same prompt share a single
// upstream call. Off by default: without it every miss issues its own
// request and the last cache write wins.
//
// The shared call is detached from the cancellation of whichever caller
// started it. A caller whose own context ends stops waiting and gets a
// failed outcome; the others still receive the result.
func WithCoalescing() Option {
	return func(o *Orchestrator) { o.flight = &singleflight.Group{} }
}

// New creates an Orchestrator.
func New(c *cache.Cache, g provider.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{cache: c, generator: g, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandlePrompt resolves prompt. An empty credential short-circuits before any
// cache or network access. Otherwise the cache is read, then on a miss the
// generator is called and a successful result written back before the
// outcome is returned.
func (o *Orchestrator) HandlePrompt(ctx context.Context, prompt, credential string) Outcome {
	if credential == "" {
		return Outcome{Kind: CredentialMissing}
	}

	if text, ok := o.cache.Get(prompt); ok {
		o.log.Debug().Str("key", o.cache.Key(prompt)).Msg("cache hit")
		return resolved(text, true)
	}

	if o.flight == nil {
		return o.generate(ctx, prompt, credential)
	}

	key := o.cache.Key(prompt)
	detached := context.WithoutCancel(ctx)
	ch := o.flight.DoChan(key, func() (any, error) {
		return o.generate(detached, prompt, credential), nil
	})
	select {
	case res := <-ch:
		if res.Shared {
			o.log.Debug().Str("key", key).Msg("joined in-flight generation")
		}
		return res.Val.(Outcome)
	case <-ctx.Done():
		return failed(&provider.Error{Kind: provider.KindTransportOrServer, Err: ctx.Err()})
	}
}

func (o *Orchestrator) generate(ctx context.Context, prompt, credential string) Outcome {
	key := o.cache.Key(prompt)
	text, err := o.generator.Generate(ctx, prompt, credential)
	if err != nil {
		out := failed(err)
		o.log.Warn().Err(err).Str("key", key).Str("kind", out.Failure.String()).Msg("generation failed")
		return out
	}

	o.cache.Put(prompt, text)
	o.log.Debug().Str("key", key).Msg("cache miss, stored generation")
	return resolved(text, false)
}

// Close clears every cached entry. It is the teardown hook for the host.
func (o *Orchestrator) Close() error {
	removed, err := o.cache.ClearAll()
	if err != nil {
		return fmt.Errorf("orchestrator close: %w", err)
	}
	o.log.Debug().Int("removed", removed).Msg("cache cleared")
	return nil
}

// Cache exposes the underlying cache.
func (o *Orchestrator) Cache() *cache.Cache { return o.cache }
