package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/inserter/pkg/cache"
	"github.com/pario-ai/inserter/pkg/kv"
	"github.com/pario-ai/inserter/pkg/provider"
)

type fakeGenerator struct {
	calls atomic.Int32
	fn    func(prompt, credential string) (string, error)
	ctxFn func(ctx context.Context) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt, credential string) (string, error) {
	f.calls.Add(1)
	if f.ctxFn != nil {
		return f.ctxFn(ctx)
	}
	return f.fn(prompt, credential)
}

// recordingStore counts every access to the medium.
type recordingStore struct {
	*kv.Memory
	ops  atomic.Int32
	fail bool
}

func (r *recordingStore) Get(key string) (string, bool, error) {
	r.ops.Add(1)
	return r.Memory.Get(key)
}

func (r *recordingStore) Set(key, value string) error {
	r.ops.Add(1)
	if r.fail {
		return kv.ErrQuotaExceeded
	}
	return r.Memory.Set(key, value)
}

func (r *recordingStore) Remove(key string) error {
	r.ops.Add(1)
	return r.Memory.Remove(key)
}

func (r *recordingStore) ListKeysWithPrefix(prefix string) ([]string, error) {
	r.ops.Add(1)
	return r.Memory.ListKeysWithPrefix(prefix)
}

func newTestOrchestrator(t *testing.T, gen provider.Generator, opts ...Option) (*Orchestrator, *recordingStore) {
	t.Helper()
	store := &recordingStore{Memory: kv.NewMemory(0)}
	return New(cache.New(store), gen, opts...), store
}

func TestHandlePromptMissAndStore(t *testing.T) {
	gen := &fakeGenerator{fn: func(prompt, cred string) (string, error) {
		assert.Equal(t, "hello", prompt)
		assert.Equal(t, "sk-test", cred)
		// The client trims; emulate the trimmed result of "  world  ".
		return "world", nil
	}}
	o, store := newTestOrchestrator(t, gen)

	out := o.HandlePrompt(context.Background(), "hello", "sk-test")
	assert.Equal(t, Resolved, out.Kind)
	assert.Equal(t, "world", out.Text)
	assert.False(t, out.Cached)

	raw, ok, err := store.Memory.Get(cache.DeriveKey(cache.DefaultPrefix, "hello"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Regexp(t, `^\d+\|world$`, raw)
}

func TestHandlePromptCacheHitSkipsNetwork(t *testing.T) {
	gen := &fakeGenerator{fn: func(string, string) (string, error) {
		panic("generator must not be called on a cache hit")
	}}
	o, _ := newTestOrchestrator(t, gen)
	o.cache.Put("hello", "world")

	out := o.HandlePrompt(context.Background(), "hello", "sk-test")
	assert.Equal(t, Resolved, out.Kind)
	assert.Equal(t, "world", out.Text)
	assert.True(t, out.Cached)
	assert.Zero(t, gen.calls.Load())
}

func TestHandlePromptHitAndMissIndistinguishable(t *testing.T) {
	gen := &fakeGenerator{fn: func(string, string) (string, error) { return "answer", nil }}
	o, _ := newTestOrchestrator(t, gen)

	first := o.HandlePrompt(context.Background(), "q", "k")
	second := o.HandlePrompt(context.Background(), "q", "k")

	assert.Equal(t, first.Kind, second.Kind)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestHandlePromptCredentialMissing(t *testing.T) {
	gen := &fakeGenerator{fn: func(string, string) (string, error) {
		panic("generator must not be called without a credential")
	}}
	o, store := newTestOrchestrator(t, gen)

	out := o.HandlePrompt(context.Background(), "hello", "")
	assert.Equal(t, CredentialMissing, out.Kind)
	assert.Equal(t, MessageCredentialMissing, out.Message())
	assert.Zero(t, store.ops.Load(), "no cache access expected")
	assert.Zero(t, gen.calls.Load())
}

func TestHandlePromptFailures(t *testing.T) {
	kinds := []provider.Kind{
		provider.KindUnauthenticated,
		provider.KindRateLimited,
		provider.KindTransportOrServer,
		provider.KindMalformedResponse,
	}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			gen := &fakeGenerator{fn: func(string, string) (string, error) {
				return "", &provider.Error{Kind: kind, Err: errors.New("boom")}
			}}
			o, store := newTestOrchestrator(t, gen)

			out := o.HandlePrompt(context.Background(), "p", "k")
			assert.Equal(t, Failed, out.Kind)
			assert.Equal(t, kind, out.Failure)
			assert.Equal(t, kind.Message(), out.Message())
			assert.Error(t, out.Err)

			assert.Zero(t, store.Memory.Len(), "failures must not be cached")
		})
	}
}

func TestHandlePromptUnclassifiedError(t *testing.T) {
	gen := &fakeGenerator{fn: func(string, string) (string, error) { return "", errors.New("odd") }}
	o, _ := newTestOrchestrator(t, gen)

	out := o.HandlePrompt(context.Background(), "p", "k")
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, provider.KindTransportOrServer, out.Failure)
}

func TestHandlePromptCacheWriteFailureStillResolves(t *testing.T) {
	gen := &fakeGenerator{fn: func(string, string) (string, error) { return "text", nil }}
	o, store := newTestOrchestrator(t, gen)
	store.fail = true

	out := o.HandlePrompt(context.Background(), "p", "k")
	assert.Equal(t, Resolved, out.Kind)
	assert.Equal(t, "text", out.Text)
}

func TestHandlePromptNoCoalescingByDefault(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{fn: func(string, string) (string, error) {
		<-release
		return "r", nil
	}}
	o, _ := newTestOrchestrator(t, gen)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.HandlePrompt(context.Background(), "same", "k")
		}()
	}
	require.Eventually(t, func() bool { return gen.calls.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
}

func TestHandlePromptCoalescing(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{fn: func(string, string) (string, error) {
		<-release
		return "r", nil
	}}
	o, _ := newTestOrchestrator(t, gen, WithCoalescing())

	var wg sync.WaitGroup
	outs := make([]Outcome, 3)
	for i := range outs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i] = o.HandlePrompt(context.Background(), "same", "k")
		}()
	}
	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the other callers time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, out := range outs {
		assert.Equal(t, Resolved, out.Kind)
		assert.Equal(t, "r", out.Text)
	}
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestHandlePromptCoalescingSurvivesLeaderCancel(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{ctxFn: func(ctx context.Context) (string, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return "", &provider.Error{Kind: provider.KindTransportOrServer, Err: err}
		}
		return "r", nil
	}}
	o, _ := newTestOrchestrator(t, gen, WithCoalescing())

	leaderCtx, cancel := context.WithCancel(context.Background())
	leader := make(chan Outcome, 1)
	go func() { leader <- o.HandlePrompt(leaderCtx, "same", "k") }()
	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, time.Millisecond)

	follower := make(chan Outcome, 1)
	go func() { follower <- o.HandlePrompt(context.Background(), "same", "k") }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	out := <-leader
	assert.Equal(t, Failed, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)

	close(release)
	out = <-follower
	assert.Equal(t, Resolved, out.Kind)
	assert.Equal(t, "r", out.Text)
	assert.Equal(t, int32(1), gen.calls.Load())

	text, ok := o.Cache().Get("same")
	assert.True(t, ok)
	assert.Equal(t, "r", text)
}

func TestClose(t *testing.T) {
	gen := &fakeGenerator{fn: func(string, string) (string, error) { return "r", nil }}
	o, store := newTestOrchestrator(t, gen)
	require.NoError(t, store.Memory.Set("unrelated", "keep"))

	o.HandlePrompt(context.Background(), "a", "k")
	o.HandlePrompt(context.Background(), "b", "k")
	require.Equal(t, 3, store.Memory.Len())

	require.NoError(t, o.Close())
	assert.Equal(t, 1, store.Memory.Len())
	_, ok, _ := store.Memory.Get("unrelated")
	assert.True(t, ok)
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "credential_missing", CredentialMissing.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Empty(t, Outcome{Kind: Resolved, Text: "x"}.Message())
}
