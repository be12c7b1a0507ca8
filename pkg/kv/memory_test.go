package kv

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGetRemove(t *testing.T) {
	m := NewMemory(0)

	_, ok, err := m.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set("a", "1"))
	v, ok, err := m.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	require.NoError(t, m.Remove("a"))
	require.NoError(t, m.Remove("a"))
	_, ok, _ = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(0), m.Size())
}

func TestMemoryListKeysWithPrefix(t *testing.T) {
	m := NewMemory(0)
	for _, k := range []string{"p-1", "p-2", "q-1", "p", "xp-3"} {
		require.NoError(t, m.Set(k, "v"))
	}

	keys, err := m.ListKeysWithPrefix("p-")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"p-1", "p-2"}, keys)
}

func TestMemoryQuota(t *testing.T) {
	m := NewMemory(10)

	require.NoError(t, m.Set("k1", "1234")) // 6 bytes
	assert.ErrorIs(t, m.Set("k2", "12345"), ErrQuotaExceeded)
	assert.Equal(t, 1, m.Len())

	// Overwriting an existing key only counts the difference.
	require.NoError(t, m.Set("k1", "12345678"))
	assert.Equal(t, int64(10), m.Size())

	require.NoError(t, m.Remove("k1"))
	require.NoError(t, m.Set("k2", "12345"))
}
