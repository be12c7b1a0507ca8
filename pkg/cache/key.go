package cache

import (
	"crypto/md5" //nolint:gosec // content fingerprint for partitioning, not a security primitive
	"encoding/hex"
)

// DefaultPrefix is the reserved namespace for cache keys in the shared medium.
const DefaultPrefix = "ai-inserter-cache-"

// DeriveKey maps a prompt to prefix + hex(md5(prompt)). Equal prompts always
// yield equal keys.
func DeriveKey(prefix, prompt string) string {
	sum := md5.Sum([]byte(prompt)) //nolint:gosec
	return prefix + hex.EncodeToString(sum[:])
}
