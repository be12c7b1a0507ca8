// Package kv defines the flat key-value medium the cache and settings share
// with the host. The medium has no namespaces; callers partition it by key
// prefix.
package kv

import "errors"

// ErrQuotaExceeded is returned by Set when the write would push the medium
// past its configured size limit.
var ErrQuotaExceeded = errors.New("kv: quota exceeded")

// Store is a flat string key-value medium.
//
// Implementations must be safe for concurrent use. Get returns ("", false, nil)
// on a miss. Remove is idempotent.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	// ListKeysWithPrefix returns every key starting with prefix, compared
	// byte-wise. Order is unspecified.
	ListKeysWithPrefix(prefix string) ([]string, error)
}
