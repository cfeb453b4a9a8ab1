// Package localcache is the capacity-limited string key-value store the
// storefront keeps on the client side. Values are JSON documents.
package localcache

import (
	"encoding/json"
	"errors"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

// DefaultCapacity mirrors the ~5MB ceiling of browser storage.
const DefaultCapacity = 5 * 1024 * 1024

// ErrQuotaExceeded is the cause of a CACHE_UNAVAILABLE error from Set when
// the write would pass the capacity ceiling.
var ErrQuotaExceeded = errors.New("quota exceeded")

type Cache interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Clear() error
	Keys() ([]string, error)
}

// entrySize counts a key and its value the way the ceiling is measured.
func entrySize(key, value string) int { return len(key) + len(value) }

// GetJSON decodes the value under key into v. It reports false when the key
// is absent. A stored value that is not valid JSON is an INVALID_INPUT error.
func GetJSON(c Cache, key string, v any) (bool, error) {
	raw, ok, err := c.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, storeerr.InvalidInput("cached %s is corrupt: %v", key, err)
	}
	return true, nil
}

func SetJSON(c Cache, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(key, string(b))
}

// Size sums key and value lengths of every entry.
func Size(c Cache) (int, error) {
	keys, err := c.Keys()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, k := range keys {
		v, ok, err := c.Get(k)
		if err != nil {
			return 0, err
		}
		if ok {
			total += entrySize(k, v)
		}
	}
	return total, nil
}
