// Package hygiene keeps the local cache under its capacity ceiling. It runs
// once at startup before any synchronizer reads the cache.
package hygiene

import (
	"encoding/json"
	"io"
	"log"

	"github.com/ariefcatur/go-storefront/internal/localcache"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

const (
	DefaultLegacyLimit = 100_000
	DefaultTotalLimit  = 4_000_000
)

// DefaultEssential survives an eviction pass.
var DefaultEssential = []string{
	localcache.KeyProductsMeta,
	localcache.KeySettings,
	localcache.KeyUser,
	localcache.KeyUserUnconfirmed,
	localcache.KeyAdminSession,
}

type Routine struct {
	LegacyKey   string
	LegacyLimit int
	TotalLimit  int
	Essential   []string
	Log         *log.Logger
}

// Report says what a run did. Nothing in it is an error for the caller.
type Report struct {
	TotalSize     int
	LegacyRemoved bool
	Evicted       []string
	Fallback      bool
	Emergency     bool
}

func Default(l *log.Logger) Routine {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	return Routine{
		LegacyKey:   localcache.KeyLegacyProducts,
		LegacyLimit: DefaultLegacyLimit,
		TotalLimit:  DefaultTotalLimit,
		Essential:   DefaultEssential,
		Log:         l,
	}
}

// Run applies the default routine to c.
func Run(c localcache.Cache, l *log.Logger) Report {
	return Default(l).Run(c)
}

// Run never fails. If the normal pass hits an error it drops the legacy
// entry; if even that fails it rebuilds the cache from the essential keys.
func (r Routine) Run(c localcache.Cache) Report {
	var rep Report
	err := r.inspect(c, &rep)
	if err == nil {
		return rep
	}
	r.Log.Printf("hygiene: inspection failed, dropping legacy entry: %v", err)
	rep.Fallback = true
	if err := c.Remove(r.LegacyKey); err != nil {
		r.Log.Printf("hygiene: cannot drop legacy entry, rebuilding cache: %v", err)
		rep.Emergency = true
		r.emergency(c)
		return rep
	}
	rep.LegacyRemoved = true
	return rep
}

func (r Routine) inspect(c localcache.Cache, rep *Report) error {
	legacy, present, err := c.Get(r.LegacyKey)
	if err != nil {
		return err
	}
	if present {
		if !json.Valid([]byte(legacy)) {
			return storeerr.InvalidInput("legacy entry %s is not valid JSON", r.LegacyKey)
		}
		if len(legacy) > r.LegacyLimit {
			if err := c.Remove(r.LegacyKey); err != nil {
				return err
			}
			r.Log.Printf("hygiene: removed oversized legacy entry (%d chars)", len(legacy))
			rep.LegacyRemoved = true
			present = false
		}
	}

	total, err := localcache.Size(c)
	if err != nil {
		return err
	}
	rep.TotalSize = total
	if total <= r.TotalLimit {
		return nil
	}

	r.Log.Printf("hygiene: cache holds %d chars, over %d; evicting", total, r.TotalLimit)
	if present {
		if err := c.Remove(r.LegacyKey); err != nil {
			return err
		}
		rep.LegacyRemoved = true
	}
	keys, err := c.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if r.essential(k) {
			continue
		}
		if err := c.Remove(k); err != nil {
			return err
		}
		rep.Evicted = append(rep.Evicted, k)
	}
	return nil
}

func (r Routine) emergency(c localcache.Cache) {
	saved := make(map[string]string, len(r.Essential))
	for _, k := range r.Essential {
		if v, ok, err := c.Get(k); err == nil && ok {
			saved[k] = v
		}
	}
	if err := c.Clear(); err != nil {
		r.Log.Printf("hygiene: clear failed: %v", err)
		return
	}
	for k, v := range saved {
		if err := c.Set(k, v); err != nil {
			r.Log.Printf("hygiene: restore %s failed: %v", k, err)
		}
	}
}

func (r Routine) essential(key string) bool {
	for _, k := range r.Essential {
		if k == key {
			return true
		}
	}
	return false
}
