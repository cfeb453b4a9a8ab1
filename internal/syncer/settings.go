package syncer

import (
	"context"
	"log"
	"sync"

	"github.com/ariefcatur/go-storefront/internal/localcache"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/remote"
	"github.com/ariefcatur/go-storefront/internal/settings"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

type SettingsSource interface {
	GetSettings(ctx context.Context) (remote.SettingsResult, error)
}

const settingsKey = "app:settings"

type Settings struct {
	mu      sync.RWMutex
	remote  SettingsSource
	cache   localcache.Cache
	outbox  *Outbox
	log     *log.Logger
	cur     settings.Settings
	loading bool
}

func NewSettings(r SettingsSource, c localcache.Cache, ob *Outbox, l *log.Logger) *Settings {
	if l == nil {
		l = log.Default()
	}
	return &Settings{
		remote:  r,
		cache:   c,
		outbox:  ob,
		log:     l,
		cur:     settings.Defaults(),
		loading: true,
	}
}

func (s *Settings) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Load adopts remote settings merged over the defaults. An empty remote
// record counts as "nothing saved yet" and falls through to the cache.
func (s *Settings) Load(ctx context.Context) Source {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	out := Resolve(ctx,
		func(ctx context.Context) (settings.Settings, error) {
			res, err := s.remote.GetSettings(ctx)
			if err == nil {
				err = res.Err("/settings")
			}
			if err != nil {
				return settings.Settings{}, err
			}
			if res.Empty() {
				return settings.Settings{}, storeerr.NotFound("remote store has no settings yet")
			}
			return s.merge(res.Settings)
		},
		func() (settings.Settings, bool, error) {
			raw, ok, err := s.cache.Get(localcache.KeySettings)
			if err != nil || !ok {
				return settings.Settings{}, false, err
			}
			v, err := s.merge([]byte(raw))
			return v, err == nil, err
		},
		settings.Defaults,
	)
	for _, err := range out.Errors {
		s.log.Printf("settings: load: %v", err)
	}

	s.mu.Lock()
	s.cur = out.Value
	s.mu.Unlock()
	if out.Source == SourceRemote {
		s.persist()
	}
	return out.Source
}

func (s *Settings) merge(raw []byte) (settings.Settings, error) {
	p, unknown, err := settings.ParsePatch(raw)
	if err != nil {
		return settings.Settings{}, err
	}
	if len(unknown) > 0 {
		s.log.Printf("settings: ignoring unknown fields %v", unknown)
	}
	return settings.Restore(p), nil
}

func (s *Settings) Current() settings.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Clone()
}

func (s *Settings) Pricing() orders.Pricing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Pricing()
}

func (s *Settings) FormatPrice(v float64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.FormatPrice(v)
}

// Update merges p into the current record, then saves remotely and caches
// the merged result whatever the remote says.
func (s *Settings) Update(ctx context.Context, p settings.Patch) settings.Settings {
	s.mu.Lock()
	s.cur = s.cur.Apply(p)
	next := s.cur.Clone()
	s.mu.Unlock()

	op, err := NewOp(KindSettingsSave, settingsKey, next)
	if err == nil {
		err = s.outbox.Submit(ctx, op)
	}
	if err != nil {
		s.log.Printf("settings: save not synced: %v", err)
	}
	s.persist()
	return next
}

// UpdateRaw parses a loosely typed partial object before applying it.
func (s *Settings) UpdateRaw(ctx context.Context, raw []byte) (settings.Settings, error) {
	p, unknown, err := settings.ParsePatch(raw)
	if err != nil {
		return settings.Settings{}, err
	}
	if len(unknown) > 0 {
		return settings.Settings{}, storeerr.InvalidInput("unknown settings fields %v", unknown)
	}
	return s.Update(ctx, p), nil
}

func (s *Settings) persist() {
	if err := localcache.SetJSON(s.cache, localcache.KeySettings, s.Current()); err != nil {
		s.log.Printf("settings: cache write: %v", err)
	}
}
