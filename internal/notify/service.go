// Package notify turns storefront events into admin notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront/internal/events"
	"github.com/ariefcatur/go-storefront/internal/kvstore"
	"github.com/ariefcatur/go-storefront/internal/settings"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

const (
	TypeOrder = "order"
	TypeStock = "stock"

	dedupService = "notifier"
)

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	RefID     string    `json:"refId"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	KV  kvstore.Store
	Log *log.Logger
}

func NewService(kv kvstore.Store, l *log.Logger) *Service {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	return &Service{KV: kv, Log: l}
}

// Handle dipasang sebagai handler consumer. Event yang sama hanya diproses
// sekali; kalau proses gagal, kunci dedup dilepas supaya redelivery dicoba lagi.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := events.Decode(m.Value)
	if err != nil {
		s.Log.Printf("notify: skip undecodable message at offset %d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != events.EventOrderCreated && env.EventType != events.EventProductUpserted {
		return nil
	} // ignore

	// 2) dedup pakai event_id
	dkey := kvstore.DedupKey(dedupService, env.EventID)
	fresh, err := s.KV.SetNX(ctx, dkey, []byte("1"), kvstore.TTLDedup)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}

	if err := s.handle(ctx, env); err != nil {
		_ = s.KV.Del(ctx, dkey)
		return err
	}
	return nil
}

func (s *Service) handle(ctx context.Context, env events.Envelope) error {
	cfg := s.settings(ctx)

	var n *Notification
	switch env.EventType {
	case events.EventOrderCreated:
		if !cfg.Notifications.NewOrders {
			return nil
		}
		p, err := events.UnwrapPayload[events.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		who := p.CustomerName
		if who == "" {
			who = p.UserEmail
		}
		if who == "" {
			who = "a guest"
		}
		n = &Notification{
			Type:    TypeOrder,
			Title:   "New order " + p.OrderID,
			Message: fmt.Sprintf("%d item(s) for %s from %s", p.ItemCount, cfg.FormatPrice(p.Total), who),
			RefID:   p.OrderID,
		}

	case events.EventProductUpserted:
		if !cfg.Notifications.LowStock {
			return nil
		}
		p, err := events.UnwrapPayload[events.ProductUpsertedPayload](env.Payload)
		if err != nil {
			return err
		}
		if p.TotalStock > cfg.LowStockThreshold {
			return nil
		}
		title := "Low stock"
		if p.TotalStock == 0 {
			title = "Out of stock"
		}
		n = &Notification{
			Type:    TypeStock,
			Title:   title + ": " + p.Title,
			Message: fmt.Sprintf("%d left, threshold is %d", p.TotalStock, cfg.LowStockThreshold),
			RefID:   p.ProductID,
		}

	default:
		return nil
	}

	n.ID = env.EventID
	n.CreatedAt = env.OccurredAt
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return s.save(ctx, *n)
}

// settings falls back to the defaults when the record is absent or unreadable.
func (s *Service) settings(ctx context.Context) settings.Settings {
	def := settings.Defaults()
	raw, ok, err := s.KV.Get(ctx, kvstore.KeySettings)
	if err != nil {
		s.Log.Printf("notify: read settings: %v", err)
		return def
	}
	if !ok {
		return def
	}
	p, unknown, err := settings.ParsePatch(raw)
	if err != nil {
		s.Log.Printf("notify: parse settings: %v", err)
		return def
	}
	if len(unknown) > 0 {
		s.Log.Printf("notify: settings has unknown keys %v", unknown)
	}
	return settings.Restore(p)
}

func (s *Service) save(ctx context.Context, n Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.KV.Set(ctx, kvstore.NotificationKey(n.ID), b)
}

// List returns every notification, newest first.
func (s *Service) List(ctx context.Context) ([]Notification, error) {
	entries, err := s.KV.GetByPrefix(ctx, kvstore.PrefixNotification)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(entries))
	for _, e := range entries {
		var n Notification
		if err := json.Unmarshal(e.Value, &n); err != nil {
			s.Log.Printf("notify: skip %s: %v", e.Key, err)
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, id string) (Notification, error) {
	key := kvstore.NotificationKey(id)
	raw, ok, err := s.KV.Get(ctx, key)
	if err != nil {
		return Notification{}, err
	}
	if !ok {
		return Notification{}, storeerr.NotFound("notification %s not found", id)
	}
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return Notification{}, err
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	return n, s.save(ctx, n)
}
