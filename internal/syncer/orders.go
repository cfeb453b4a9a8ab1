package syncer

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/ids"
	"github.com/ariefcatur/go-storefront/internal/localcache"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/remote"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

type OrderSource interface {
	ListOrders(ctx context.Context) (remote.OrderList, error)
}

// PricingSource supplies the tax and shipping rules in effect right now.
type PricingSource interface {
	Pricing() orders.Pricing
}

type CreateOrderInput struct {
	Items           []orders.LineItem
	ShippingAddress orders.ShippingAddress
	PaymentMethod   string
	Customer        *orders.CustomerInfo
}

// Orders keeps a single order store keyed by id. The admin list and the
// per-user histories in the cache are both projections of it.
type Orders struct {
	mu      sync.RWMutex
	remote  OrderSource
	cache   localcache.Cache
	outbox  *Outbox
	pricing PricingSource
	seq     *ids.Sequence
	log     *log.Logger
	now     func() time.Time

	byID    map[string]orders.Order
	ids     []string // newest first
	loading bool
}

func NewOrders(r OrderSource, c localcache.Cache, ob *Outbox, p PricingSource, l *log.Logger) *Orders {
	if l == nil {
		l = log.Default()
	}
	return &Orders{
		remote:  r,
		cache:   c,
		outbox:  ob,
		pricing: p,
		seq:     ids.NewSequence(),
		log:     l,
		now:     time.Now,
		byID:    map[string]orders.Order{},
		loading: true,
	}
}

func (s *Orders) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Orders) Load(ctx context.Context) Source {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	out := Resolve(ctx,
		func(ctx context.Context) ([]orders.Order, error) {
			res, err := s.remote.ListOrders(ctx)
			if err == nil {
				err = res.Err("/orders")
			}
			return res.Orders, err
		},
		func() ([]orders.Order, bool, error) {
			var list []orders.Order
			ok, err := localcache.GetJSON(s.cache, localcache.KeyAllOrders, &list)
			return list, ok, err
		},
		func() []orders.Order { return nil },
	)
	for _, err := range out.Errors {
		s.log.Printf("orders: load: %v", err)
	}

	s.mu.Lock()
	s.byID = make(map[string]orders.Order, len(out.Value))
	s.ids = s.ids[:0]
	for _, o := range out.Value {
		if _, dup := s.byID[o.ID]; dup || o.ID == "" {
			continue
		}
		s.byID[o.ID] = o
		s.ids = append(s.ids, o.ID)
	}
	emails := s.emailsLocked()
	s.mu.Unlock()

	if out.Source == SourceRemote {
		s.persist(emails...)
	}
	return out.Source
}

// All returns every order newest first.
func (s *Orders) All() []orders.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]orders.Order, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *Orders) ForUser(email string) []orders.Order {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forUserLocked(email)
}

func (s *Orders) forUserLocked(email string) []orders.Order {
	var out []orders.Order
	for _, id := range s.ids {
		if o := s.byID[id]; o.UserEmail == email {
			out = append(out, o)
		}
	}
	return out
}

func (s *Orders) Get(id string) (orders.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[id]
	return o, ok
}

// HistoryFor merges the in-memory orders of email with any summaries cached
// for it, so orders placed in earlier sessions still show up.
func (s *Orders) HistoryFor(email string) []orders.Summary {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return []orders.Summary{}
	}
	s.mu.RLock()
	mine := s.forUserLocked(email)
	s.mu.RUnlock()

	seen := make(map[string]bool, len(mine))
	out := make([]orders.Summary, 0, len(mine))
	for _, o := range mine {
		seen[o.ID] = true
		out = append(out, o.Summary())
	}
	var cached []orders.Summary
	if _, err := localcache.GetJSON(s.cache, localcache.UserOrdersKey(email), &cached); err != nil {
		s.log.Printf("orders: history for %s: %v", email, err)
	}
	for _, sm := range cached {
		if !seen[sm.ID] {
			seen[sm.ID] = true
			out = append(out, sm)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// Create prices the items with the current settings and stores the order as
// pending. It succeeds even when the remote is unreachable.
func (s *Orders) Create(ctx context.Context, in CreateOrderInput) (orders.Order, error) {
	if err := orders.ValidateItems(in.Items); err != nil {
		return orders.Order{}, err
	}
	totals := orders.ComputeTotals(in.Items, s.pricing.Pricing())
	now := s.now().UTC()
	o := orders.Order{
		ID:              "ORD-" + strconv.FormatInt(s.seq.Next(), 10),
		Date:            now,
		CreatedAt:       now,
		Status:          orders.StatusPending,
		Items:           append([]orders.LineItem(nil), in.Items...),
		Subtotal:        totals.Subtotal,
		Shipping:        totals.Shipping,
		Tax:             totals.Tax,
		Total:           totals.Total,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
	}
	if in.Customer != nil {
		c := *in.Customer
		c.Email = strings.ToLower(strings.TrimSpace(c.Email))
		o.CustomerInfo = &c
		o.UserEmail = c.Email
	}

	s.mu.Lock()
	s.byID[o.ID] = o
	s.ids = append([]string{o.ID}, s.ids...)
	s.mu.Unlock()

	s.submit(ctx, KindOrderCreate, o)
	s.persist(o.UserEmail)
	return o, nil
}

func (s *Orders) UpdateStatus(ctx context.Context, id string, status orders.Status) (orders.Order, error) {
	if _, err := orders.ParseStatus(string(status)); err != nil {
		return orders.Order{}, err
	}
	return s.update(ctx, id, func(o *orders.Order) { o.Status = status })
}

func (s *Orders) SetTracking(ctx context.Context, id, tracking string) (orders.Order, error) {
	return s.update(ctx, id, func(o *orders.Order) { o.TrackingNumber = strings.TrimSpace(tracking) })
}

func (s *Orders) update(ctx context.Context, id string, fn func(*orders.Order)) (orders.Order, error) {
	s.mu.Lock()
	o, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return orders.Order{}, storeerr.NotFound("order %s not found", id)
	}
	fn(&o)
	s.byID[id] = o
	s.mu.Unlock()

	s.submit(ctx, KindOrderUpdate, o)
	s.persist(o.UserEmail)
	return o, nil
}

func (s *Orders) emailsLocked() []string {
	set := map[string]bool{}
	var out []string
	for _, o := range s.byID {
		if o.UserEmail != "" && !set[o.UserEmail] {
			set[o.UserEmail] = true
			out = append(out, o.UserEmail)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Orders) submit(ctx context.Context, kind Kind, o orders.Order) {
	op, err := NewOp(kind, o.ID, o)
	if err != nil {
		s.log.Printf("orders: %v", err)
		return
	}
	if err := s.outbox.Submit(ctx, op); err != nil {
		s.log.Printf("orders: %s %s not synced: %v", kind, o.ID, err)
	}
}

// persist writes the full admin list and the histories of emails. Orders
// are written back whole, so the cached copy keeps every field.
func (s *Orders) persist(emails ...string) {
	if err := localcache.SetJSON(s.cache, localcache.KeyAllOrders, s.All()); err != nil {
		s.log.Printf("orders: cache write: %v", err)
	}
	for _, email := range emails {
		if email == "" {
			continue
		}
		if err := localcache.SetJSON(s.cache, localcache.UserOrdersKey(email), s.HistoryFor(email)); err != nil {
			s.log.Printf("orders: cache write for %s: %v", email, err)
		}
	}
}
