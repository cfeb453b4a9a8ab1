package syncer

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/ids"
	"github.com/ariefcatur/go-storefront/internal/localcache"
	"github.com/ariefcatur/go-storefront/internal/remote"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

type ProductSource interface {
	ListProducts(ctx context.Context, includeImages bool) (remote.ProductList, error)
}

// Products owns the catalog for the session. The local cache only ever sees
// catalog.Meta, never image payloads.
type Products struct {
	mu      sync.RWMutex
	remote  ProductSource
	cache   localcache.Cache
	outbox  *Outbox
	seq     *ids.Sequence
	log     *log.Logger
	now     func() time.Time
	items   []catalog.Product
	loading bool
}

func NewProducts(r ProductSource, c localcache.Cache, ob *Outbox, l *log.Logger) *Products {
	if l == nil {
		l = log.Default()
	}
	return &Products{
		remote:  r,
		cache:   c,
		outbox:  ob,
		seq:     ids.NewSequence(),
		log:     l,
		now:     time.Now,
		items:   []catalog.Product{},
		loading: true,
	}
}

func (s *Products) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Load fetches the catalog, with image payloads only when withImages is set.
func (s *Products) Load(ctx context.Context, withImages bool) Source {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	out := Resolve(ctx,
		func(ctx context.Context) ([]catalog.Product, error) {
			res, err := s.remote.ListProducts(ctx, withImages)
			if err == nil {
				err = res.Err("/products")
			}
			if err != nil {
				return nil, err
			}
			if res.Products == nil {
				return []catalog.Product{}, nil
			}
			return res.Products, nil
		},
		s.readCache,
		func() []catalog.Product { return []catalog.Product{} },
	)
	for _, err := range out.Errors {
		s.log.Printf("products: load: %v", err)
	}

	s.mu.Lock()
	s.items = out.Value
	s.mu.Unlock()
	if out.Source == SourceRemote {
		s.persist()
	}
	return out.Source
}

func (s *Products) readCache() ([]catalog.Product, bool, error) {
	var metas []catalog.Meta
	ok, err := localcache.GetJSON(s.cache, localcache.KeyProductsMeta, &metas)
	if err != nil {
		if storeerr.Is(err, storeerr.CodeInvalidInput) {
			_ = s.cache.Remove(localcache.KeyProductsMeta)
		}
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	ps := make([]catalog.Product, 0, len(metas))
	for _, m := range metas {
		ps = append(ps, m.Product())
	}
	return ps, true, nil
}

// Products returns the catalog newest first.
func (s *Products) Products() []catalog.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]catalog.Product(nil), s.items...)
}

func (s *Products) Get(id string) (catalog.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return catalog.Product{}, false
}

func (s *Products) indexOf(id string) int {
	for i, p := range s.items {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Add assigns a fresh id and prepends p. A remote failure does not fail Add.
func (s *Products) Add(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if err := p.Validate(); err != nil {
		return catalog.Product{}, err
	}
	p = p.CleanImages()
	p.ID = strconv.FormatInt(s.seq.Next(), 10)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	p.HasImages = len(p.Images) > 0

	s.mu.Lock()
	s.items = append([]catalog.Product{p}, s.items...)
	s.mu.Unlock()

	s.submit(ctx, KindProductAdd, p.ID, p)
	s.persist()
	return p, nil
}

// Update replaces the stored record with the same id. A record rebuilt from
// metadata keeps the images already held, or tells the remote to keep its own.
func (s *Products) Update(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if err := p.Validate(); err != nil {
		return catalog.Product{}, err
	}
	p = p.CleanImages()

	s.mu.Lock()
	i := s.indexOf(p.ID)
	if i < 0 {
		s.mu.Unlock()
		return catalog.Product{}, storeerr.NotFound("product %s not found", p.ID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.items[i].CreatedAt
	}
	p = p.KeepImages(s.items[i])
	s.items[i] = p
	s.mu.Unlock()

	s.submit(ctx, KindProductUpdate, p.ID, p)
	s.persist()
	return p, nil
}

func (s *Products) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return storeerr.NotFound("product %s not found", id)
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.mu.Unlock()

	s.submit(ctx, KindProductDelete, id, nil)
	s.persist()
	return nil
}

// Cleanup deletes the whole catalog, locally and remotely.
func (s *Products) Cleanup(ctx context.Context) {
	s.mu.Lock()
	s.items = []catalog.Product{}
	s.mu.Unlock()

	s.submit(ctx, KindProductsCleanup, "*", nil)
	for _, k := range []string{localcache.KeyLegacyProducts, localcache.KeyProductsMeta} {
		if err := s.cache.Remove(k); err != nil {
			s.log.Printf("products: remove %s: %v", k, err)
		}
	}
}

func (s *Products) submit(ctx context.Context, kind Kind, key string, payload any) {
	op, err := NewOp(kind, key, payload)
	if err != nil {
		s.log.Printf("products: %v", err)
		return
	}
	if err := s.outbox.Submit(ctx, op); err != nil {
		s.log.Printf("products: %s %s not synced: %v", kind, key, err)
	}
}

func (s *Products) persist() {
	s.mu.RLock()
	metas := catalog.Metas(s.items)
	s.mu.RUnlock()
	if err := localcache.SetJSON(s.cache, localcache.KeyProductsMeta, metas); err != nil {
		s.log.Printf("products: cache write: %v", err)
	}
}
