package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/accounts"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/localcache"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/remote"
	"github.com/ariefcatur/go-storefront/internal/settings"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

var quiet = log.New(io.Discard, "", 0)

// fakeStore stands in for the remote client. down makes every call fail
// with a retryable connection error; reject fails writes permanently.
type fakeStore struct {
	mu       sync.Mutex
	down     bool
	reject   bool
	products []catalog.Product
	orders   []orders.Order
	settings json.RawMessage
	users    map[string]accounts.Record
	writes   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]accounts.Record{}}
}

func (f *fakeStore) setDown(v bool) {
	f.mu.Lock()
	f.down = v
	f.mu.Unlock()
}

func (f *fakeStore) fail(endpoint string) error {
	if f.down {
		return storeerr.ConnectionFailed(endpoint, errors.New("connection refused"))
	}
	return nil
}

func (f *fakeStore) write(what, endpoint string) error {
	if err := f.fail(endpoint); err != nil {
		return err
	}
	if f.reject {
		return storeerr.RequestRejected(endpoint, 400, "rejected")
	}
	f.writes = append(f.writes, what)
	return nil
}

func okResult() remote.Result { return remote.Result{Success: true} }

func (f *fakeStore) ListProducts(_ context.Context, includeImages bool) (remote.ProductList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("/products"); err != nil {
		return remote.ProductList{}, err
	}
	out := make([]catalog.Product, 0, len(f.products))
	for _, p := range f.products {
		if !includeImages {
			p = p.Meta().Product()
		}
		out = append(out, p)
	}
	return remote.ProductList{Result: okResult(), Products: out, Total: len(out)}, nil
}

func (f *fakeStore) AddProduct(_ context.Context, p catalog.Product) (remote.ProductResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write("product.add:"+p.ID, "/products"); err != nil {
		return remote.ProductResult{}, err
	}
	f.products = append([]catalog.Product{p}, f.products...)
	return remote.ProductResult{Result: okResult(), Product: p}, nil
}

func (f *fakeStore) UpdateProduct(_ context.Context, p catalog.Product) (remote.ProductResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write("product.update:"+p.ID, "/products/"+p.ID); err != nil {
		return remote.ProductResult{}, err
	}
	for i := range f.products {
		if f.products[i].ID == p.ID {
			p = p.KeepImages(f.products[i])
			f.products[i] = p
		}
	}
	return remote.ProductResult{Result: okResult(), Product: p}, nil
}

func (f *fakeStore) DeleteProduct(_ context.Context, id string) (remote.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write("product.delete:"+id, "/products/"+id); err != nil {
		return remote.Result{}, err
	}
	kept := f.products[:0]
	for _, p := range f.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	f.products = kept
	return okResult(), nil
}

func (f *fakeStore) CleanupProducts(context.Context) (remote.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write("products.cleanup", "/products/cleanup"); err != nil {
		return remote.Result{}, err
	}
	f.products = nil
	return okResult(), nil
}

func (f *fakeStore) ListOrders(context.Context) (remote.OrderList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("/orders"); err != nil {
		return remote.OrderList{}, err
	}
	return remote.OrderList{Result: okResult(), Orders: append([]orders.Order(nil), f.orders...)}, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o orders.Order) (remote.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write("order.create:"+o.ID, "/orders"); err != nil {
		return remote.OrderResult{}, err
	}
	f.orders = append([]orders.Order{o}, f.orders...)
	return remote.OrderResult{Result: okResult(), Order: o}, nil
}

func (f *fakeStore) UpdateOrder(_ context.Context, o orders.Order) (remote.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write("order.update:"+o.ID, "/orders/"+o.ID); err != nil {
		return remote.OrderResult{}, err
	}
	for i := range f.orders {
		if f.orders[i].ID == o.ID {
			f.orders[i] = o
		}
	}
	return remote.OrderResult{Result: okResult(), Order: o}, nil
}

func (f *fakeStore) GetSettings(context.Context) (remote.SettingsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("/settings"); err != nil {
		return remote.SettingsResult{}, err
	}
	raw := f.settings
	if raw == nil {
		raw = json.RawMessage(`{}`)
	}
	return remote.SettingsResult{Result: okResult(), Settings: raw}, nil
}

func (f *fakeStore) SaveSettings(_ context.Context, s settings.Settings) (remote.SettingsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write("settings.save", "/settings"); err != nil {
		return remote.SettingsResult{}, err
	}
	b, _ := json.Marshal(s)
	f.settings = b
	return remote.SettingsResult{Result: okResult(), Settings: b}, nil
}

func (f *fakeStore) GetUser(_ context.Context, email string) (remote.UserResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("/users/" + email); err != nil {
		return remote.UserResult{}, err
	}
	rec, found := f.users[strings.ToLower(email)]
	if !found {
		return remote.UserResult{Result: okResult(), User: json.RawMessage(`null`)}, nil
	}
	b, _ := json.Marshal(rec)
	return remote.UserResult{Result: okResult(), User: b}, nil
}

func (f *fakeStore) SaveUser(_ context.Context, rec accounts.Record) (remote.UserResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write("user.save:"+rec.Email, "/users"); err != nil {
		return remote.UserResult{}, err
	}
	if prev, ok := f.users[rec.Email]; ok && rec.PasswordHash == "" {
		rec.PasswordHash = prev.PasswordHash
	}
	f.users[rec.Email] = rec
	b, _ := json.Marshal(rec)
	return remote.UserResult{Result: okResult(), User: b}, nil
}

// Authenticate checks the password the way the API does and answers
// without the hash.
func (f *fakeStore) Authenticate(_ context.Context, email, password string) (remote.UserResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("/users/login"); err != nil {
		return remote.UserResult{}, err
	}
	rec, found := f.users[strings.ToLower(email)]
	if !found {
		return remote.UserResult{Result: okResult(), User: json.RawMessage(`null`)}, nil
	}
	if err := (accounts.BcryptVerifier{}).Verify(rec.User, password); err != nil {
		return remote.UserResult{}, storeerr.RequestRejected("/users/login", 401, "invalid email or password")
	}
	rec.User = rec.User.Public()
	b, _ := json.Marshal(rec)
	return remote.UserResult{Result: okResult(), User: b}, nil
}

type kit struct {
	store    *fakeStore
	cache    *localcache.Memory
	outbox   *Outbox
	products *Products
	orders   *Orders
	settings *Settings
	accounts *Accounts
}

func newKit(t *testing.T, opts ...AccountsOption) *kit {
	t.Helper()
	return newKitWith(t, newFakeStore(), localcache.NewMemory(0), opts...)
}

func newKitWith(t *testing.T, store *fakeStore, cache *localcache.Memory, opts ...AccountsOption) *kit {
	t.Helper()
	ob, err := NewOutbox(&MemoryJournal{}, RemoteDispatcher{W: store}, quiet)
	require.NoError(t, err)
	k := &kit{store: store, cache: cache, outbox: ob}
	k.settings = NewSettings(store, cache, ob, quiet)
	k.products = NewProducts(store, cache, ob, quiet)
	k.orders = NewOrders(store, cache, ob, k.settings, quiet)
	k.accounts = NewAccounts(store, cache, ob, k.orders, quiet, opts...)
	return k
}

func cached(t *testing.T, c localcache.Cache, key string, v any) bool {
	t.Helper()
	found, err := localcache.GetJSON(c, key, v)
	require.NoError(t, err)
	return found
}
