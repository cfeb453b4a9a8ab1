// Package storefront wires the client side together: cache, outbox and the
// domain synchronizers, all built from explicit dependencies.
package storefront

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront/internal/admin"
	"github.com/ariefcatur/go-storefront/internal/hygiene"
	"github.com/ariefcatur/go-storefront/internal/localcache"
	"github.com/ariefcatur/go-storefront/internal/migrate"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
	"github.com/ariefcatur/go-storefront/internal/syncer"
)

// Remote is everything the client needs from the remote store.
type Remote interface {
	syncer.ProductSource
	syncer.OrderSource
	syncer.SettingsSource
	syncer.UserSource
	syncer.Writer
}

type Deps struct {
	Remote  Remote
	Cache   localcache.Cache
	Journal syncer.Journal
	Log     *log.Logger

	AccountOptions []syncer.AccountsOption

	AdminPassword   string
	AdminSessionKey string
	AdminSessionTTL time.Duration

	// LoadImages asks for full product payloads at startup.
	LoadImages bool
}

type App struct {
	Products *syncer.Products
	Orders   *syncer.Orders
	Settings *syncer.Settings
	Accounts *syncer.Accounts
	Cart     *syncer.Cart
	Admin    *admin.Gate
	Outbox   *syncer.Outbox

	remote     Remote
	cache      localcache.Cache
	log        *log.Logger
	loadImages bool
}

func New(d Deps) (*App, error) {
	if d.Remote == nil || d.Cache == nil {
		return nil, storeerr.InvalidInput("storefront: remote and cache are required")
	}
	l := d.Log
	if l == nil {
		l = log.Default()
	}
	ob, err := syncer.NewOutbox(d.Journal, syncer.RemoteDispatcher{W: d.Remote}, l)
	if err != nil {
		return nil, err
	}

	a := &App{Outbox: ob, remote: d.Remote, cache: d.Cache, log: l, loadImages: d.LoadImages}
	a.Settings = syncer.NewSettings(d.Remote, d.Cache, ob, l)
	a.Products = syncer.NewProducts(d.Remote, d.Cache, ob, l)
	a.Orders = syncer.NewOrders(d.Remote, d.Cache, ob, a.Settings, l)
	a.Accounts = syncer.NewAccounts(d.Remote, d.Cache, ob, a.Orders, l, d.AccountOptions...)
	a.Cart = syncer.NewCart(d.Cache, l)

	gateOpts := []admin.Option{admin.WithLogger(l)}
	if d.AdminSessionKey != "" {
		gateOpts = append(gateOpts, admin.WithSessionKey(d.AdminSessionKey, d.AdminSessionTTL))
	}
	a.Admin = admin.NewGate(d.Cache, d.AdminPassword, gateOpts...)
	return a, nil
}

type StartReport struct {
	Hygiene      hygiene.Report
	Migration    migrate.Report
	MigrationErr error
	CartRows     int
	Sources      map[string]syncer.Source
	Drain        syncer.DrainReport
}

// Start never fails: every step degrades to cached or default state.
func (a *App) Start(ctx context.Context) StartReport {
	var rep StartReport
	rep.Hygiene = hygiene.Run(a.cache, a.log)

	rep.Migration, rep.MigrationErr = migrate.Run(ctx, a.cache, a.remote, a.log)
	if rep.MigrationErr != nil {
		a.log.Printf("storefront: migration deferred: %v", rep.MigrationErr)
	}
	rep.CartRows = a.Cart.Restore()

	var mu sync.Mutex
	rep.Sources = map[string]syncer.Source{}
	record := func(name string, s syncer.Source) {
		mu.Lock()
		rep.Sources[name] = s
		mu.Unlock()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { record("settings", a.Settings.Load(gctx)); return nil })
	g.Go(func() error { record("products", a.Products.Load(gctx, a.loadImages)); return nil })
	g.Go(func() error { record("orders", a.Orders.Load(gctx)); return nil })
	g.Go(func() error { record("accounts", a.Accounts.Restore(gctx)); return nil })
	_ = g.Wait()

	if len(a.Outbox.Pending()) > 0 {
		rep.Drain = a.Outbox.Drain(ctx)
	}
	return rep
}

type CheckoutInput struct {
	ShippingAddress orders.ShippingAddress
	PaymentMethod   string
	// Customer is used for guests. A signed-in user always wins.
	Customer *orders.CustomerInfo
}

// Checkout turns the cart into an order and empties the cart.
func (a *App) Checkout(ctx context.Context, in CheckoutInput) (orders.Order, error) {
	items := a.Cart.LineItems()
	if len(items) == 0 {
		return orders.Order{}, storeerr.InvalidInput("cart is empty")
	}
	customer := in.Customer
	if u, ok := a.Accounts.User(); ok {
		customer = &orders.CustomerInfo{
			Name:  strings.TrimSpace(u.FirstName + " " + u.LastName),
			Email: u.Email,
			Phone: u.Phone,
		}
	}
	o, err := a.Orders.Create(ctx, syncer.CreateOrderInput{
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		Customer:        customer,
	})
	if err != nil {
		return orders.Order{}, err
	}
	a.Cart.Clear()
	return o, nil
}

// State is a JSON friendly summary of what the client holds.
type State struct {
	Loading   bool                     `json:"loading"`
	Store     string                   `json:"store"`
	Currency  string                   `json:"currency"`
	Products  int                      `json:"products"`
	Orders    int                      `json:"orders"`
	User      string                   `json:"user,omitempty"`
	History   []orders.Summary         `json:"history,omitempty"`
	CartItems int                      `json:"cartItems"`
	CartTotal string                   `json:"cartTotal"`
	Pending   int                      `json:"pendingWrites"`
	Admin     bool                     `json:"admin"`
	Sources   map[string]syncer.Source `json:"sources,omitempty"`
}

func (a *App) State() State {
	s := a.Settings.Current()
	st := State{
		Loading:   a.Settings.Loading() || a.Products.Loading() || a.Orders.Loading() || a.Accounts.Loading(),
		Store:     s.StoreName,
		Currency:  s.Currency,
		Products:  len(a.Products.Products()),
		Orders:    len(a.Orders.All()),
		CartItems: a.Cart.Count(),
		CartTotal: a.Settings.FormatPrice(a.Cart.Total()),
		Pending:   len(a.Outbox.Pending()),
		Admin:     a.Admin.Authenticated(),
	}
	if u, ok := a.Accounts.User(); ok {
		st.User = u.Email
		st.History = a.Accounts.Orders()
	}
	return st
}
