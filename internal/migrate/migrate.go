// Package migrate pushes data that only ever lived in the local cache up to
// the remote store, once per installation.
package migrate

import (
	"context"
	"fmt"
	"log"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/localcache"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/remote"
	"github.com/ariefcatur/go-storefront/internal/settings"
)

type Remote interface {
	ListProducts(ctx context.Context, includeImages bool) (remote.ProductList, error)
	ListOrders(ctx context.Context) (remote.OrderList, error)
	GetSettings(ctx context.Context) (remote.SettingsResult, error)
	AddProduct(ctx context.Context, p catalog.Product) (remote.ProductResult, error)
	CreateOrder(ctx context.Context, o orders.Order) (remote.OrderResult, error)
	SaveSettings(ctx context.Context, s settings.Settings) (remote.SettingsResult, error)
}

type Report struct {
	AlreadyDone bool
	Products    int
	Orders      int
	Settings    bool
	// Skipped counts cached entries the remote already had.
	Skipped int
}

// Run is a no-op once the migrated flag is set. Otherwise it uploads legacy
// products, the global order list and customised settings, and sets the flag
// only after every upload succeeded. Entries the remote already holds are
// left alone: the remote copy may be newer than the cached one.
func Run(ctx context.Context, c localcache.Cache, r Remote, l *log.Logger) (Report, error) {
	if l == nil {
		l = log.Default()
	}
	var rep Report
	flag, ok, err := c.Get(localcache.KeyMigrated)
	if err != nil {
		return rep, err
	}
	if ok && flag == "true" {
		rep.AlreadyDone = true
		return rep, nil
	}

	products := legacyProducts(c, l)
	allOrders := legacyOrders(c, l)
	custom, hasCustom := customSettings(c, l)

	known, err := remoteState(ctx, r, len(products) > 0, len(allOrders) > 0, hasCustom)
	if err != nil {
		return rep, err
	}

	for _, p := range products {
		if known.products[p.ID] {
			rep.Skipped++
			continue
		}
		res, err := r.AddProduct(ctx, p)
		if err == nil {
			err = res.Err("/products")
		}
		if err != nil {
			return rep, fmt.Errorf("migrate product %s: %w", p.ID, err)
		}
		rep.Products++
	}
	for _, o := range allOrders {
		if known.orders[o.ID] {
			rep.Skipped++
			continue
		}
		res, err := r.CreateOrder(ctx, o)
		if err == nil {
			err = res.Err("/orders")
		}
		if err != nil {
			return rep, fmt.Errorf("migrate order %s: %w", o.ID, err)
		}
		rep.Orders++
	}
	if hasCustom && known.settings {
		rep.Skipped++
	} else if hasCustom {
		res, err := r.SaveSettings(ctx, custom)
		if err == nil {
			err = res.Err("/settings")
		}
		if err != nil {
			return rep, fmt.Errorf("migrate settings: %w", err)
		}
		rep.Settings = true
	}

	if err := c.Set(localcache.KeyMigrated, "true"); err != nil {
		return rep, err
	}
	l.Printf("migrate: done (products=%d orders=%d settings=%t skipped=%d)", rep.Products, rep.Orders, rep.Settings, rep.Skipped)
	return rep, nil
}

type remoteIndex struct {
	products map[string]bool
	orders   map[string]bool
	settings bool
}

// remoteState reads only what the pending uploads need to be checked against.
func remoteState(ctx context.Context, r Remote, products, allOrders, custom bool) (remoteIndex, error) {
	idx := remoteIndex{products: map[string]bool{}, orders: map[string]bool{}}
	if products {
		res, err := r.ListProducts(ctx, false)
		if err == nil {
			err = res.Err("/products")
		}
		if err != nil {
			return idx, fmt.Errorf("migrate: list products: %w", err)
		}
		for _, p := range res.Products {
			idx.products[p.ID] = true
		}
	}
	if allOrders {
		res, err := r.ListOrders(ctx)
		if err == nil {
			err = res.Err("/orders")
		}
		if err != nil {
			return idx, fmt.Errorf("migrate: list orders: %w", err)
		}
		for _, o := range res.Orders {
			idx.orders[o.ID] = true
		}
	}
	if custom {
		res, err := r.GetSettings(ctx)
		if err == nil {
			err = res.Err("/settings")
		}
		if err != nil {
			return idx, fmt.Errorf("migrate: read settings: %w", err)
		}
		idx.settings = !res.Empty()
	}
	return idx, nil
}

func legacyProducts(c localcache.Cache, l *log.Logger) []catalog.Product {
	var ps []catalog.Product
	if _, err := localcache.GetJSON(c, localcache.KeyLegacyProducts, &ps); err != nil {
		l.Printf("migrate: skip legacy products: %v", err)
		return nil
	}
	return ps
}

func legacyOrders(c localcache.Cache, l *log.Logger) []orders.Order {
	var list []orders.Order
	if _, err := localcache.GetJSON(c, localcache.KeyAllOrders, &list); err != nil {
		l.Printf("migrate: skip legacy orders: %v", err)
		return nil
	}
	return list
}

// customSettings reports cached settings only when the store name was changed.
func customSettings(c localcache.Cache, l *log.Logger) (settings.Settings, bool) {
	raw, ok, err := c.Get(localcache.KeySettings)
	if err != nil || !ok {
		return settings.Settings{}, false
	}
	p, _, err := settings.ParsePatch([]byte(raw))
	if err != nil {
		l.Printf("migrate: skip cached settings: %v", err)
		return settings.Settings{}, false
	}
	s := settings.Restore(p)
	return s, s.StoreName != settings.DefaultStoreName
}
