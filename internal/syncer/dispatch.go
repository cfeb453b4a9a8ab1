package syncer

import (
	"context"
	"encoding/json"

	"github.com/ariefcatur/go-storefront/internal/accounts"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/remote"
	"github.com/ariefcatur/go-storefront/internal/settings"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

// Writer is the mutating half of the remote client.
type Writer interface {
	AddProduct(ctx context.Context, p catalog.Product) (remote.ProductResult, error)
	UpdateProduct(ctx context.Context, p catalog.Product) (remote.ProductResult, error)
	DeleteProduct(ctx context.Context, id string) (remote.Result, error)
	CleanupProducts(ctx context.Context) (remote.Result, error)
	CreateOrder(ctx context.Context, o orders.Order) (remote.OrderResult, error)
	UpdateOrder(ctx context.Context, o orders.Order) (remote.OrderResult, error)
	SaveSettings(ctx context.Context, s settings.Settings) (remote.SettingsResult, error)
	SaveUser(ctx context.Context, rec accounts.Record) (remote.UserResult, error)
}

// RemoteDispatcher sends outbox ops through a Writer.
type RemoteDispatcher struct {
	W Writer
}

func (d RemoteDispatcher) Dispatch(ctx context.Context, op Op) error {
	switch op.Kind {
	case KindProductAdd, KindProductUpdate:
		var p catalog.Product
		if err := decode(op, &p); err != nil {
			return err
		}
		if op.Kind == KindProductAdd {
			res, err := d.W.AddProduct(ctx, p)
			return check(res.Result, err, "/products")
		}
		res, err := d.W.UpdateProduct(ctx, p)
		return check(res.Result, err, "/products/"+p.ID)
	case KindProductDelete:
		res, err := d.W.DeleteProduct(ctx, op.Key)
		return check(res, err, "/products/"+op.Key)
	case KindProductsCleanup:
		res, err := d.W.CleanupProducts(ctx)
		return check(res, err, "/products/cleanup")
	case KindOrderCreate, KindOrderUpdate:
		var o orders.Order
		if err := decode(op, &o); err != nil {
			return err
		}
		if op.Kind == KindOrderCreate {
			res, err := d.W.CreateOrder(ctx, o)
			return check(res.Result, err, "/orders")
		}
		res, err := d.W.UpdateOrder(ctx, o)
		return check(res.Result, err, "/orders/"+o.ID)
	case KindSettingsSave:
		var s settings.Settings
		if err := decode(op, &s); err != nil {
			return err
		}
		res, err := d.W.SaveSettings(ctx, s)
		return check(res.Result, err, "/settings")
	case KindUserSave:
		var rec accounts.Record
		if err := decode(op, &rec); err != nil {
			return err
		}
		res, err := d.W.SaveUser(ctx, rec)
		return check(res.Result, err, "/users")
	}
	return storeerr.InvalidInput("outbox: unknown op kind %q", op.Kind)
}

func decode(op Op, v any) error {
	if err := json.Unmarshal(op.Payload, v); err != nil {
		return storeerr.InvalidInput("outbox: decode %s payload: %v", op.Kind, err)
	}
	return nil
}

func check(res remote.Result, err error, endpoint string) error {
	if err != nil {
		return err
	}
	return res.Err(endpoint)
}
