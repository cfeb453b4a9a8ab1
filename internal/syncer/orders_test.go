package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/localcache"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

func checkoutInput(email string) CreateOrderInput {
	return CreateOrderInput{
		Items: []orders.LineItem{{
			ProductID: "1", Title: "Tee", Brand: "Urban", Size: "M",
			Quantity: 2, Price: 500, Image: "data:image/png;base64,AAAA",
		}},
		ShippingAddress: orders.ShippingAddress{FirstName: "Alice", Street: "1 Main", City: "Pune"},
		PaymentMethod:   "Cash on Delivery",
		Customer:        &orders.CustomerInfo{Name: "Alice", Email: email},
	}
}

func TestCreateOrderTotals(t *testing.T) {
	k := newKit(t)
	o, err := k.orders.Create(context.Background(), checkoutInput("alice@example.com"))
	require.NoError(t, err)

	assert.Equal(t, 1000.0, o.Subtotal)
	assert.Equal(t, 0.0, o.Shipping)
	assert.Equal(t, 180.0, o.Tax)
	assert.Equal(t, 1180.0, o.Total)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Regexp(t, `^ORD-\d+$`, o.ID)
	assert.Equal(t, "alice@example.com", o.UserEmail)
}

func TestCreateOrderUsesCurrentSettings(t *testing.T) {
	k := newKit(t)
	ctx := context.Background()
	_, err := k.settings.UpdateRaw(ctx, []byte(`{"taxRate":5,"shippingFee":"40","freeShippingThreshold":5000}`))
	require.NoError(t, err)

	o, err := k.orders.Create(ctx, checkoutInput(""))
	require.NoError(t, err)
	assert.Equal(t, 40.0, o.Shipping)
	assert.Equal(t, 50.0, o.Tax)
	assert.Equal(t, o.Subtotal+o.Shipping+o.Tax, o.Total)
}

func TestCreateOrderRejectsBadItems(t *testing.T) {
	k := newKit(t)
	in := checkoutInput("a@b.co")
	in.Items[0].Quantity = 0
	_, err := k.orders.Create(context.Background(), in)
	assert.True(t, storeerr.Is(err, storeerr.CodeInvalidInput))
	assert.Empty(t, k.orders.All())
}

func TestCreateOrderOfflinePersistsProjections(t *testing.T) {
	k := newKit(t)
	k.store.setDown(true)

	o, err := k.orders.Create(context.Background(), checkoutInput("Alice@Example.com"))
	require.NoError(t, err)
	assert.Len(t, k.outbox.Pending(), 1)

	var all []orders.Order
	require.True(t, cached(t, k.cache, localcache.KeyAllOrders, &all))
	require.Len(t, all, 1)
	assert.Equal(t, o.ID, all[0].ID)
	assert.Equal(t, "data:image/png;base64,AAAA", all[0].Items[0].Image, "orders are cached whole")

	var mine []orders.Summary
	require.True(t, cached(t, k.cache, localcache.UserOrdersKey("alice@example.com"), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, o.ID, mine[0].ID)
	assert.Equal(t, 2, mine[0].ItemCount)
}

func TestHistoryMergesCachedSummaries(t *testing.T) {
	k := newKit(t)
	old := orders.Summary{ID: "ORD-1", Date: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Total: 99}
	require.NoError(t, localcache.SetJSON(k.cache, localcache.UserOrdersKey("alice@example.com"), []orders.Summary{old}))

	o, err := k.orders.Create(context.Background(), checkoutInput("alice@example.com"))
	require.NoError(t, err)

	h := k.orders.HistoryFor("ALICE@example.com")
	require.Len(t, h, 2)
	assert.Equal(t, o.ID, h[0].ID)
	assert.Equal(t, "ORD-1", h[1].ID)

	var mine []orders.Summary
	require.True(t, cached(t, k.cache, localcache.UserOrdersKey("alice@example.com"), &mine))
	assert.Len(t, mine, 2, "older history is kept when the cache entry is rewritten")
	assert.Empty(t, k.orders.HistoryFor(""))
}

func TestUpdateStatusAndTracking(t *testing.T) {
	k := newKit(t)
	ctx := context.Background()
	o, _ := k.orders.Create(ctx, checkoutInput("alice@example.com"))

	got, err := k.orders.UpdateStatus(ctx, o.ID, orders.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, got.Status)
	assert.Equal(t, o.Total, got.Total)

	got, err = k.orders.SetTracking(ctx, o.ID, " TRK123 ")
	require.NoError(t, err)
	assert.Equal(t, "TRK123", got.TrackingNumber)

	_, err = k.orders.UpdateStatus(ctx, o.ID, "lost")
	assert.True(t, storeerr.Is(err, storeerr.CodeInvalidInput))
	_, err = k.orders.UpdateStatus(ctx, "ORD-0", orders.StatusDelivered)
	assert.True(t, storeerr.Is(err, storeerr.CodeNotFound))

	assert.Equal(t, []string{"order.create:" + o.ID, "order.update:" + o.ID, "order.update:" + o.ID}, k.store.writes)
	h := k.orders.HistoryFor("alice@example.com")
	assert.Equal(t, orders.StatusShipped, h[0].Status)
}

func TestOrdersLoad(t *testing.T) {
	k := newKit(t)
	k.store.orders = []orders.Order{
		{ID: "ORD-2", UserEmail: "bob@example.com"},
		{ID: "ORD-1", UserEmail: "alice@example.com"},
		{ID: "ORD-1", UserEmail: "dup@example.com"},
	}
	assert.Equal(t, SourceRemote, k.orders.Load(context.Background()))
	assert.False(t, k.orders.Loading())
	assert.Len(t, k.orders.All(), 2)
	assert.Len(t, k.orders.ForUser("bob@example.com"), 1)

	var mine []orders.Summary
	assert.True(t, cached(t, k.cache, localcache.UserOrdersKey("alice@example.com"), &mine))

	k.store.setDown(true)
	again := NewOrders(k.store, k.cache, k.outbox, k.settings, quiet)
	assert.Equal(t, SourceCache, again.Load(context.Background()))
	assert.Len(t, again.All(), 2)
}

func TestOrdersLoadDefaultsWhenNothingAvailable(t *testing.T) {
	k := newKit(t)
	k.store.setDown(true)
	assert.Equal(t, SourceDefault, k.orders.Load(context.Background()))
	assert.False(t, k.orders.Loading())
	assert.Empty(t, k.orders.All())
}

func TestOrderUpdateAfterCacheLoadKeepsImages(t *testing.T) {
	k := newKit(t)
	ctx := context.Background()
	o, err := k.orders.Create(ctx, checkoutInput("alice@example.com"))
	require.NoError(t, err)

	k.store.setDown(true)
	next := newKitWith(t, k.store, k.cache)
	require.Equal(t, SourceCache, next.orders.Load(ctx))
	k.store.setDown(false)

	_, err = next.orders.UpdateStatus(ctx, o.ID, orders.StatusShipped)
	require.NoError(t, err)
	require.Len(t, k.store.orders, 1)
	remote := k.store.orders[0]
	assert.Equal(t, orders.StatusShipped, remote.Status)
	assert.Equal(t, "data:image/png;base64,AAAA", remote.Items[0].Image)
	assert.Equal(t, o.Total, remote.Total)
}
