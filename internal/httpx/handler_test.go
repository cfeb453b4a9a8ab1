package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/events"
	"github.com/ariefcatur/go-storefront/internal/kvstore"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/payment"
)

type recorder struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (r *recorder) Publish(_, value []byte, _ ...kafkago.Header) bool {
	env, err := events.Decode(value)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return true
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.envs))
	for _, e := range r.envs {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	kv  *kvstore.Memory
	pub *recorder
	h   http.Handler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{kv: kvstore.NewMemory(), pub: &recorder{}}
	r := NewRouter()
	sh := &StoreHandler{
		KV:      f.kv,
		Events:  f.pub,
		Service: "storefront-api",
		Paytm:   payment.Paytm{MID: "M1", MerchantKey: "key", Website: "WEBSTAGING", CallbackURL: "http://cb"},
		Log:     log.New(io.Discard, "", 0),
	}
	sh.Register(r)
	f.h = r
	return f
}

func (f fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (f fixture) raw(t *testing.T, method, path string, body any) (int, string) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec.Code, rec.Body.String()
}

func (f fixture) seedProduct(t *testing.T, p catalog.Product) {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, f.kv.Set(context.Background(), kvstore.ProductKey(p.ID), b))
}

func TestNotFoundAndCORS(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Not found", body["error"])
	assert.Equal(t, "/nope", body["path"])

	req := httptest.NewRequest(http.MethodOptions, "/products", nil)
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestListProductsPagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.seedProduct(t, catalog.Product{ID: "old", Title: "Old", Price: 1, CreatedAt: base})
	f.seedProduct(t, catalog.Product{ID: "new", Title: "New", Price: 1, CreatedAt: base.Add(time.Hour), Images: []string{"i1", "i2", "i3"}})
	f.seedProduct(t, catalog.Product{ID: "mid", Title: "Mid", Price: 1, CreatedAt: base.Add(time.Minute)})
	require.NoError(t, f.kv.Set(context.Background(), kvstore.ProductKey("bad"), []byte("{")))

	code, body := f.do(t, http.MethodGet, "/products?limit=2", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["limit"])
	assert.Equal(t, true, body["hasMore"])
	list := body["products"].([]any)
	require.Len(t, list, 2)
	first := list[0].(map[string]any)
	assert.Equal(t, "new", first["id"])
	assert.Equal(t, true, first["hasImages"])
	assert.NotContains(t, first, "images")
	assert.Equal(t, "mid", list[1].(map[string]any)["id"])

	_, body = f.do(t, http.MethodGet, "/products?limit=1&includeImages=true", nil)
	first = body["products"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{"i1", "i2"}, first["images"])
	assert.Equal(t, "i1", first["image"])

	_, body = f.do(t, http.MethodGet, "/products?offset=5", nil)
	assert.Empty(t, body["products"])
	assert.Equal(t, false, body["hasMore"])
	assert.Equal(t, float64(1000), body["limit"])
}

func TestProductMutationsPublish(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/products", map[string]any{"title": "No id"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid product data", body["error"])

	code, _ = f.do(t, http.MethodPost, "/products", "{oops")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodPost, "/products", catalog.Product{ID: "p1", Title: "Tee", Price: 10, TotalStock: 3})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, body = f.do(t, http.MethodPut, "/products/p1", catalog.Product{Title: "Tee v2", Price: 12})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "p1", body["product"].(map[string]any)["id"])

	raw, ok, err := f.kv.Get(context.Background(), kvstore.ProductKey("p1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), "Tee v2")

	code, _ = f.do(t, http.MethodDelete, "/products/p1", nil)
	require.Equal(t, http.StatusOK, code)

	f.seedProduct(t, catalog.Product{ID: "a"})
	f.seedProduct(t, catalog.Product{ID: "b"})
	code, body = f.do(t, http.MethodPost, "/products/cleanup", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Deleted 2 products", body["message"])

	_, body = f.do(t, http.MethodGet, "/products", nil)
	assert.Equal(t, float64(0), body["total"])

	assert.Equal(t, []string{
		events.EventProductUpserted, events.EventProductUpserted,
		events.EventProductDeleted, events.EventProductsCleared,
	}, f.pub.types())
	p, err := events.UnwrapPayload[events.ProductUpsertedPayload](f.pub.envs[0].Payload)
	require.NoError(t, err)
	assert.True(t, p.Created)
	assert.Equal(t, 3, p.TotalStock)
}

func TestOrders(t *testing.T) {
	f := newFixture(t)
	order := map[string]any{
		"id":           "ORD-1",
		"status":       "pending",
		"total":        1180,
		"items":        []any{map[string]any{"productId": "p1", "quantity": 2, "price": 500}},
		"customerInfo": map[string]any{"name": "Asha", "email": "asha@example.com"},
	}
	code, _ := f.do(t, http.MethodPost, "/orders", order)
	require.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodPost, "/orders", map[string]any{"total": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	order["status"] = "shipped"
	order["trackingNumber"] = "TRK1"
	code, _ = f.do(t, http.MethodPut, "/orders/ORD-1", order)
	require.Equal(t, http.StatusOK, code)

	order["status"] = "lost"
	code, _ = f.do(t, http.MethodPut, "/orders/ORD-1", order)
	assert.Equal(t, http.StatusBadRequest, code)

	_, body := f.do(t, http.MethodGet, "/orders", nil)
	list := body["orders"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "shipped", list[0].(map[string]any)["status"])

	require.Equal(t, []string{events.EventOrderCreated, events.EventOrderUpdated}, f.pub.types())
	created, err := events.UnwrapPayload[events.OrderCreatedPayload](f.pub.envs[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, 2, created.ItemCount)
	assert.Equal(t, "asha@example.com", created.UserEmail)
	assert.Equal(t, "Asha", created.CustomerName)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, http.MethodGet, "/settings", nil)
	assert.Equal(t, map[string]any{}, body["settings"])

	code, _ := f.do(t, http.MethodPost, "/settings", map[string]any{"taxRate": "abc"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/settings", map[string]any{"storeName": "Shop", "theme": "dark"})
	require.Equal(t, http.StatusOK, code)

	_, body = f.do(t, http.MethodGet, "/settings", nil)
	s := body["settings"].(map[string]any)
	assert.Equal(t, "Shop", s["storeName"])
	assert.Equal(t, "dark", s["theme"])
}

func TestUsers(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, http.MethodGet, "/users/nobody@example.com", nil)
	assert.Equal(t, true, body["success"])
	assert.Nil(t, body["user"])
	assert.Contains(t, body, "user")

	code, _ := f.do(t, http.MethodPost, "/users", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/users", map[string]any{"email": "Asha@Example.com", "name": "Asha"})
	require.Equal(t, http.StatusOK, code)

	_, body = f.do(t, http.MethodGet, "/users/asha@example.com", nil)
	assert.Equal(t, "Asha", body["user"].(map[string]any)["name"])

	_, body = f.do(t, http.MethodGet, "/users", nil)
	assert.Len(t, body["users"], 1)
}

func TestUsersNeverExposeHash(t *testing.T) {
	f := newFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, kvstore.UserKey("asha@example.com"),
		[]byte(`{"id":"u1","email":"asha@example.com","passwordHash":"`+string(hash)+`","wishlist":["p1"]}`)))
	require.NoError(t, f.kv.Set(ctx, kvstore.UserKey("old@example.com"),
		[]byte(`{"user":{"email":"old@example.com","passwordHash":"`+string(hash)+`"},"addresses":[]}`)))

	for _, path := range []string{"/users", "/users/asha@example.com", "/users/old@example.com"} {
		code, body := f.raw(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, code, path)
		assert.NotContains(t, body, "passwordHash", path)
		assert.NotContains(t, body, string(hash), path)
	}
	_, body := f.do(t, http.MethodGet, "/users/old@example.com", nil)
	nested := body["user"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "old@example.com", nested["email"])

	// a save without a hash keeps the stored one
	code, saved := f.raw(t, http.MethodPost, "/users", map[string]any{"id": "u1", "email": "asha@example.com", "wishlist": []string{"p2"}})
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, saved, "passwordHash")
	stored, _, err := f.kv.Get(ctx, kvstore.UserKey("asha@example.com"))
	require.NoError(t, err)
	assert.Contains(t, string(stored), string(hash))
	assert.Contains(t, string(stored), "p2")
}

func TestUserLogin(t *testing.T) {
	f := newFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.kv.Set(context.Background(), kvstore.UserKey("asha@example.com"),
		[]byte(`{"id":"u1","email":"asha@example.com","passwordHash":"`+string(hash)+`"}`)))

	code, body := f.do(t, http.MethodPost, "/users/login", map[string]string{"email": "Asha@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, body["success"])

	code, raw := f.raw(t, http.MethodPost, "/users/login", map[string]string{"email": "asha@example.com", "password": "old-password"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, raw, `"id":"u1"`)
	assert.NotContains(t, raw, "passwordHash")

	code, body = f.do(t, http.MethodPost, "/users/login", map[string]string{"email": "nobody@example.com", "password": "x"})
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["user"])
}

func TestUpdateWithOmittedImagesKeepsStoredOnes(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, catalog.Product{ID: "p1", Title: "Tee", Price: 10, Image: "img-a", Images: []string{"img-a", "img-b"}})

	code, _ := f.do(t, http.MethodPut, "/products/p1", catalog.Product{Title: "Tee", Price: 12, HasImages: true})
	require.Equal(t, http.StatusOK, code)
	var got catalog.Product
	raw, _, err := f.kv.Get(context.Background(), kvstore.ProductKey("p1"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 12.0, got.Price)
	assert.Equal(t, []string{"img-a", "img-b"}, got.Images)
	assert.Equal(t, "img-a", got.Image)

	code, _ = f.do(t, http.MethodPut, "/products/p1", catalog.Product{Title: "Tee", Price: 12})
	require.Equal(t, http.StatusOK, code)
	raw, _, err = f.kv.Get(context.Background(), kvstore.ProductKey("p1"))
	require.NoError(t, err)
	got = catalog.Product{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Empty(t, got.Images, "no hasImages flag means the images were removed")
}

func TestPaytmFlow(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/paytm/initiate", map[string]any{
		"orderId": "ORD-1", "amount": 1180, "customerInfo": map[string]any{"email": "a@b.c"},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, payment.StagingURL, body["paytmUrl"])
	assert.NotEmpty(t, body["paytmParams"].(map[string]any)[payment.ChecksumField])

	code, _ = f.do(t, http.MethodPost, "/paytm/initiate", map[string]any{"orderId": "ORD-1"})
	assert.Equal(t, http.StatusBadRequest, code)

	_, body = f.do(t, http.MethodPost, "/paytm/verify", map[string]any{"orderId": "ORD-1"})
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "PENDING", body["status"])

	params := map[string]string{"ORDERID": "ORD-1", "TXNID": "T1", "TXNAMOUNT": "1180.00", "STATUS": payment.StatusSuccess, "RESPMSG": "ok"}
	params[payment.ChecksumField] = payment.Checksum(params, "key")

	tampered := map[string]string{}
	for k, v := range params {
		tampered[k] = v
	}
	tampered["TXNAMOUNT"] = "1.00"
	code, body = f.do(t, http.MethodPost, "/paytm/callback", tampered)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Checksum verification failed", body["error"])

	code, body = f.do(t, http.MethodPost, "/paytm/callback", params)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "T1", body["transactionId"])

	_, body = f.do(t, http.MethodPost, "/paytm/verify", map[string]any{"orderId": "ORD-1"})
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "SUCCESS", body["status"])
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	env, err := events.New(events.EventOrderCreated, "test", "ORD-1", events.OrderCreatedPayload{OrderID: "ORD-1", ItemCount: 1, Total: 10})
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, notify.NewService(f.kv, nil).Handle(ctx, kafkago.Message{Value: b}))

	_, body := f.do(t, http.MethodGet, "/notifications", nil)
	assert.Len(t, body["notifications"], 1)
	assert.Equal(t, float64(1), body["unread"])

	code, _ := f.do(t, http.MethodPut, "/notifications/"+env.EventID+"/read", nil)
	require.Equal(t, http.StatusOK, code)
	_, body = f.do(t, http.MethodGet, "/notifications", nil)
	assert.Equal(t, float64(0), body["unread"])

	code, _ = f.do(t, http.MethodPut, "/notifications/missing/read", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
