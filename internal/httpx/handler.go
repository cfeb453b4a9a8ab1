package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront/internal/events"
	"github.com/ariefcatur/go-storefront/internal/kvstore"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/payment"
)

// batas body; gambar produk ikut inline sebagai base64
const maxBody = 20 << 20

// Publisher is satisfied by the kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) bool
}

// StoreHandler serves the flat document store the storefront client syncs
// against.
type StoreHandler struct {
	KV            kvstore.Store
	Events        Publisher // optional
	Notifications *notify.Service
	Paytm         payment.Paytm
	Service       string
	Log           *log.Logger

	now func() time.Time
}

func (h *StoreHandler) Register(r chi.Router) {
	if h.Log == nil {
		h.Log = log.New(io.Discard, "", 0)
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.Notifications == nil {
		h.Notifications = notify.NewService(h.KV, h.Log)
	}

	r.Get("/health", h.health)

	r.Get("/products", h.listProducts)
	r.Post("/products", h.addProduct)
	r.Post("/products/cleanup", h.cleanupProducts)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)

	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Put("/orders/{id}", h.updateOrder)

	r.Get("/settings", h.getSettings)
	r.Post("/settings", h.saveSettings)

	r.Get("/users", h.listUsers)
	r.Get("/users/{email}", h.getUser)
	r.Post("/users", h.saveUser)
	r.Post("/users/login", h.login)

	r.Get("/notifications", h.listNotifications)
	r.Put("/notifications/{id}/read", h.markNotificationRead)

	r.Post("/paytm/initiate", h.initiatePayment)
	r.Post("/paytm/callback", h.paymentCallback)
	r.Post("/paytm/verify", h.verifyPayment)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *StoreHandler) fail(w http.ResponseWriter, code int, what string, err error) {
	if code >= http.StatusInternalServerError {
		h.Log.Printf("%s: %v", what, err)
	}
	writeJSON(w, code, map[string]any{"success": false, "error": err.Error()})
}

func reject(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		reject(w, "invalid json")
		return false
	}
	return true
}

func timeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

// publish is best-effort. Failures are logged, never returned.
func (h *StoreHandler) publish(r *http.Request, eventType, entityID string, payload any) {
	if h.Events == nil {
		return
	}
	env, err := events.New(eventType, h.Service, entityID, payload)
	if err != nil {
		h.Log.Printf("publish %s: %v", eventType, err)
		return
	}
	env.TraceID = middleware.GetReqID(r.Context())
	b, err := json.Marshal(env)
	if err != nil {
		h.Log.Printf("publish %s: %v", eventType, err)
		return
	}
	h.Events.Publish(events.PartitionKey(entityID), b,
		kafkago.Header{Key: events.HeaderEventType, Value: []byte(eventType)},
		kafkago.Header{Key: events.HeaderEventVersion, Value: []byte("1")},
	)
}

func (h *StoreHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r, 2*time.Second)
	defer cancel()
	ts := h.now().UTC().Format(time.RFC3339)
	if err := h.KV.Ping(ctx); err != nil {
		h.Log.Printf("health: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "timestamp": ts})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": ts})
}

// values decodes every entry under prefix, skipping rows that are not JSON.
func (h *StoreHandler) values(ctx context.Context, prefix string) ([]json.RawMessage, error) {
	entries, err := h.KV.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		if !json.Valid(e.Value) {
			h.Log.Printf("skip %s: not json", e.Key)
			continue
		}
		out = append(out, json.RawMessage(e.Value))
	}
	return out, nil
}
