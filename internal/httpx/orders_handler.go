package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/events"
	"github.com/ariefcatur/go-storefront/internal/kvstore"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

func (h *StoreHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r, 5*time.Second)
	defer cancel()
	list, err := h.values(ctx, kvstore.PrefixOrder)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "orders": list})
}

func (h *StoreHandler) saveOrder(w http.ResponseWriter, r *http.Request, o orders.Order) bool {
	ctx, cancel := timeout(r, 5*time.Second)
	defer cancel()
	b, err := json.Marshal(o)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "encode order", err)
		return false
	}
	if err := h.KV.Set(ctx, kvstore.OrderKey(o.ID), b); err != nil {
		h.fail(w, http.StatusInternalServerError, "save order", err)
		return false
	}
	return true
}

func (h *StoreHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var o orders.Order
	if !decode(w, r, &o) {
		return
	}
	if strings.TrimSpace(o.ID) == "" {
		reject(w, "missing order id")
		return
	}
	if !h.saveOrder(w, r, o) {
		return
	}

	p := events.OrderCreatedPayload{
		OrderID:       o.ID,
		UserEmail:     o.UserEmail,
		ItemCount:     o.Summary().ItemCount,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
	}
	if o.CustomerInfo != nil {
		p.CustomerName = o.CustomerInfo.Name
		if p.UserEmail == "" {
			p.UserEmail = o.CustomerInfo.Email
		}
	}
	h.publish(r, events.EventOrderCreated, o.ID, p)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": o})
}

func (h *StoreHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var o orders.Order
	if !decode(w, r, &o) {
		return
	}
	o.ID = chi.URLParam(r, "id")
	if o.Status != "" {
		if _, err := orders.ParseStatus(string(o.Status)); err != nil {
			reject(w, err.Error())
			return
		}
	}
	if !h.saveOrder(w, r, o) {
		return
	}
	h.publish(r, events.EventOrderUpdated, o.ID, events.OrderUpdatedPayload{
		OrderID:        o.ID,
		Status:         string(o.Status),
		TrackingNumber: o.TrackingNumber,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": o})
}
