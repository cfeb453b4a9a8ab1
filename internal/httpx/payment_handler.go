package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/kvstore"
	"github.com/ariefcatur/go-storefront/internal/payment"
)

type initiatePaymentReq struct {
	OrderID      string           `json:"orderId"`
	Amount       float64          `json:"amount"`
	CustomerInfo payment.Customer `json:"customerInfo"`
}

func (h *StoreHandler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var req initiatePaymentReq
	if !decode(w, r, &req) {
		return
	}
	in, err := h.Paytm.Initiate(req.OrderID, req.Amount, req.CustomerInfo)
	if err != nil {
		reject(w, err.Error())
		return
	}
	h.Log.Printf("paytm: initiated order=%s url=%s", req.OrderID, in.URL)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"paytmUrl":    in.URL,
		"paytmParams": in.Params,
		"orderId":     req.OrderID,
	})
}

func (h *StoreHandler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !decode(w, r, &body) {
		return
	}
	cb, err := h.Paytm.ParseCallback(payment.Stringify(body))
	if err != nil {
		h.Log.Printf("paytm: callback rejected: %v", err)
		reject(w, "Checksum verification failed")
		return
	}

	if cb.Succeeded() {
		rec, err := json.Marshal(cb.Record(h.now()))
		if err != nil {
			h.fail(w, http.StatusInternalServerError, "encode payment", err)
			return
		}
		ctx, cancel := timeout(r, 3*time.Second)
		defer cancel()
		if err := h.KV.Set(ctx, kvstore.PaymentKey(cb.OrderID), rec); err != nil {
			h.fail(w, http.StatusInternalServerError, "save payment", err)
			return
		}
		h.Log.Printf("paytm: payment successful order=%s", cb.OrderID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       cb.Succeeded(),
		"orderId":       cb.OrderID,
		"transactionId": cb.TransactionID,
		"amount":        cb.Amount,
		"status":        cb.Status,
		"message":       cb.Message,
	})
}

func (h *StoreHandler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"orderId"`
	}
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := timeout(r, 3*time.Second)
	defer cancel()
	raw, ok, err := h.KV.Get(ctx, kvstore.PaymentKey(req.OrderID))
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "verify payment", err)
		return
	}
	var rec payment.Record
	if !ok || json.Unmarshal(raw, &rec) != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Payment not found", "status": "PENDING"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payment": rec, "status": rec.Status})
}
