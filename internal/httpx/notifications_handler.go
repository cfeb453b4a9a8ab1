package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

func (h *StoreHandler) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r, 3*time.Second)
	defer cancel()
	list, err := h.Notifications.List(ctx)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "list notifications", err)
		return
	}
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "notifications": list, "unread": unread})
}

func (h *StoreHandler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r, 3*time.Second)
	defer cancel()
	n, err := h.Notifications.MarkRead(ctx, chi.URLParam(r, "id"))
	switch {
	case storeerr.Is(err, storeerr.CodeNotFound):
		h.fail(w, http.StatusNotFound, "mark read", err)
	case err != nil:
		h.fail(w, http.StatusInternalServerError, "mark read", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "notification": n})
	}
}
