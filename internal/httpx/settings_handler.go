package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/kvstore"
	"github.com/ariefcatur/go-storefront/internal/settings"
)

func (h *StoreHandler) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r, 3*time.Second)
	defer cancel()
	raw, ok, err := h.KV.Get(ctx, kvstore.KeySettings)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "get settings", err)
		return
	}
	if !ok || !json.Valid(raw) {
		raw = []byte("{}")
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": json.RawMessage(raw)})
}

// saveSettings stores the document as sent. It only has to be a settings
// shaped object; unknown keys are kept.
func (h *StoreHandler) saveSettings(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decode(w, r, &raw) {
		return
	}
	_, unknown, err := settings.ParsePatch(raw)
	if err != nil {
		reject(w, err.Error())
		return
	}
	if len(unknown) > 0 {
		h.Log.Printf("settings: keeping unknown keys %v", unknown)
	}
	ctx, cancel := timeout(r, 3*time.Second)
	defer cancel()
	if err := h.KV.Set(ctx, kvstore.KeySettings, raw); err != nil {
		h.fail(w, http.StatusInternalServerError, "save settings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": raw})
}
