package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/events"
	"github.com/ariefcatur/go-storefront/internal/kvstore"
)

const (
	defaultProductLimit = 1000
	// listing detail cukup dua gambar pertama
	listedImages = 2
)

type productPage struct {
	Success  bool  `json:"success"`
	Products []any `json:"products"`
	Total    int   `json:"total"`
	Limit    int   `json:"limit"`
	Offset   int   `json:"offset"`
	HasMore  bool  `json:"hasMore"`
}

func queryInt(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return def
	}
	return i
}

func (h *StoreHandler) loadProducts(r *http.Request) ([]catalog.Product, error) {
	ctx, cancel := timeout(r, 10*time.Second)
	defer cancel()
	entries, err := h.KV.GetByPrefix(ctx, kvstore.PrefixProduct)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Product, 0, len(entries))
	for _, e := range entries {
		var p catalog.Product
		if err := json.Unmarshal(e.Value, &p); err != nil {
			h.Log.Printf("skip %s: %v", e.Key, err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (h *StoreHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultProductLimit)
	offset := queryInt(r, "offset", 0)
	includeImages := r.URL.Query().Get("includeImages") == "true"

	all, err := h.loadProducts(r)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "list products", err)
		return
	}
	// terbaru dulu
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := min(offset, len(all))
	end := min(start+limit, len(all))
	page := make([]any, 0, end-start)
	for _, p := range all[start:end] {
		if !includeImages {
			page = append(page, p.Meta())
			continue
		}
		if len(p.Images) > listedImages {
			p.Images = p.Images[:listedImages]
		}
		if p.Image == "" && len(p.Images) > 0 {
			p.Image = p.Images[0]
		}
		page = append(page, p)
	}
	h.Log.Printf("products: total=%d returned=%d images=%v", len(all), len(page), includeImages)

	writeJSON(w, http.StatusOK, productPage{
		Success:  true,
		Products: page,
		Total:    len(all),
		Limit:    limit,
		Offset:   offset,
		HasMore:  offset+limit < len(all),
	})
}

func (h *StoreHandler) putProduct(w http.ResponseWriter, r *http.Request, p catalog.Product, created bool) {
	ctx, cancel := timeout(r, 5*time.Second)
	defer cancel()
	b, err := json.Marshal(p)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "encode product", err)
		return
	}
	if err := h.KV.Set(ctx, kvstore.ProductKey(p.ID), b); err != nil {
		h.fail(w, http.StatusInternalServerError, "save product", err)
		return
	}
	h.publish(r, events.EventProductUpserted, p.ID, events.ProductUpsertedPayload{
		ProductID:  p.ID,
		Title:      p.Title,
		Price:      p.Price,
		TotalStock: p.TotalStock,
		Created:    created,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "product": p})
}

func (h *StoreHandler) addProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if !decode(w, r, &p) {
		return
	}
	if strings.TrimSpace(p.ID) == "" {
		reject(w, "Invalid product data")
		return
	}
	h.putProduct(w, r, p, true)
}

func (h *StoreHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if !decode(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	if p.ImagesOmitted() {
		ctx, cancel := timeout(r, 5*time.Second)
		raw, ok, err := h.KV.Get(ctx, kvstore.ProductKey(p.ID))
		cancel()
		if err != nil {
			h.fail(w, http.StatusInternalServerError, "load product", err)
			return
		}
		var prev catalog.Product
		if ok && json.Unmarshal(raw, &prev) == nil {
			p = p.KeepImages(prev)
		}
	}
	h.putProduct(w, r, p, false)
}

func (h *StoreHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := timeout(r, 5*time.Second)
	defer cancel()
	if err := h.KV.Del(ctx, kvstore.ProductKey(id)); err != nil {
		h.fail(w, http.StatusInternalServerError, "delete product", err)
		return
	}
	h.publish(r, events.EventProductDeleted, id, events.ProductDeletedPayload{ProductID: id})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *StoreHandler) cleanupProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r, 10*time.Second)
	defer cancel()
	entries, err := h.KV.GetByPrefix(ctx, kvstore.PrefixProduct)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "cleanup products", err)
		return
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	if err := h.KV.Del(ctx, keys...); err != nil {
		h.fail(w, http.StatusInternalServerError, "cleanup products", err)
		return
	}
	h.publish(r, events.EventProductsCleared, "catalog", events.ProductsClearedPayload{Deleted: len(keys)})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": fmt.Sprintf("Deleted %d products", len(keys))})
}
