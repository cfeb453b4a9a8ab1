package syncer

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/localcache"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

// CartItem is one product+size row. Image stays in memory only.
type CartItem struct {
	ProductID string  `json:"productId"`
	Brand     string  `json:"brand"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"-"`
}

type Cart struct {
	mu    sync.RWMutex
	cache localcache.Cache
	log   *log.Logger
	items []CartItem
}

func NewCart(c localcache.Cache, l *log.Logger) *Cart {
	if l == nil {
		l = log.Default()
	}
	return &Cart{cache: c, log: l, items: []CartItem{}}
}

// Restore loads the saved cart and returns how many rows survived parsing.
func (c *Cart) Restore() int {
	raw, ok, err := c.cache.Get(localcache.KeyCart)
	if err != nil || !ok {
		return 0
	}
	items, dropped, err := ParseCart([]byte(raw))
	if err != nil {
		c.log.Printf("cart: saved cart unreadable: %v", err)
		return 0
	}
	if dropped > 0 {
		c.log.Printf("cart: dropped %d invalid rows", dropped)
	}
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return len(items)
}

type legacyCartItem struct {
	Product struct {
		ID    string  `json:"id"`
		Brand string  `json:"brand"`
		Title string  `json:"title"`
		Price float64 `json:"price"`
		Image string  `json:"image"`
	} `json:"product"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// ParseCart accepts both the light row format and the older one that embeds
// the whole product. Rows that fit neither, or carry bad numbers, are dropped.
func ParseCart(raw []byte) ([]CartItem, int, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, 0, storeerr.InvalidInput("cart is not a list: %v", err)
	}
	out := make([]CartItem, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		it, ok := parseCartRow(row)
		if !ok {
			dropped++
			continue
		}
		out = append(out, it)
	}
	return out, dropped, nil
}

func parseCartRow(row json.RawMessage) (CartItem, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(row, &fields); err != nil {
		return CartItem{}, false
	}
	var it CartItem
	if p, ok := fields["product"]; ok && bytes.HasPrefix(bytes.TrimSpace(p), []byte("{")) {
		var l legacyCartItem
		if err := json.Unmarshal(row, &l); err != nil {
			return CartItem{}, false
		}
		it = CartItem{
			ProductID: l.Product.ID,
			Brand:     l.Product.Brand,
			Title:     l.Product.Title,
			Price:     l.Product.Price,
			Image:     l.Product.Image,
			Size:      l.Size,
			Quantity:  l.Quantity,
		}
	} else if err := json.Unmarshal(row, &it); err != nil {
		return CartItem{}, false
	}
	if strings.TrimSpace(it.ProductID) == "" || it.Quantity <= 0 || it.Price < 0 {
		return CartItem{}, false
	}
	return it, true
}

// Add puts qty units of p in the given size, merging with an existing row.
func (c *Cart) Add(p catalog.Product, size string, qty int) {
	if qty < 1 {
		qty = 1
	}
	c.mu.Lock()
	if i := c.index(p.ID, size); i >= 0 {
		c.items[i].Quantity += qty
	} else {
		c.items = append(c.items, CartItem{
			ProductID: p.ID,
			Brand:     p.Brand,
			Title:     p.Title,
			Price:     p.Price,
			Size:      size,
			Quantity:  qty,
			Image:     p.Image,
		})
	}
	c.mu.Unlock()
	c.persist()
}

func (c *Cart) Remove(productID, size string) {
	c.mu.Lock()
	if i := c.index(productID, size); i >= 0 {
		c.items = append(c.items[:i:i], c.items[i+1:]...)
	}
	c.mu.Unlock()
	c.persist()
}

// UpdateQuantity sets the quantity of a row. Zero or less removes it.
func (c *Cart) UpdateQuantity(productID, size string, qty int) {
	if qty <= 0 {
		c.Remove(productID, size)
		return
	}
	c.mu.Lock()
	if i := c.index(productID, size); i >= 0 {
		c.items[i].Quantity = qty
	}
	c.mu.Unlock()
	c.persist()
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.items = []CartItem{}
	c.mu.Unlock()
	c.persist()
}

func (c *Cart) Items() []CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CartItem{}, c.items...)
}

// Count is the number of units, not rows.
func (c *Cart) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) Total() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var t float64
	for _, it := range c.items {
		t += it.Price * float64(it.Quantity)
	}
	return t
}

// LineItems snapshots the cart for checkout.
func (c *Cart) LineItems() []orders.LineItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]orders.LineItem, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, orders.LineItem{
			ProductID: it.ProductID,
			Title:     it.Title,
			Brand:     it.Brand,
			Image:     it.Image,
			Size:      it.Size,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	return out
}

func (c *Cart) index(productID, size string) int {
	for i, it := range c.items {
		if it.ProductID == productID && it.Size == size {
			return i
		}
	}
	return -1
}

func (c *Cart) persist() {
	items := c.Items()
	if err := localcache.SetJSON(c.cache, localcache.KeyCart, items); err != nil {
		c.log.Printf("cart: cache write: %v", err)
	}
}
