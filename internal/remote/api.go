package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/accounts"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/settings"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

// Result is the bare {success, error, message} envelope every route returns.
// A call can succeed at the HTTP level and still carry Success=false.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Err turns a 2xx answer with success=false into a REQUEST_REJECTED error.
func (r Result) Err(endpoint string) error {
	if r.Success {
		return nil
	}
	msg := r.Error
	if msg == "" {
		msg = r.Message
	}
	if msg == "" {
		msg = "store reported failure"
	}
	return storeerr.RequestRejected(endpoint, http.StatusOK, msg)
}

type ProductList struct {
	Result
	Products []catalog.Product `json:"products"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
	HasMore  bool              `json:"hasMore"`
}

type ProductResult struct {
	Result
	Product catalog.Product `json:"product"`
}

type OrderList struct {
	Result
	Orders []orders.Order `json:"orders"`
}

type OrderResult struct {
	Result
	Order orders.Order `json:"order"`
}

// SettingsResult keeps the settings raw; callers normalize it with
// settings.ParsePatch.
type SettingsResult struct {
	Result
	Settings json.RawMessage `json:"settings"`
}

// Empty reports whether the store has no settings saved yet.
func (r SettingsResult) Empty() bool {
	s := bytes.TrimSpace(r.Settings)
	return len(s) == 0 || bytes.Equal(s, []byte("null")) || bytes.Equal(s, []byte("{}"))
}

// UserResult keeps the user raw; callers normalize it with accounts.ParseRecord.
type UserResult struct {
	Result
	User json.RawMessage `json:"user"`
}

// Found reports whether the lookup returned a record.
func (r UserResult) Found() bool {
	s := bytes.TrimSpace(r.User)
	return len(s) > 0 && !bytes.Equal(s, []byte("null"))
}

type UserList struct {
	Result
	Users []json.RawMessage `json:"users"`
}

type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (c *Client) ListProducts(ctx context.Context, includeImages bool) (ProductList, error) {
	endpoint := "/products"
	if includeImages {
		endpoint += "?includeImages=true"
	}
	var out ProductList
	err := c.Call(ctx, http.MethodGet, endpoint, nil, &out)
	return out, err
}

func (c *Client) AddProduct(ctx context.Context, p catalog.Product) (ProductResult, error) {
	var out ProductResult
	err := c.Call(ctx, http.MethodPost, "/products", p, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, p catalog.Product) (ProductResult, error) {
	var out ProductResult
	err := c.Call(ctx, http.MethodPut, "/products/"+escape(p.ID), p, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id string) (Result, error) {
	var out Result
	err := c.Call(ctx, http.MethodDelete, "/products/"+escape(id), nil, &out)
	return out, err
}

// CleanupProducts deletes every product on the server.
func (c *Client) CleanupProducts(ctx context.Context) (Result, error) {
	var out Result
	err := c.Call(ctx, http.MethodPost, "/products/cleanup", nil, &out)
	return out, err
}

func (c *Client) ListOrders(ctx context.Context) (OrderList, error) {
	var out OrderList
	err := c.Call(ctx, http.MethodGet, "/orders", nil, &out)
	return out, err
}

func (c *Client) CreateOrder(ctx context.Context, o orders.Order) (OrderResult, error) {
	var out OrderResult
	err := c.Call(ctx, http.MethodPost, "/orders", o, &out)
	return out, err
}

func (c *Client) UpdateOrder(ctx context.Context, o orders.Order) (OrderResult, error) {
	var out OrderResult
	err := c.Call(ctx, http.MethodPut, "/orders/"+escape(o.ID), o, &out)
	return out, err
}

func (c *Client) GetSettings(ctx context.Context) (SettingsResult, error) {
	var out SettingsResult
	err := c.Call(ctx, http.MethodGet, "/settings", nil, &out)
	return out, err
}

func (c *Client) SaveSettings(ctx context.Context, s settings.Settings) (SettingsResult, error) {
	var out SettingsResult
	err := c.Call(ctx, http.MethodPost, "/settings", s, &out)
	return out, err
}

func (c *Client) GetUser(ctx context.Context, email string) (UserResult, error) {
	var out UserResult
	err := c.Call(ctx, http.MethodGet, "/users/"+escape(email), nil, &out)
	return out, err
}

func (c *Client) SaveUser(ctx context.Context, rec accounts.Record) (UserResult, error) {
	var out UserResult
	err := c.Call(ctx, http.MethodPost, "/users", rec, &out)
	return out, err
}

// Authenticate asks the store to check a password. The user comes back
// without its hash, or null when the email is unknown.
func (c *Client) Authenticate(ctx context.Context, email, password string) (UserResult, error) {
	var out UserResult
	body := map[string]string{"email": email, "password": password}
	err := c.Call(ctx, http.MethodPost, "/users/login", body, &out)
	return out, err
}

func (c *Client) ListUsers(ctx context.Context) (UserList, error) {
	var out UserList
	err := c.Call(ctx, http.MethodGet, "/users", nil, &out)
	return out, err
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.Call(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}
