package settings

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/currency"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

// Patch is a partial settings update. Nil fields are left alone.
type Patch struct {
	StoreName    *string
	StoreEmail   *string
	StorePhone   *string
	StoreAddress *string
	StoreCity    *string
	StoreState   *string
	StorePincode *string

	Currency       *string
	CurrencySymbol *string

	TaxRate               *float64
	ShippingFee           *float64
	FreeShippingThreshold *float64
	LowStockThreshold     *int

	Notifications *NotificationsPatch

	Categories *[]string
	Sizes      *[]string
	Colors     *[]string

	PriceRangeMin *float64
	PriceRangeMax *float64
}

type NotificationsPatch struct {
	NewOrders  *bool
	LowStock   *bool
	DailySales *bool
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// ParsePatch normalizes a loosely typed settings object. Numbers may arrive
// as strings, lists as comma separated strings and booleans as "true"/"false".
// A field of the wrong kind fails the whole parse. Keys it does not know are
// returned so callers can log them.
func ParsePatch(raw []byte) (Patch, []string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Patch{}, nil, storeerr.InvalidInput("settings payload is not an object: %v", err)
	}

	var p Patch
	var unknown []string
	for key, v := range fields {
		if isNull(v) {
			continue
		}
		var err error
		switch key {
		case "storeName":
			p.StoreName, err = asString(key, v)
		case "storeEmail":
			p.StoreEmail, err = asString(key, v)
		case "storePhone":
			p.StorePhone, err = asString(key, v)
		case "storeAddress":
			p.StoreAddress, err = asString(key, v)
		case "storeCity":
			p.StoreCity, err = asString(key, v)
		case "storeState":
			p.StoreState, err = asString(key, v)
		case "storePincode":
			p.StorePincode, err = asString(key, v)
		case "currency":
			p.Currency, err = asCurrency(key, v)
		case "currencySymbol":
			p.CurrencySymbol, err = asString(key, v)
		case "taxRate":
			p.TaxRate, err = asNumber(key, v, 0, 100)
		case "shippingFee":
			p.ShippingFee, err = asNumber(key, v, 0, -1)
		case "freeShippingThreshold":
			p.FreeShippingThreshold, err = asNumber(key, v, 0, -1)
		case "lowStockThreshold":
			var f *float64
			if f, err = asNumber(key, v, 0, -1); err == nil {
				n := int(*f)
				p.LowStockThreshold = &n
			}
		case "notifications":
			p.Notifications, err = asNotifications(v)
		case "categories":
			p.Categories, err = asList(key, v)
		case "sizes":
			p.Sizes, err = asList(key, v)
		case "colors":
			p.Colors, err = asList(key, v)
		case "priceRangeMin":
			p.PriceRangeMin, err = asNumber(key, v, 0, -1)
		case "priceRangeMax":
			p.PriceRangeMax, err = asNumber(key, v, 0, -1)
		default:
			unknown = append(unknown, key)
		}
		if err != nil {
			return Patch{}, nil, err
		}
	}
	sort.Strings(unknown)
	return p, unknown, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func asString(key string, v json.RawMessage) (*string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, storeerr.InvalidInput("%s must be a string", key)
	}
	return &s, nil
}

// asNumber accepts a JSON number or a numeric string. max < 0 means unbounded.
func asNumber(key string, v json.RawMessage, min, max float64) (*float64, error) {
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		var s string
		if json.Unmarshal(v, &s) != nil {
			return nil, storeerr.InvalidInput("%s must be a number", key)
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return nil, storeerr.InvalidInput("%s must be a number, got %q", key, s)
		}
	}
	if f < min || (max >= 0 && f > max) {
		return nil, storeerr.InvalidInput("%s out of range: %v", key, f)
	}
	return &f, nil
}

func asBool(key string, v json.RawMessage) (*bool, error) {
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		var s string
		if json.Unmarshal(v, &s) != nil {
			return nil, storeerr.InvalidInput("%s must be a boolean", key)
		}
		if b, err = strconv.ParseBool(s); err != nil {
			return nil, storeerr.InvalidInput("%s must be a boolean, got %q", key, s)
		}
	}
	return &b, nil
}

func asList(key string, v json.RawMessage) (*[]string, error) {
	var list []string
	if err := json.Unmarshal(v, &list); err == nil {
		return &list, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, storeerr.InvalidInput("%s must be a list of strings", key)
	}
	list = []string{}
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			list = append(list, t)
		}
	}
	return &list, nil
}

func asCurrency(key string, v json.RawMessage) (*string, error) {
	s, err := asString(key, v)
	if err != nil {
		return nil, err
	}
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(*s)))
	if err != nil {
		return nil, storeerr.InvalidInput("unknown currency %q", *s)
	}
	code := unit.String()
	return &code, nil
}

func asNotifications(v json.RawMessage) (*NotificationsPatch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(v, &fields); err != nil {
		return nil, storeerr.InvalidInput("notifications must be an object")
	}
	var n NotificationsPatch
	var err error
	for key, raw := range fields {
		switch key {
		case "newOrders":
			n.NewOrders, err = asBool(key, raw)
		case "lowStock":
			n.LowStock, err = asBool(key, raw)
		case "dailySales":
			n.DailySales, err = asBool(key, raw)
		}
		if err != nil {
			return nil, err
		}
	}
	return &n, nil
}

// PatchOf turns a full record into a patch that overwrites every field.
func PatchOf(s Settings) Patch {
	n := s.Notifications
	return Patch{
		StoreName:             &s.StoreName,
		StoreEmail:            &s.StoreEmail,
		StorePhone:            &s.StorePhone,
		StoreAddress:          &s.StoreAddress,
		StoreCity:             &s.StoreCity,
		StoreState:            &s.StoreState,
		StorePincode:          &s.StorePincode,
		Currency:              &s.Currency,
		CurrencySymbol:        &s.CurrencySymbol,
		TaxRate:               &s.TaxRate,
		ShippingFee:           &s.ShippingFee,
		FreeShippingThreshold: &s.FreeShippingThreshold,
		LowStockThreshold:     &s.LowStockThreshold,
		Notifications:         &NotificationsPatch{NewOrders: &n.NewOrders, LowStock: &n.LowStock, DailySales: &n.DailySales},
		Categories:            &s.Categories,
		Sizes:                 &s.Sizes,
		Colors:                &s.Colors,
		PriceRangeMin:         &s.PriceRangeMin,
		PriceRangeMax:         &s.PriceRangeMax,
	}
}
