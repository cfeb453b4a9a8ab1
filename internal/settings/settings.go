// Package settings holds the single store-wide settings record, its defaults
// and the partial-update parser.
package settings

import (
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

type Notifications struct {
	NewOrders  bool `json:"newOrders"`
	LowStock   bool `json:"lowStock"`
	DailySales bool `json:"dailySales"`
}

type Settings struct {
	StoreName    string `json:"storeName"`
	StoreEmail   string `json:"storeEmail"`
	StorePhone   string `json:"storePhone"`
	StoreAddress string `json:"storeAddress"`
	StoreCity    string `json:"storeCity"`
	StoreState   string `json:"storeState"`
	StorePincode string `json:"storePincode"`

	Currency       string `json:"currency"`
	CurrencySymbol string `json:"currencySymbol"`

	TaxRate               float64 `json:"taxRate"`
	ShippingFee           float64 `json:"shippingFee"`
	FreeShippingThreshold float64 `json:"freeShippingThreshold"`
	LowStockThreshold     int     `json:"lowStockThreshold"`

	Notifications Notifications `json:"notifications"`

	Categories []string `json:"categories"`
	Sizes      []string `json:"sizes"`
	Colors     []string `json:"colors"`

	PriceRangeMin float64 `json:"priceRangeMin"`
	PriceRangeMax float64 `json:"priceRangeMax"`
}

const DefaultStoreName = "Urban Wear Retail"

func Defaults() Settings {
	return Settings{
		StoreName:             DefaultStoreName,
		StoreEmail:            "contact@urbanwear.com",
		StorePhone:            "+91 98765 43210",
		StoreAddress:          "123 Fashion Street",
		StoreCity:             "Mumbai",
		StoreState:            "Maharashtra",
		StorePincode:          "400001",
		Currency:              "INR",
		CurrencySymbol:        "₹",
		TaxRate:               18,
		ShippingFee:           50,
		FreeShippingThreshold: 999,
		LowStockThreshold:     10,
		Notifications:         Notifications{NewOrders: true, LowStock: true, DailySales: true},
		Categories:            []string{"T-shirts", "Jeans", "Jackets", "Shoes", "Accessories"},
		Sizes:                 []string{"XS", "S", "M", "L", "XL", "XXL"},
		Colors:                []string{"Black", "White", "Blue", "Red", "Gray", "Navy", "Pink", "Green"},
		PriceRangeMin:         500,
		PriceRangeMax:         10000,
	}
}

var symbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// SymbolFor falls back to the code itself for currencies without a glyph.
func SymbolFor(code string) string {
	if s, ok := symbols[code]; ok {
		return s
	}
	return code
}

func (s Settings) FormatPrice(v float64) string {
	return fmt.Sprintf("%s%.2f", s.CurrencySymbol, v)
}

func (s Settings) Pricing() orders.Pricing {
	return orders.Pricing{
		TaxRate:               s.TaxRate,
		ShippingFee:           s.ShippingFee,
		FreeShippingThreshold: s.FreeShippingThreshold,
	}
}

// Apply merges p over s. A patch that names a currency also resets the
// symbol, even when the patch carries its own symbol.
func (s Settings) Apply(p Patch) Settings {
	setString(&s.StoreName, p.StoreName)
	setString(&s.StoreEmail, p.StoreEmail)
	setString(&s.StorePhone, p.StorePhone)
	setString(&s.StoreAddress, p.StoreAddress)
	setString(&s.StoreCity, p.StoreCity)
	setString(&s.StoreState, p.StoreState)
	setString(&s.StorePincode, p.StorePincode)
	setString(&s.CurrencySymbol, p.CurrencySymbol)
	if p.Currency != nil {
		s.Currency = *p.Currency
		s.CurrencySymbol = SymbolFor(*p.Currency)
	}
	setFloat(&s.TaxRate, p.TaxRate)
	setFloat(&s.ShippingFee, p.ShippingFee)
	setFloat(&s.FreeShippingThreshold, p.FreeShippingThreshold)
	if p.LowStockThreshold != nil {
		s.LowStockThreshold = *p.LowStockThreshold
	}
	if n := p.Notifications; n != nil {
		setBool(&s.Notifications.NewOrders, n.NewOrders)
		setBool(&s.Notifications.LowStock, n.LowStock)
		setBool(&s.Notifications.DailySales, n.DailySales)
	}
	s.Categories = pickList(s.Categories, p.Categories)
	s.Sizes = pickList(s.Sizes, p.Sizes)
	s.Colors = pickList(s.Colors, p.Colors)
	setFloat(&s.PriceRangeMin, p.PriceRangeMin)
	setFloat(&s.PriceRangeMax, p.PriceRangeMax)
	return s
}

// Restore rebuilds a stored record over the defaults. The record's own
// currency symbol is kept; it is derived from the currency only when the
// record carries none.
func Restore(p Patch) Settings {
	s := Defaults().Apply(p)
	if p.CurrencySymbol != nil && *p.CurrencySymbol != "" {
		s.CurrencySymbol = *p.CurrencySymbol
	}
	return s
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func pickList(cur []string, v *[]string) []string {
	src := cur
	if v != nil {
		src = *v
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings { return s.Apply(Patch{}) }
