package orders

import "github.com/ariefcatur/go-storefront/internal/storeerr"

// Pricing is the slice of store settings checkout needs.
type Pricing struct {
	TaxRate               float64 // percent
	ShippingFee           float64
	FreeShippingThreshold float64
}

type Totals struct {
	Subtotal float64
	Shipping float64
	Tax      float64
	Total    float64
}

// ComputeTotals applies free shipping strictly above the threshold.
func ComputeTotals(items []LineItem, p Pricing) Totals {
	var t Totals
	for _, it := range items {
		t.Subtotal += it.Price * float64(it.Quantity)
	}
	if t.Subtotal <= p.FreeShippingThreshold {
		t.Shipping = p.ShippingFee
	}
	t.Tax = t.Subtotal * p.TaxRate / 100
	t.Total = t.Subtotal + t.Shipping + t.Tax
	return t
}

func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return storeerr.InvalidInput("order has no items")
	}
	for _, it := range items {
		if it.ProductID == "" {
			return storeerr.InvalidInput("line item without product id")
		}
		if it.Quantity <= 0 {
			return storeerr.InvalidInput("invalid quantity %d for product %s", it.Quantity, it.ProductID)
		}
		if it.Price < 0 {
			return storeerr.InvalidInput("negative price for product %s", it.ProductID)
		}
	}
	return nil
}
