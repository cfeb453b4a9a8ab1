package orders

import "time"

// LineItem is the purchase-time snapshot of one cart row.
type LineItem struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Brand     string  `json:"brand"`
	Image     string  `json:"image,omitempty"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"` // unit price
}

type ShippingAddress struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Order struct {
	ID              string          `json:"id"`
	Date            time.Time       `json:"date"`
	Status          Status          `json:"status"` // lihat status.go
	Items           []LineItem      `json:"items"`
	Subtotal        float64         `json:"subtotal"`
	Shipping        float64         `json:"shipping"`
	Tax             float64         `json:"tax"`
	Total           float64         `json:"total"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	TrackingNumber  string          `json:"trackingNumber,omitempty"`
	CustomerInfo    *CustomerInfo   `json:"customerInfo,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UserEmail       string          `json:"userEmail,omitempty"`
}

// Summary is the per-user account view of an order.
type Summary struct {
	ID             string    `json:"id"`
	Date           time.Time `json:"date"`
	Status         Status    `json:"status"`
	Total          float64   `json:"total"`
	ItemCount      int       `json:"itemCount"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
}

func (o Order) Summary() Summary {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return Summary{
		ID:             o.ID,
		Date:           o.Date,
		Status:         o.Status,
		Total:          o.Total,
		ItemCount:      n,
		TrackingNumber: o.TrackingNumber,
	}
}
