package orders

import "github.com/ariefcatur/go-storefront/internal/storeerr"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var known = map[Status]bool{
	StatusPending:    true,
	StatusProcessing: true,
	StatusShipped:    true,
	StatusDelivered:  true,
	StatusCancelled:  true,
}

// ParseStatus accepts any known status. Admins may move an order to any
// status from any other, so there is no transition table.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !known[st] {
		return "", storeerr.InvalidInput("unknown order status %q", s)
	}
	return st, nil
}
