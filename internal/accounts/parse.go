package accounts

import (
	"bytes"
	"encoding/json"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

// Shape names the layout a user payload arrived in.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeFlat is the canonical record: user fields at the top level.
	ShapeFlat
	// ShapeNested wraps the user under "user", with collections beside it.
	ShapeNested
)

func detect(fields map[string]json.RawMessage) Shape {
	if raw, ok := fields["user"]; ok && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return ShapeNested
	}
	if _, ok := fields["email"]; ok {
		return ShapeFlat
	}
	return ShapeUnknown
}

// ParseRecord normalizes any known user payload into a Record. Payloads
// without a usable email are rejected.
func ParseRecord(raw []byte) (Record, Shape, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Record{}, ShapeUnknown, storeerr.InvalidInput("user payload is not an object: %v", err)
	}

	var rec Record
	shape := detect(fields)
	switch shape {
	case ShapeNested:
		if err := json.Unmarshal(fields["user"], &rec.User); err != nil {
			return Record{}, shape, storeerr.InvalidInput("nested user: %v", err)
		}
	case ShapeFlat:
		if err := json.Unmarshal(raw, &rec.User); err != nil {
			return Record{}, shape, storeerr.InvalidInput("user: %v", err)
		}
	default:
		return Record{}, shape, storeerr.InvalidInput("unrecognised user payload")
	}

	if v, ok := fields["addresses"]; ok {
		if err := json.Unmarshal(v, &rec.Addresses); err != nil {
			return Record{}, shape, storeerr.InvalidInput("addresses: %v", err)
		}
	}
	if v, ok := fields["wishlist"]; ok {
		if err := json.Unmarshal(v, &rec.Wishlist); err != nil {
			return Record{}, shape, storeerr.InvalidInput("wishlist: %v", err)
		}
	}

	email, err := NormalizeEmail(rec.Email)
	if err != nil {
		return Record{}, shape, err
	}
	rec.Email = email
	if rec.Addresses == nil {
		rec.Addresses = []Address{}
	}
	if rec.Wishlist == nil {
		rec.Wishlist = []string{}
	}
	return rec, shape, nil
}
