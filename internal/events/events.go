// Package events defines the envelope and payloads the store API publishes
// when the catalog or an order changes.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventProductUpserted = "ProductUpserted"
	EventProductDeleted  = "ProductDeleted"
	EventProductsCleared = "ProductsCleared"
	EventOrderCreated    = "OrderCreated"
	EventOrderUpdated    = "OrderUpdated"
)

// Semua event storefront lewat satu topic; urutan per entity dijaga partition key.
const TopicStorefront = "storefront.events"

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g., "storefront-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // product id atau order id
	Payload       json.RawMessage `json:"payload"`
}

type ProductUpsertedPayload struct {
	ProductID  string  `json:"product_id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	TotalStock int     `json:"total_stock"`
	Created    bool    `json:"created"`
}

type ProductDeletedPayload struct {
	ProductID string `json:"product_id"`
}

type ProductsClearedPayload struct {
	Deleted int `json:"deleted"`
}

type OrderCreatedPayload struct {
	OrderID       string  `json:"order_id"`
	UserEmail     string  `json:"user_email,omitempty"`
	CustomerName  string  `json:"customer_name,omitempty"`
	ItemCount     int     `json:"item_count"`
	Total         float64 `json:"total"`
	PaymentMethod string  `json:"payment_method"`
}

type OrderUpdatedPayload struct {
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// New wraps payload in a fresh version 1 envelope.
func New(eventType, producer, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// PartitionKey keeps every event of one entity in order.
func PartitionKey(entityID string) []byte { return []byte(entityID) }

func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventID == "" || env.EventType == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event id or type")
	}
	return env, nil
}

// UnwrapPayload memudahkan decode payload spesifik
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
