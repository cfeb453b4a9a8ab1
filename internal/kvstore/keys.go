package kvstore

import (
	"fmt"
	"time"
)

const (
	PrefixProduct      = "product:"
	PrefixOrder        = "order:"
	PrefixUser         = "user:"
	PrefixNotification = "notification:"
	PrefixPayment      = "payment:"

	// Satu record settings untuk seluruh toko
	KeySettings = "app:settings"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var TTLDedup = 48 * time.Hour

func ProductKey(id string) string      { return PrefixProduct + id }
func OrderKey(id string) string        { return PrefixOrder + id }
func UserKey(email string) string      { return PrefixUser + email }
func NotificationKey(id string) string { return PrefixNotification + id }
func PaymentKey(orderID string) string { return PrefixPayment + orderID }

func DedupKey(service, id string) string { return fmt.Sprintf(KeyDedup, service, id) }
