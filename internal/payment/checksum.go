// Package payment signs and verifies gateway parameter sets.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const ChecksumField = "CHECKSUMHASH"

// Checksum is the hex HMAC-SHA256 of params rendered as k=v pairs, sorted by
// key and joined by '&'.
func Checksum(params map[string]string, key string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the CHECKSUMHASH entry of params against the rest of the set.
func Verify(params map[string]string, key string) bool {
	got, ok := params[ChecksumField]
	if !ok || got == "" {
		return false
	}
	rest := make(map[string]string, len(params))
	for k, v := range params {
		if k != ChecksumField {
			rest[k] = v
		}
	}
	want := Checksum(rest, key)
	return hmac.Equal([]byte(got), []byte(want))
}

// Stringify renders decoded JSON values the way they are signed.
func Stringify(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
