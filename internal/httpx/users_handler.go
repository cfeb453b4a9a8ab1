package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/accounts"
	"github.com/ariefcatur/go-storefront/internal/kvstore"
)

const hashField = "passwordHash"

func (h *StoreHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeout(r, 5*time.Second)
	defer cancel()
	list, err := h.values(ctx, kvstore.PrefixUser)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "list users", err)
		return
	}
	out := make([]json.RawMessage, 0, len(list))
	for _, raw := range list {
		out = append(out, withoutHash(raw))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": out})
}

func (h *StoreHandler) getUser(w http.ResponseWriter, r *http.Request) {
	param, _ := url.PathUnescape(chi.URLParam(r, "email"))
	email, err := accounts.NormalizeEmail(param)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": nil})
		return
	}
	ctx, cancel := timeout(r, 3*time.Second)
	defer cancel()
	raw, ok, err := h.KV.Get(ctx, kvstore.UserKey(email))
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "get user", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": withoutHash(raw)})
}

// saveUser stores the record as sent, keyed by its normalized email. A record
// without a password hash keeps the one already stored.
func (h *StoreHandler) saveUser(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decode(w, r, &raw) {
		return
	}
	var head struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		reject(w, "invalid user data")
		return
	}
	email, err := accounts.NormalizeEmail(head.Email)
	if err != nil {
		reject(w, "invalid user data")
		return
	}
	ctx, cancel := timeout(r, 3*time.Second)
	defer cancel()

	key := kvstore.UserKey(email)
	if hashOf(raw) == "" {
		prev, ok, err := h.KV.Get(ctx, key)
		if err != nil {
			h.fail(w, http.StatusInternalServerError, "save user", err)
			return
		}
		if hash := hashOf(prev); ok && hash != "" {
			raw = withHash(raw, hash)
		}
	}
	if err := h.KV.Set(ctx, key, raw); err != nil {
		h.fail(w, http.StatusInternalServerError, "save user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": withoutHash(raw)})
}

// login checks a password against the stored hash. Unknown emails answer
// user:null so the client can decide whether to create the account.
func (h *StoreHandler) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	email, err := accounts.NormalizeEmail(in.Email)
	if err != nil {
		reject(w, "invalid email")
		return
	}
	ctx, cancel := timeout(r, 3*time.Second)
	defer cancel()
	raw, ok, err := h.KV.Get(ctx, kvstore.UserKey(email))
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "login", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": nil})
		return
	}
	rec, _, err := accounts.ParseRecord(raw)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "login", err)
		return
	}
	if err := (accounts.BcryptVerifier{}).Verify(rec.User, in.Password); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid email or password"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": withoutHash(raw)})
}

// userRecord is a stored user decoded far enough to edit its own fields:
// the record itself, or its "user" member for nested records.
type userRecord struct {
	top, user map[string]json.RawMessage
	nested    bool
}

func parseUserRecord(raw []byte) (userRecord, bool) {
	var u userRecord
	if err := json.Unmarshal(raw, &u.top); err != nil || u.top == nil {
		return userRecord{}, false
	}
	if inner, has := u.top["user"]; has && bytes.HasPrefix(bytes.TrimSpace(inner), []byte("{")) {
		if err := json.Unmarshal(inner, &u.user); err != nil {
			return userRecord{}, false
		}
		u.nested = true
		return u, true
	}
	u.user = u.top
	return u, true
}

func (u userRecord) encode(fallback []byte) json.RawMessage {
	if u.nested {
		b, err := json.Marshal(u.user)
		if err != nil {
			return fallback
		}
		u.top["user"] = b
	}
	b, err := json.Marshal(u.top)
	if err != nil {
		return fallback
	}
	return b
}

func hashOf(raw []byte) string {
	u, ok := parseUserRecord(raw)
	if !ok {
		return ""
	}
	var hash string
	_ = json.Unmarshal(u.user[hashField], &hash)
	return hash
}

func withHash(raw []byte, hash string) json.RawMessage {
	u, ok := parseUserRecord(raw)
	if !ok {
		return raw
	}
	b, _ := json.Marshal(hash)
	u.user[hashField] = b
	return u.encode(raw)
}

// withoutHash strips the password hash from a stored record before it
// leaves the server. Anything that is not an object cannot carry one.
func withoutHash(raw []byte) json.RawMessage {
	u, ok := parseUserRecord(raw)
	if !ok {
		return raw
	}
	delete(u.top, hashField)
	delete(u.user, hashField)
	return u.encode(raw)
}
