// Package admin gates the back-office views behind one shared password.
// It is a convenience lock, not a security boundary.
package admin

import (
	"crypto/subtle"
	"fmt"
	"log"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/ariefcatur/go-storefront/internal/localcache"
)

const (
	sessionFlag    = "true"
	sessionSubject = "admin"
)

type Gate struct {
	cache    localcache.Cache
	password string
	key      []byte
	ttl      time.Duration
	now      func() time.Time
	log      *log.Logger
}

type Option func(*Gate)

// WithSessionKey stores a signed, expiring token instead of the bare flag.
func WithSessionKey(key string, ttl time.Duration) Option {
	return func(g *Gate) {
		g.key = []byte(key)
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

func NewGate(c localcache.Cache, password string, opts ...Option) *Gate {
	g := &Gate{
		cache:    c,
		password: password,
		ttl:      24 * time.Hour,
		now:      time.Now,
		log:      log.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login records an admin session when password matches.
func (g *Gate) Login(password string) bool {
	if g.password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) != 1 {
		return false
	}
	value := sessionFlag
	if len(g.key) > 0 {
		tok, err := g.sign()
		if err != nil {
			g.log.Printf("admin: sign session: %v", err)
			return false
		}
		value = tok
	}
	if err := g.cache.Set(localcache.KeyAdminSession, value); err != nil {
		g.log.Printf("admin: save session: %v", err)
	}
	return true
}

func (g *Gate) sign() (string, error) {
	now := g.now()
	claims := &jwt.StandardClaims{
		Subject:   sessionSubject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(g.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.key)
}

func (g *Gate) Authenticated() bool {
	v, ok, err := g.cache.Get(localcache.KeyAdminSession)
	if err != nil || !ok {
		return false
	}
	if len(g.key) == 0 {
		return v == sessionFlag
	}
	claims := &jwt.StandardClaims{}
	tok, err := jwt.ParseWithClaims(v, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.key, nil
	})
	return err == nil && tok.Valid && claims.Subject == sessionSubject
}

func (g *Gate) Logout() {
	if err := g.cache.Remove(localcache.KeyAdminSession); err != nil {
		g.log.Printf("admin: clear session: %v", err)
	}
}
