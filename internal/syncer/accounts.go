package syncer

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront/internal/accounts"
	"github.com/ariefcatur/go-storefront/internal/localcache"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/remote"
	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

type UserSource interface {
	GetUser(ctx context.Context, email string) (remote.UserResult, error)
}

// Authenticator checks a password on the remote and returns the account
// without its secrets.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (remote.UserResult, error)
}

// OrderHistory yields the account view of a user's orders.
type OrderHistory interface {
	HistoryFor(email string) []orders.Summary
}

type AccountsOption func(*Accounts)

func WithVerifier(v accounts.Verifier) AccountsOption {
	return func(a *Accounts) {
		if v != nil {
			a.verifier = v
		}
	}
}

// WithAuthenticator moves password checks to the remote. The verifier then
// only prepares hashes for new accounts.
func WithAuthenticator(au Authenticator) AccountsOption {
	return func(a *Accounts) { a.auth = au }
}

// WithAutoProvision controls whether login with an unknown email creates
// the account on the spot.
func WithAutoProvision(on bool) AccountsOption {
	return func(a *Accounts) { a.autoProvision = on }
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

type ProfilePatch struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

// Accounts holds the signed-in shopper with their addresses and wishlist.
type Accounts struct {
	mu            sync.RWMutex
	remote        UserSource
	cache         localcache.Cache
	outbox        *Outbox
	history       OrderHistory
	verifier      accounts.Verifier
	auth          Authenticator
	autoProvision bool
	log           *log.Logger
	now           func() time.Time

	user      *accounts.User
	addresses []accounts.Address
	wishlist  []string
	loading   bool
	// unconfirmed marks a session opened while the remote was unreachable.
	unconfirmed bool
}

func NewAccounts(r UserSource, c localcache.Cache, ob *Outbox, h OrderHistory, l *log.Logger, opts ...AccountsOption) *Accounts {
	if l == nil {
		l = log.Default()
	}
	a := &Accounts{
		remote:        r,
		cache:         c,
		outbox:        ob,
		history:       h,
		verifier:      accounts.OpenVerifier{},
		autoProvision: true,
		log:           l,
		now:           time.Now,
		addresses:     []accounts.Address{},
		wishlist:      []string{},
		loading:       true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Accounts) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loading
}

// Restore brings back the session saved in the cache and refreshes the
// user's addresses and wishlist from the remote when possible. A session
// opened offline is settled here once the remote answers.
func (a *Accounts) Restore(ctx context.Context) Source {
	defer func() {
		a.mu.Lock()
		a.loading = false
		a.mu.Unlock()
	}()

	rec, ok := a.cachedRecord()
	if !ok {
		return SourceDefault
	}
	a.mu.Lock()
	a.adopt(rec)
	a.unconfirmed = a.cachedUnconfirmed()
	pending := a.unconfirmed
	a.mu.Unlock()

	if pending {
		if !a.confirm(ctx) {
			return SourceCache
		}
		a.sync(ctx)
		return SourceRemote
	}

	res, err := a.remote.GetUser(ctx, rec.Email)
	if err == nil {
		err = res.Err("/users/" + rec.Email)
	}
	if err != nil {
		a.log.Printf("accounts: refresh %s: %v", rec.Email, err)
		return SourceCache
	}
	if !res.Found() {
		return SourceCache
	}
	fresh, _, err := accounts.ParseRecord(res.User)
	if err != nil {
		a.log.Printf("accounts: remote record for %s: %v", rec.Email, err)
		return SourceCache
	}
	a.mu.Lock()
	a.addresses = nonNilAddresses(fresh.Addresses)
	a.wishlist = nonNilStrings(fresh.Wishlist)
	if fresh.PasswordHash != "" {
		a.user.PasswordHash = fresh.PasswordHash
	}
	a.mu.Unlock()
	a.persist()
	return SourceRemote
}

// cachedRecord reads the current user with its collections. The user entry
// may be a flat user or an older nested record.
func (a *Accounts) cachedRecord() (accounts.Record, bool) {
	raw, ok, err := a.cache.Get(localcache.KeyUser)
	if err != nil || !ok {
		return accounts.Record{}, false
	}
	rec, _, err := accounts.ParseRecord([]byte(raw))
	if err != nil {
		a.log.Printf("accounts: cached user unreadable: %v", err)
		return accounts.Record{}, false
	}
	var addrs []accounts.Address
	if ok, err := localcache.GetJSON(a.cache, localcache.KeyAddresses, &addrs); ok && err == nil {
		rec.Addresses = addrs
	}
	var wl []string
	if ok, err := localcache.GetJSON(a.cache, localcache.KeyWishlist, &wl); ok && err == nil {
		rec.Wishlist = wl
	}
	return rec, true
}

func (a *Accounts) cachedUnconfirmed() bool {
	_, ok, err := a.cache.Get(localcache.KeyUserUnconfirmed)
	return err == nil && ok
}

func (a *Accounts) adopt(rec accounts.Record) {
	u := rec.User
	a.user = &u
	a.addresses = nonNilAddresses(rec.Addresses)
	a.wishlist = nonNilStrings(rec.Wishlist)
}

// Login signs in with email. A known account must pass the verifier. An
// unknown one is created when auto-provisioning is on.
//
// When the remote cannot be reached the outcome depends on the verifier:
// with passwords in play the login fails, otherwise the shopper gets an
// unconfirmed local session that is never written remotely until a later
// lookup settles whether the account exists.
func (a *Accounts) Login(ctx context.Context, email, password string) (accounts.User, error) {
	email, err := accounts.NormalizeEmail(email)
	if err != nil {
		return accounts.User{}, err
	}

	var (
		rec   accounts.Record
		state lookupState
	)
	if a.auth != nil {
		rec, state, err = a.authenticate(ctx, email, password)
	} else {
		rec, state, err = a.lookup(ctx, email)
		if state == lookupFound {
			err = a.verifier.Verify(rec.User, password)
		}
	}
	if err != nil && state != lookupFailed {
		return accounts.User{}, err
	}

	switch state {
	case lookupAbsent:
		if !a.autoProvision {
			return accounts.User{}, storeerr.NotFound("no account for %s", email)
		}
		hash, err := a.verifier.Prepare(password)
		if err != nil {
			return accounts.User{}, err
		}
		rec = accounts.Record{User: a.newUser(email, "", "", "", hash)}
	case lookupFailed:
		if !a.offlineLogin() {
			return accounts.User{}, err
		}
		a.log.Printf("accounts: %s signed in offline, unconfirmed: %v", email, err)
		rec = a.offlineRecord(email)
	}

	a.mu.Lock()
	a.adopt(rec)
	a.unconfirmed = state == lookupFailed
	u := *a.user
	a.mu.Unlock()

	a.sync(ctx)
	return u.Public(), nil
}

type lookupState int

const (
	lookupFailed lookupState = iota
	lookupAbsent
	lookupFound
)

// lookup fetches the remote record for email. A call that fails, or a record
// that cannot be read, yields lookupFailed: absence is never assumed.
func (a *Accounts) lookup(ctx context.Context, email string) (accounts.Record, lookupState, error) {
	res, err := a.remote.GetUser(ctx, email)
	return a.settle(email, res, err)
}

// authenticate lets the remote check the password. A rejected check is
// reported as UNAUTHORIZED.
func (a *Accounts) authenticate(ctx context.Context, email, password string) (accounts.Record, lookupState, error) {
	res, err := a.auth.Authenticate(ctx, email, password)
	if storeerr.Is(err, storeerr.CodeRequestRejected) {
		return accounts.Record{}, lookupFound, storeerr.Unauthorized("invalid email or password")
	}
	return a.settle(email, res, err)
}

func (a *Accounts) settle(email string, res remote.UserResult, err error) (accounts.Record, lookupState, error) {
	endpoint := "/users/" + email
	if err == nil {
		err = res.Err(endpoint)
	}
	if err != nil {
		a.log.Printf("accounts: lookup %s: %v", email, err)
		return accounts.Record{}, lookupFailed, err
	}
	if !res.Found() {
		return accounts.Record{}, lookupAbsent, nil
	}
	rec, _, err := accounts.ParseRecord(res.User)
	if err != nil {
		a.log.Printf("accounts: remote record for %s: %v", email, err)
		return accounts.Record{}, lookupFailed, storeerr.MalformedResponse(endpoint, err)
	}
	return rec, lookupFound, nil
}

// offlineLogin reports whether a login may go ahead without the remote.
func (a *Accounts) offlineLogin() bool {
	_, open := a.verifier.(accounts.OpenVerifier)
	return open && a.auth == nil && a.autoProvision
}

// offlineRecord reuses the cached session for email when there is one.
func (a *Accounts) offlineRecord(email string) accounts.Record {
	if rec, ok := a.cachedRecord(); ok && rec.Email == email {
		return rec
	}
	return accounts.Record{User: a.newUser(email, "", "", "", "")}
}

// confirm settles an unconfirmed session against the remote. It reports
// whether the session may now be written remotely. A remote account found
// for the email wins; entries added offline are merged into it.
func (a *Accounts) confirm(ctx context.Context) bool {
	a.mu.RLock()
	pending, email := a.unconfirmed, ""
	if a.user != nil {
		email = a.user.Email
	}
	a.mu.RUnlock()
	if !pending {
		return true
	}
	if email == "" {
		return false
	}

	rec, state, err := a.lookup(ctx, email)
	if state == lookupFailed {
		a.log.Printf("accounts: %s still unconfirmed: %v", email, err)
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil || a.user.Email != email {
		return false
	}
	if state == lookupFound {
		a.merge(rec)
	}
	a.unconfirmed = false
	return true
}

// merge adopts rec and keeps the addresses and wishlist entries that only
// exist locally. A local default never displaces the remote one.
func (a *Accounts) merge(rec accounts.Record) {
	localAddrs, localWish := a.addresses, a.wishlist
	a.adopt(rec)
	for _, addr := range localAddrs {
		if a.addressIndex(addr.ID) >= 0 {
			continue
		}
		if addr.IsDefault && a.hasDefault(addr.Type) {
			addr.IsDefault = false
		}
		a.addresses = append(a.addresses, addr)
	}
	for _, id := range localWish {
		if !contains(a.wishlist, id) {
			a.wishlist = append(a.wishlist, id)
		}
	}
}

// Register fails with ALREADY_EXISTS when any trace of the email exists,
// remotely or in the cache. Nothing changes in that case, nor when the
// remote cannot be asked.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (accounts.User, error) {
	email, err := accounts.NormalizeEmail(in.Email)
	if err != nil {
		return accounts.User{}, err
	}
	_, state, lookupErr := a.lookup(ctx, email)
	if state == lookupFound || a.tracedLocally(email) {
		return accounts.User{}, storeerr.AccountExists(email)
	}
	if state == lookupFailed {
		return accounts.User{}, lookupErr
	}
	hash, err := a.verifier.Prepare(in.Password)
	if err != nil {
		return accounts.User{}, err
	}

	for _, k := range []string{localcache.KeyAddresses, localcache.KeySessionOrders, localcache.KeyWishlist} {
		if err := a.cache.Remove(k); err != nil {
			a.log.Printf("accounts: remove %s: %v", k, err)
		}
	}
	u := a.newUser(email, in.FirstName, in.LastName, in.Phone, hash)

	a.mu.Lock()
	a.adopt(accounts.Record{User: u})
	a.unconfirmed = false
	a.mu.Unlock()

	a.sync(ctx)
	return u.Public(), nil
}

func (a *Accounts) tracedLocally(email string) bool {
	if rec, ok := a.cachedRecord(); ok && rec.Email == email {
		return true
	}
	_, ok, err := a.cache.Get(localcache.UserOrdersKey(email))
	return err == nil && ok
}

func (a *Accounts) newUser(email, first, last, phone, hash string) accounts.User {
	if first == "" {
		first = email[:strings.Index(email, "@")]
	}
	return accounts.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(first),
		LastName:     strings.TrimSpace(last),
		Phone:        strings.TrimSpace(phone),
		JoinedDate:   a.now().UTC(),
		PasswordHash: hash,
	}
}

// Logout forgets the session. The per-user order history stays cached.
func (a *Accounts) Logout() {
	a.mu.Lock()
	a.user = nil
	a.addresses = []accounts.Address{}
	a.wishlist = []string{}
	a.unconfirmed = false
	a.mu.Unlock()
	for _, k := range []string{localcache.KeyUser, localcache.KeyAddresses, localcache.KeyWishlist, localcache.KeySessionOrders, localcache.KeyUserUnconfirmed} {
		if err := a.cache.Remove(k); err != nil {
			a.log.Printf("accounts: remove %s: %v", k, err)
		}
	}
}

func (a *Accounts) User() (accounts.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return accounts.User{}, false
	}
	return a.user.Public(), true
}

func (a *Accounts) Addresses() []accounts.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]accounts.Address{}, a.addresses...)
}

func (a *Accounts) Wishlist() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string{}, a.wishlist...)
}

func (a *Accounts) InWishlist(productID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return contains(a.wishlist, productID)
}

// Orders is the order history of the signed-in user.
func (a *Accounts) Orders() []orders.Summary {
	a.mu.RLock()
	u := a.user
	a.mu.RUnlock()
	if u == nil || a.history == nil {
		return []orders.Summary{}
	}
	return a.history.HistoryFor(u.Email)
}

func (a *Accounts) UpdateProfile(ctx context.Context, p ProfilePatch) (accounts.User, error) {
	var out accounts.User
	err := a.mutate(ctx, func() error {
		if p.FirstName != nil {
			a.user.FirstName = strings.TrimSpace(*p.FirstName)
		}
		if p.LastName != nil {
			a.user.LastName = strings.TrimSpace(*p.LastName)
		}
		if p.Phone != nil {
			a.user.Phone = strings.TrimSpace(*p.Phone)
		}
		out = a.user.Public()
		return nil
	})
	return out, err
}

func (a *Accounts) AddAddress(ctx context.Context, addr accounts.Address) (accounts.Address, error) {
	if err := addr.Validate(); err != nil {
		return accounts.Address{}, err
	}
	addr.ID = uuid.NewString()
	err := a.mutate(ctx, func() error {
		if !a.hasAddressOfType(addr.Type) {
			addr.IsDefault = true
		}
		if addr.IsDefault {
			a.clearDefault(addr.Type)
		}
		a.addresses = append(a.addresses, addr)
		return nil
	})
	if err != nil {
		return accounts.Address{}, err
	}
	return addr, nil
}

func (a *Accounts) UpdateAddress(ctx context.Context, addr accounts.Address) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	return a.mutate(ctx, func() error {
		i := a.addressIndex(addr.ID)
		if i < 0 {
			return storeerr.NotFound("address %s not found", addr.ID)
		}
		if addr.IsDefault {
			a.clearDefault(addr.Type)
		}
		a.addresses[i] = addr
		return nil
	})
}

func (a *Accounts) DeleteAddress(ctx context.Context, id string) error {
	return a.mutate(ctx, func() error {
		i := a.addressIndex(id)
		if i < 0 {
			return storeerr.NotFound("address %s not found", id)
		}
		a.addresses = append(a.addresses[:i:i], a.addresses[i+1:]...)
		return nil
	})
}

// AddToWishlist is a no-op for a product already on the list.
func (a *Accounts) AddToWishlist(ctx context.Context, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return storeerr.InvalidInput("product id is required")
	}
	return a.mutate(ctx, func() error {
		if !contains(a.wishlist, productID) {
			a.wishlist = append(a.wishlist, productID)
		}
		return nil
	})
}

func (a *Accounts) RemoveFromWishlist(ctx context.Context, productID string) error {
	return a.mutate(ctx, func() error {
		out := make([]string, 0, len(a.wishlist))
		for _, id := range a.wishlist {
			if id != productID {
				out = append(out, id)
			}
		}
		a.wishlist = out
		return nil
	})
}

// mutate runs fn under the lock when a user is signed in, then syncs.
func (a *Accounts) mutate(ctx context.Context, fn func() error) error {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return storeerr.Unauthorized("sign in first")
	}
	if err := fn(); err != nil {
		a.mu.Unlock()
		return err
	}
	a.mu.Unlock()
	a.sync(ctx)
	return nil
}

func (a *Accounts) hasAddressOfType(t accounts.AddressType) bool {
	for _, x := range a.addresses {
		if x.Type == t {
			return true
		}
	}
	return false
}

func (a *Accounts) hasDefault(t accounts.AddressType) bool {
	for _, x := range a.addresses {
		if x.Type == t && x.IsDefault {
			return true
		}
	}
	return false
}

func (a *Accounts) clearDefault(t accounts.AddressType) {
	for i := range a.addresses {
		if a.addresses[i].Type == t {
			a.addresses[i].IsDefault = false
		}
	}
}

func (a *Accounts) addressIndex(id string) int {
	for i, x := range a.addresses {
		if x.ID == id {
			return i
		}
	}
	return -1
}

func (a *Accounts) record() (accounts.Record, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return accounts.Record{}, false
	}
	return accounts.Record{
		User:      *a.user,
		Addresses: append([]accounts.Address{}, a.addresses...),
		Wishlist:  append([]string{}, a.wishlist...),
	}, true
}

// sync sends the whole record to the remote and caches it without secrets.
// An unconfirmed session is only cached.
func (a *Accounts) sync(ctx context.Context) {
	if !a.confirm(ctx) {
		a.persist()
		return
	}
	rec, ok := a.record()
	if !ok {
		return
	}
	op, err := NewOp(KindUserSave, rec.Email, rec)
	if err == nil {
		err = a.outbox.Submit(ctx, op)
	}
	if err != nil {
		a.log.Printf("accounts: save %s not synced: %v", rec.Email, err)
	}
	a.persist()
}

func (a *Accounts) persist() {
	rec, ok := a.record()
	if !ok {
		return
	}
	writes := []struct {
		key string
		v   any
	}{
		{localcache.KeyUser, rec.User.Public()},
		{localcache.KeyAddresses, rec.Addresses},
		{localcache.KeyWishlist, rec.Wishlist},
	}
	for _, w := range writes {
		if err := localcache.SetJSON(a.cache, w.key, w.v); err != nil {
			a.log.Printf("accounts: cache write %s: %v", w.key, err)
		}
	}

	a.mu.RLock()
	pending := a.unconfirmed
	a.mu.RUnlock()
	var err error
	if pending {
		err = a.cache.Set(localcache.KeyUserUnconfirmed, "true")
	} else {
		err = a.cache.Remove(localcache.KeyUserUnconfirmed)
	}
	if err != nil {
		a.log.Printf("accounts: cache write %s: %v", localcache.KeyUserUnconfirmed, err)
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func nonNilAddresses(a []accounts.Address) []accounts.Address {
	if a == nil {
		return []accounts.Address{}
	}
	return a
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
