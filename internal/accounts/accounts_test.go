package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

func TestParseRecordShapes(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		shape     Shape
		email     string
		addresses int
		wishlist  []string
	}{
		{
			name:      "flat record",
			raw:       `{"id":"u1","email":"Alice@Example.com ","firstName":"Alice","addresses":[{"id":"a1","type":"shipping"}],"wishlist":["p1"]}`,
			shape:     ShapeFlat,
			email:     "alice@example.com",
			addresses: 1,
			wishlist:  []string{"p1"},
		},
		{
			name:     "nested legacy record",
			raw:      `{"user":{"id":"u1","email":"bob@example.com"},"wishlist":["p2","p3"]}`,
			shape:    ShapeNested,
			email:    "bob@example.com",
			wishlist: []string{"p2", "p3"},
		},
		{
			name:     "flat user without collections",
			raw:      `{"id":"u1","email":"carol@example.com"}`,
			shape:    ShapeFlat,
			email:    "carol@example.com",
			wishlist: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, shape, err := ParseRecord([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.shape, shape)
			assert.Equal(t, tt.email, rec.Email)
			assert.Len(t, rec.Addresses, tt.addresses)
			assert.Equal(t, tt.wishlist, rec.Wishlist)
		})
	}
}

func TestParseRecordRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":        `nope`,
		"array":           `[1,2]`,
		"no email":        `{"firstName":"x"}`,
		"bad email":       `{"email":"nobody"}`,
		"bad wishlist":    `{"email":"a@b.c","wishlist":"p1"}`,
		"user not object": `{"user":"alice@example.com"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseRecord([]byte(raw))
			assert.True(t, storeerr.Is(err, storeerr.CodeInvalidInput), "got %v", err)
		})
	}
}

func TestPublicDropsHash(t *testing.T) {
	u := User{Email: "a@b.c", PasswordHash: "secret"}
	assert.Empty(t, u.Public().PasswordHash)
	assert.Equal(t, "secret", u.PasswordHash)
}

func TestBcryptVerifier(t *testing.T) {
	v := BcryptVerifier{Cost: bcrypt.MinCost}
	hash, err := v.Prepare("hunter22")
	require.NoError(t, err)

	u := User{Email: "a@b.c", PasswordHash: hash}
	assert.NoError(t, v.Verify(u, "hunter22"))
	assert.True(t, storeerr.Is(v.Verify(u, "wrong"), storeerr.CodeUnauthorized))
	assert.Error(t, v.Verify(User{Email: "a@b.c"}, "hunter22"))

	_, err = v.Prepare("123")
	assert.True(t, storeerr.Is(err, storeerr.CodeInvalidInput))
}

func TestOpenVerifier(t *testing.T) {
	var v Verifier = OpenVerifier{}
	assert.NoError(t, v.Verify(User{}, "anything"))
	h, err := v.Prepare("x")
	assert.NoError(t, err)
	assert.Empty(t, h)
}

func TestAddressValidate(t *testing.T) {
	assert.NoError(t, Address{Type: AddressShipping, Street: "1 Main", City: "Pune"}.Validate())
	assert.Error(t, Address{Type: "home", Street: "1 Main", City: "Pune"}.Validate())
	assert.Error(t, Address{Type: AddressBilling}.Validate())
}
