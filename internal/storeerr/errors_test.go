package storeerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryClassification(t *testing.T) {
	cause := errors.New("boom")
	retryable := []error{
		Timeout("/products", cause),
		ConnectionFailed("/products", cause),
		ServerError("/products", 502, "bad gateway"),
		MalformedResponse("/products", cause),
	}
	for _, err := range retryable {
		assert.True(t, Retryable(err), err.Error())
	}

	permanent := []error{
		RequestRejected("/products", 400, "Invalid product data"),
		AccountExists("a@b.c"),
		CacheUnavailable("set", "k", nil),
		InvalidInput("bad %s", "x"),
		Unauthorized("nope"),
		NotFound("missing %d", 1),
	}
	for _, err := range permanent {
		assert.False(t, Retryable(err), err.Error())
	}
}

func TestIsAndCode(t *testing.T) {
	err := RequestRejected("/users", 404, "gone")
	assert.True(t, Is(err, CodeRequestRejected))
	assert.False(t, Is(err, CodeServerError))
	assert.False(t, Is(nil, CodeRequestRejected))
	assert.Equal(t, CodeRequestRejected, Code(err))

	wrapped := fmt.Errorf("sync: %w", AccountExists("a@b.c"))
	assert.True(t, Is(wrapped, CodeAccountExists))
	assert.Contains(t, err.Error(), "404")
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ConnectionFailed("/health", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(CacheUnavailable("set", "k", cause), CodeCacheUnavailable))
}
