package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	errRemote := errors.New("remote down")
	errCache := errors.New("corrupt")

	remoteOK := func(context.Context) (string, error) { return "remote", nil }
	remoteFail := func(context.Context) (string, error) { return "", errRemote }
	cacheHit := func() (string, bool, error) { return "cache", true, nil }
	cacheMiss := func() (string, bool, error) { return "", false, nil }
	cacheFail := func() (string, bool, error) { return "", false, errCache }
	def := func() string { return "default" }

	tests := []struct {
		name       string
		remote     func(context.Context) (string, error)
		cache      func() (string, bool, error)
		wantValue  string
		wantSource Source
		wantErrs   []error
	}{
		{"remote wins", remoteOK, cacheHit, "remote", SourceRemote, nil},
		{"cache after remote failure", remoteFail, cacheHit, "cache", SourceCache, []error{errRemote}},
		{"default when cache empty", remoteFail, cacheMiss, "default", SourceDefault, []error{errRemote}},
		{"default when cache corrupt", remoteFail, cacheFail, "default", SourceDefault, []error{errRemote, errCache}},
		{"no remote configured", nil, cacheHit, "cache", SourceCache, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resolve(context.Background(), tt.remote, tt.cache, def)
			assert.Equal(t, tt.wantValue, out.Value)
			assert.Equal(t, tt.wantSource, out.Source)
			assert.Equal(t, tt.wantErrs, out.Errors)
		})
	}
}
