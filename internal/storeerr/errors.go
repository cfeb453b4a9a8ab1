// Package storeerr holds the error taxonomy shared by the storefront client
// and the store API. Every condition is a platform error code so callers can
// branch with Is and decide retries with Retryable.
package storeerr

import (
	platformerrors "github.com/jmgilman/go/errors"
)

const (
	CodeTimeout           platformerrors.ErrorCode = platformerrors.CodeTimeout
	CodeConnectionFailed  platformerrors.ErrorCode = platformerrors.CodeNetwork
	CodeRequestRejected   platformerrors.ErrorCode = "REQUEST_REJECTED"
	CodeServerError       platformerrors.ErrorCode = "SERVER_ERROR"
	CodeMalformedResponse platformerrors.ErrorCode = "MALFORMED_RESPONSE"
	CodeAccountExists     platformerrors.ErrorCode = platformerrors.CodeAlreadyExists
	CodeCacheUnavailable  platformerrors.ErrorCode = "CACHE_UNAVAILABLE"
	CodeInvalidInput      platformerrors.ErrorCode = platformerrors.CodeInvalidInput
	CodeUnauthorized      platformerrors.ErrorCode = platformerrors.CodeUnauthorized
	CodeNotFound          platformerrors.ErrorCode = platformerrors.CodeNotFound
)

// Timeout reports that a remote call ran past its deadline.
func Timeout(endpoint string, cause error) error {
	return platformerrors.WithContext(
		platformerrors.Wrap(cause, CodeTimeout, "request timed out: "+endpoint),
		"endpoint", endpoint)
}

// ConnectionFailed reports a transport level failure (dns, refused, reset).
func ConnectionFailed(endpoint string, cause error) error {
	return platformerrors.WithContext(
		platformerrors.Wrap(cause, CodeConnectionFailed, "cannot reach remote store: "+endpoint),
		"endpoint", endpoint)
}

// RequestRejected is a 4xx answer. Never retried.
func RequestRejected(endpoint string, status int, msg string) error {
	err := platformerrors.Newf(CodeRequestRejected, "request rejected (%d): %s", status, msg)
	return platformerrors.WithContextMap(err, map[string]interface{}{
		"endpoint": endpoint,
		"status":   status,
	})
}

// ServerError is a 5xx answer.
func ServerError(endpoint string, status int, msg string) error {
	err := platformerrors.Newf(CodeServerError, "server error (%d): %s", status, msg)
	err = platformerrors.WithClassification(err, platformerrors.ClassificationRetryable)
	return platformerrors.WithContextMap(err, map[string]interface{}{
		"endpoint": endpoint,
		"status":   status,
	})
}

// MalformedResponse wraps a body that could not be decoded as JSON.
func MalformedResponse(endpoint string, cause error) error {
	err := platformerrors.Wrap(cause, CodeMalformedResponse, "malformed response from "+endpoint)
	err = platformerrors.WithClassification(err, platformerrors.ClassificationRetryable)
	return platformerrors.WithContext(err, "endpoint", endpoint)
}

// AccountExists is returned by registration when any trace of the email is found.
func AccountExists(email string) error {
	return platformerrors.WithContext(
		platformerrors.New(CodeAccountExists, "an account with this email already exists"),
		"email", email)
}

// CacheUnavailable wraps a local cache read or write failure.
func CacheUnavailable(op, key string, cause error) error {
	msg := "local cache " + op + " failed"
	var err platformerrors.PlatformError
	if cause == nil {
		err = platformerrors.New(CodeCacheUnavailable, msg)
	} else {
		err = platformerrors.Wrap(cause, CodeCacheUnavailable, msg)
	}
	return platformerrors.WithContext(err, "key", key)
}

func InvalidInput(format string, args ...interface{}) error {
	return platformerrors.Newf(CodeInvalidInput, format, args...)
}

func Unauthorized(msg string) error {
	return platformerrors.New(CodeUnauthorized, msg)
}

func NotFound(format string, args ...interface{}) error {
	return platformerrors.Newf(CodeNotFound, format, args...)
}

// Is reports whether the outermost platform error in err's chain has code.
func Is(err error, code platformerrors.ErrorCode) bool {
	return err != nil && platformerrors.GetCode(err) == code
}

// Retryable reports whether err is classified as transient.
func Retryable(err error) bool {
	return platformerrors.IsRetryable(err)
}

// Code returns the code of err, or UNKNOWN.
func Code(err error) platformerrors.ErrorCode {
	return platformerrors.GetCode(err)
}
