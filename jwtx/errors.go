package jwtx

import (
	"errors"
	"fmt"
)

// ErrorCode represents verifier error categories.
type ErrorCode string

const (
	ErrCodeMalformedToken       ErrorCode = "malformed_token"
	ErrCodeUnsupportedAlgorithm ErrorCode = "unsupported_algorithm"
	ErrCodeUnknownSigningKey    ErrorCode = "unknown_signing_key"
	ErrCodeKeyFetch             ErrorCode = "key_fetch_failed"
	ErrCodeInvalidSignature     ErrorCode = "invalid_signature"
	ErrCodeTokenExpired         ErrorCode = "token_expired"
	ErrCodeIssuerMismatch       ErrorCode = "issuer_mismatch"
	ErrCodeAudienceMismatch     ErrorCode = "audience_mismatch"
	ErrCodeSubjectMismatch      ErrorCode = "subject_mismatch"
	ErrCodeTokenUseMismatch     ErrorCode = "token_use_mismatch"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeMalformedToken:       "Malformed token",
	ErrCodeUnsupportedAlgorithm: "Unsupported signing algorithm",
	ErrCodeUnknownSigningKey:    "Unknown signing key",
	ErrCodeKeyFetch:             "Signing keys unavailable",
	ErrCodeInvalidSignature:     "Invalid signature",
	ErrCodeTokenExpired:         "Token expired",
	ErrCodeIssuerMismatch:       "Issuer mismatch",
	ErrCodeAudienceMismatch:     "Audience mismatch",
	ErrCodeSubjectMismatch:      "Subject mismatch",
	ErrCodeTokenUseMismatch:     "Token use mismatch",
}

// Error wraps verifier errors with a stable code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same token may verify on a later attempt.
func (e *Error) Retryable() bool {
	return e.Code == ErrCodeKeyFetch
}

// CodeOf extracts the ErrorCode from err, or "" when err is not a verifier error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether err is a transient verifier failure.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}
