package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrStoreNotFound       = errors.New("store not found")
	ErrIntegrationNotFound = errors.New("store integration not found")
	ErrStoreInactive       = errors.New("store is not active")
	ErrDomainDisabled      = errors.New("sync domain is disabled for store")
	ErrRunInProgress       = errors.New("sync run already in progress")
	ErrLeaseLost           = errors.New("run lock lease lost")
	ErrUnsupportedPlatform = errors.New("unsupported platform type")
	ErrUnsupportedSync     = errors.New("unsupported sync domain or direction")
	ErrSyncLogFinalized    = errors.New("sync log is already finalized")
	ErrSyncLogNotFound     = errors.New("sync log not found")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrPlatformMismatch    = errors.New("webhook platform does not match store")
	ErrMissingCredentials  = errors.New("store integration is missing credentials")
	ErrInvalidStore        = errors.New("invalid store configuration")
)

// ErrorKind classifies a failure for run accounting
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindNetwork     ErrorKind = "network"
	KindAuth        ErrorKind = "auth"
	KindMapping     ErrorKind = "mapping"
	KindRateLimit   ErrorKind = "rate_limit"
	KindPageLimit   ErrorKind = "page_limit"
	KindNotFound    ErrorKind = "not_found"
	KindUnsupported ErrorKind = "unsupported"
	KindRemote      ErrorKind = "remote"
	KindCancelled   ErrorKind = "cancelled"
)

// Halts reports whether a failure of this kind stops the whole run
func (k ErrorKind) Halts() bool {
	switch k {
	case KindNetwork, KindAuth, KindRateLimit, KindPageLimit, KindCancelled:
		return true
	}
	return false
}

// PlatformError is a sanitized remote failure. Message never contains credentials
// or raw response bodies.
type PlatformError struct {
	Kind       ErrorKind
	StatusCode int
	Op         string
	Message    string
}

func (e *PlatformError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// NewPlatformError builds a PlatformError
func NewPlatformError(kind ErrorKind, op string, status int, message string) *PlatformError {
	return &PlatformError{Kind: kind, Op: op, StatusCode: status, Message: message}
}

// MappingError reports a remote record that cannot be mapped to the local schema
func MappingError(op, message string) *PlatformError {
	return &PlatformError{Kind: KindMapping, Op: op, Message: message}
}

// KindOf extracts the failure kind of err
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindRemote
}

// Outcome is the normalized result of one platform call. Remote 4xx/5xx responses
// are reported here rather than raised so a batch can continue.
type Outcome struct {
	OK         bool      `json:"ok"`
	StatusCode int       `json:"status_code,omitempty"`
	Message    string    `json:"message,omitempty"`
	Kind       ErrorKind `json:"kind,omitempty"`
}

// Succeeded builds a successful outcome
func Succeeded(status int) Outcome {
	return Outcome{OK: true, StatusCode: status}
}

// Failed converts an error to an outcome
func Failed(err error) Outcome {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return Outcome{StatusCode: pe.StatusCode, Message: pe.Message, Kind: pe.Kind}
	}
	kind := KindOf(err)
	msg := "request failed"
	switch kind {
	case KindCancelled:
		msg = "cancelled"
	case KindNetwork:
		msg = "request timed out"
	}
	return Outcome{Message: msg, Kind: kind}
}

// Err returns the outcome as an error, or nil when it succeeded
func (o Outcome) Err(op string) error {
	if o.OK {
		return nil
	}
	kind := o.Kind
	if kind == KindNone {
		kind = KindRemote
	}
	return &PlatformError{Kind: kind, Op: op, StatusCode: o.StatusCode, Message: o.Message}
}
