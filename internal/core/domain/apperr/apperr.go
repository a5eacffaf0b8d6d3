package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error by how callers should react to it.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthorization     Kind = "authorization"
	KindNotFound          Kind = "not_found"
	KindStateConflict     Kind = "state_conflict"
	KindThrottling        Kind = "throttling"
	KindTransientConflict Kind = "transient_conflict"
	KindExhaustion        Kind = "exhaustion"
	KindInternal          Kind = "internal"
)

// Retryable reports whether the caller may safely retry the same request later.
func (k Kind) Retryable() bool {
	return k == KindThrottling || k == KindTransientConflict
}

// Error is a business-level failure with a stable machine readable code.
type Error struct {
	Code       string        `json:"code"`
	Kind       Kind          `json:"-"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"-"`
	cause      error
}

func New(kind Kind, code, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on Code so that copies made by WithMessage or Wrap still match the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of e that records cause for errors.Unwrap.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

var (
	ErrInvalidRequest         = New(KindValidation, "INVALID_REQUEST", "invalid request")
	ErrNotOwner               = New(KindAuthorization, "NOT_OWNER", "landlord does not own this property")
	ErrPropertyNotFound       = New(KindNotFound, "PROPERTY_NOT_FOUND", "property does not exist")
	ErrUnitNotFound           = New(KindNotFound, "UNIT_NOT_FOUND", "unit does not exist")
	ErrCodeNotFound           = New(KindNotFound, "CODE_NOT_FOUND", "invite code does not exist")
	ErrCodeExpired            = New(KindStateConflict, "CODE_EXPIRED", "invite code has expired")
	ErrCodeAlreadyRedeemed    = New(KindStateConflict, "CODE_ALREADY_REDEEMED", "invite code has already been redeemed")
	ErrCodeRevoked            = New(KindStateConflict, "CODE_REVOKED", "invite code has been revoked")
	ErrUnitFull               = New(KindStateConflict, "UNIT_FULL", "unit is at capacity")
	ErrCapacityBelowOccupancy = New(KindStateConflict, "CAPACITY_BELOW_OCCUPANCY", "capacity is lower than current occupancy")
	ErrPropertyExists         = New(KindStateConflict, "PROPERTY_EXISTS", "property already exists")
	ErrRateLimited            = New(KindThrottling, "RATE_LIMITED", "rate limit exceeded")
	ErrConflict               = New(KindTransientConflict, "CONFLICT", "concurrent modification, retry later")
	ErrGenerationExhausted    = New(KindExhaustion, "GENERATION_EXHAUSTED", "could not generate a unique invite code")
	ErrInternal               = New(KindInternal, "INTERNAL", "internal error")
)

// RateLimited returns ErrRateLimited carrying a retry-after hint.
func RateLimited(retryAfter time.Duration) *Error {
	cp := *ErrRateLimited
	if retryAfter < 0 {
		retryAfter = 0
	}
	cp.RetryAfter = retryAfter
	return &cp
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, KindInternal for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, ErrInternal's code for foreign errors and "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return ErrInternal.Code
}
