package service

import (
	"errors"
	"fmt"

	"skillswap-auth/internal/policy"
)

// Kind classifies service errors for the transport layer
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindAuth
	KindLockout
	KindPolicy
	KindDelivery
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindLockout:
		return "lockout"
	case KindPolicy:
		return "policy"
	case KindDelivery:
		return "delivery"
	default:
		return "internal"
	}
}

// Error is an expected failure with a message safe to show to users.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidInput   = &Error{KindValidation, "INVALID_INPUT", "Invalid request"}
	ErrMissingFields  = &Error{KindValidation, "MISSING_FIELDS", "All fields are required."}
	ErrWeakPassword   = &Error{KindValidation, "WEAK_PASSWORD", policy.ComplexityMessage}
	ErrDuplicateEmail = &Error{KindValidation, "DUPLICATE_EMAIL", "Email is already registered"}

	ErrUnknownEmail      = &Error{KindNotFound, "UNKNOWN_EMAIL", "Email not registered"}
	// ErrResetUnknownEmail matches ErrUnknownEmail under errors.Is
	ErrResetUnknownEmail = &Error{KindNotFound, "UNKNOWN_EMAIL", "User not found."}
	ErrUnknownUser       = &Error{KindNotFound, "UNKNOWN_USER", "User not found. Please login again."}
	ErrUserNotFound      = &Error{KindNotFound, "USER_NOT_FOUND", "User not found"}

	ErrBadPassword         = &Error{KindAuth, "BAD_PASSWORD", "Incorrect password"}
	ErrNoPendingOTP        = &Error{KindAuth, "NO_PENDING_OTP", "No OTP code found. Please request a new login."}
	ErrOTPExpired          = &Error{KindAuth, "OTP_EXPIRED", "OTP expired. Please login again."}
	ErrBadOTP              = &Error{KindAuth, "BAD_OTP", "Incorrect OTP code."}
	ErrBadCurrentPassword  = &Error{KindAuth, "BAD_CURRENT_PASSWORD", "Current password is incorrect"}
	ErrInvalidOrExpiredOTP = &Error{KindAuth, "INVALID_OR_EXPIRED_OTP", "Invalid or expired OTP."}
	ErrMissingToken        = &Error{KindAuth, "MISSING_TOKEN", "Missing token"}
	ErrInvalidToken        = &Error{KindAuth, "INVALID_TOKEN", "Invalid token"}

	ErrAccountLocked = &Error{KindLockout, "ACCOUNT_LOCKED", "Account locked due to multiple failed attempts."}

	ErrPasswordExpired = &Error{KindPolicy, "PASSWORD_EXPIRED", "Your password has expired. Please reset it."}
	ErrPasswordReused  = &Error{KindPolicy, "PASSWORD_REUSED", "New password must not match any previously used passwords."}

	ErrDelivery = &Error{KindDelivery, "DELIVERY_FAILED", "Failed to send OTP. Try again later."}

	ErrInternal = &Error{KindInternal, "INTERNAL", "Internal server error."}
)

// LockoutError reports a locked account and how long the lock lasts
type LockoutError struct {
	SecondsRemaining int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("Account locked due to multiple failed attempts. Try again in %d seconds.", e.SecondsRemaining)
}

func (e *LockoutError) Unwrap() error {
	return ErrAccountLocked
}

// KindOf returns the kind of err; unknown errors are internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the user-facing text for err
func PublicMessage(err error) string {
	var lockErr *LockoutError
	if errors.As(err, &lockErr) {
		return lockErr.Error()
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}

func invalidInput(base *Error, detail string) error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: base.Message + ": " + detail}
}

func internalError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}
