package models

import "time"

// OneTimeCode is a short-lived numeric code and its expiry, always set together
type OneTimeCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Account is the persisted credential record for one registered user
type Account struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`

	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	// PasswordHistory holds prior hashes, oldest first
	PasswordHistory []string `json:"-"`

	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LockUntil           *time.Time `json:"lock_until,omitempty"`

	MFA           *OneTimeCode `json:"-"`
	PasswordReset *OneTimeCode `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state
func (a Account) Clone() Account {
	out := a
	if a.PasswordHistory != nil {
		out.PasswordHistory = append([]string(nil), a.PasswordHistory...)
	}
	out.PasswordChangedAt = cloneTime(a.PasswordChangedAt)
	out.LockUntil = cloneTime(a.LockUntil)
	if a.MFA != nil {
		mfa := *a.MFA
		out.MFA = &mfa
	}
	if a.PasswordReset != nil {
		reset := *a.PasswordReset
		out.PasswordReset = &reset
	}
	return out
}

// PasswordAnchor is the instant password age is measured from
func (a Account) PasswordAnchor() time.Time {
	if a.PasswordChangedAt != nil {
		return *a.PasswordChangedAt
	}
	return a.CreatedAt
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
