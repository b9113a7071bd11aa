package scylla

import (
	"context"
	"time"

	"skillswap-auth/internal/models"
	"skillswap-auth/internal/repository"
)

// accountRow mirrors one accounts partition. Null timestamps scan as the zero
// time and null text as "".
type accountRow struct {
	ID                  string
	Name                string
	Email               string
	PasswordHash        string
	PasswordHistory     []string
	PasswordChangedAt   time.Time
	FailedLoginAttempts int
	LockUntil           time.Time
	MFACode             string
	MFAExpires          time.Time
	ResetCode           string
	ResetExpires        time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// dest returns scan targets in GetAccountByID column order
func (r *accountRow) dest() []interface{} {
	return []interface{}{
		&r.ID, &r.Name, &r.Email, &r.PasswordHash, &r.PasswordHistory,
		&r.PasswordChangedAt, &r.FailedLoginAttempts, &r.LockUntil,
		&r.MFACode, &r.MFAExpires, &r.ResetCode, &r.ResetExpires,
		&r.CreatedAt, &r.UpdatedAt,
	}
}

func (r *accountRow) decode(ctx context.Context, sealer repository.CodeSealer) (*models.Account, error) {
	acct := &models.Account{
		ID:                  r.ID,
		Name:                r.Name,
		Email:               r.Email,
		PasswordHash:        r.PasswordHash,
		PasswordHistory:     r.PasswordHistory,
		PasswordChangedAt:   optionalTime(r.PasswordChangedAt),
		FailedLoginAttempts: r.FailedLoginAttempts,
		LockUntil:           optionalTime(r.LockUntil),
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}

	var err error
	acct.MFA, err = repository.OpenCode(ctx, sealer, repository.SealedCode{
		Value:     optionalString(r.MFACode),
		ExpiresAt: optionalTime(r.MFAExpires),
	})
	if err != nil {
		return nil, err
	}
	acct.PasswordReset, err = repository.OpenCode(ctx, sealer, repository.SealedCode{
		Value:     optionalString(r.ResetCode),
		ExpiresAt: optionalTime(r.ResetExpires),
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// encodedAccount holds bind values; nil pointers bind as null
type encodedAccount struct {
	account *models.Account
	mfa     repository.SealedCode
	reset   repository.SealedCode
}

func encodeAccount(ctx context.Context, sealer repository.CodeSealer, account *models.Account) (*encodedAccount, error) {
	mfa, err := repository.SealCode(ctx, sealer, account.MFA, repository.PurposeMFACode)
	if err != nil {
		return nil, err
	}
	reset, err := repository.SealCode(ctx, sealer, account.PasswordReset, repository.PurposeResetCode)
	if err != nil {
		return nil, err
	}
	return &encodedAccount{account: account, mfa: mfa, reset: reset}, nil
}

// values follows InsertAccount after the partition key columns
func (e *encodedAccount) values() []interface{} {
	a := e.account
	return []interface{}{
		a.Name, a.Email, a.PasswordHash, a.PasswordHistory,
		a.PasswordChangedAt, a.FailedLoginAttempts, a.LockUntil,
		e.mfa.Value, e.mfa.ExpiresAt, e.reset.Value, e.reset.ExpiresAt,
		a.CreatedAt, a.UpdatedAt,
	}
}

// mutable follows the SET clause of UpdateAccount
func (e *encodedAccount) mutable() []interface{} {
	a := e.account
	return []interface{}{
		a.Name, a.Email, a.PasswordHash, a.PasswordHistory,
		a.PasswordChangedAt, a.FailedLoginAttempts, a.LockUntil,
		e.mfa.Value, e.mfa.ExpiresAt, e.reset.Value, e.reset.ExpiresAt,
		a.UpdatedAt,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
