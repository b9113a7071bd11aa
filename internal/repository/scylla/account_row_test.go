package scylla

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillswap-auth/internal/models"
)

type tagSealer struct{}

func (tagSealer) Seal(_ context.Context, plaintext, keyPurpose string) (string, error) {
	return "sealed(" + keyPurpose + "):" + plaintext, nil
}

func (tagSealer) Open(_ context.Context, sealed string) (string, error) {
	return sealed[strings.Index(sealed, ":")+1:], nil
}

func TestSchemaStatements(t *testing.T) {
	stmts := SchemaStatements()
	require.Len(t, stmts, 2)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS accounts"))
	assert.True(t, strings.HasPrefix(stmts[1], "CREATE TABLE IF NOT EXISTS account_email_index"))
}

func TestEncodeAccountBindsNulls(t *testing.T) {
	acct := &models.Account{ID: "6f1c2a59-0d43-4d0c-9c55-0d6b5b1e7f10", Email: "ada@example.com", PasswordHash: "h"}

	enc, err := encodeAccount(context.Background(), tagSealer{}, acct)
	require.NoError(t, err)

	values := enc.values()
	require.Len(t, values, 13)
	assert.Nil(t, values[4].(*time.Time))
	assert.Nil(t, values[7].(*string))
	assert.Nil(t, values[8].(*time.Time))
	assert.Len(t, enc.mutable(), 12)
}

func TestAccountRowRoundTrip(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2025, 2, 1, 10, 10, 0, 0, time.UTC)
	changed := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	acct := &models.Account{
		ID:                  "6f1c2a59-0d43-4d0c-9c55-0d6b5b1e7f10",
		Name:                "Ada",
		Email:               "ada@example.com",
		PasswordHash:        "hash:now",
		PasswordHistory:     []string{"hash:old"},
		PasswordChangedAt:   &changed,
		FailedLoginAttempts: 2,
		PasswordReset:       &models.OneTimeCode{Code: "000123", ExpiresAt: expires},
		CreatedAt:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:           time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
	}

	enc, err := encodeAccount(ctx, tagSealer{}, acct)
	require.NoError(t, err)
	v := enc.values()
	assert.Equal(t, "sealed(reset_code):000123", *v[9].(*string))

	row := accountRow{
		ID:                  acct.ID,
		Name:                acct.Name,
		Email:               acct.Email,
		PasswordHash:        acct.PasswordHash,
		PasswordHistory:     acct.PasswordHistory,
		PasswordChangedAt:   changed,
		FailedLoginAttempts: 2,
		ResetCode:           *v[9].(*string),
		ResetExpires:        expires,
		CreatedAt:           acct.CreatedAt,
		UpdatedAt:           acct.UpdatedAt,
	}
	got, err := row.decode(ctx, tagSealer{})
	require.NoError(t, err)
	assert.Equal(t, acct, got)
}

func TestAccountRowDestOrder(t *testing.T) {
	var row accountRow
	dest := row.dest()
	require.Len(t, dest, 14)
	*dest[2].(*string) = "ada@example.com"
	*dest[6].(*int) = 4
	assert.Equal(t, "ada@example.com", row.Email)
	assert.Equal(t, 4, row.FailedLoginAttempts)
}
