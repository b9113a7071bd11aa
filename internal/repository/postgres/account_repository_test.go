package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillswap-auth/internal/models"
	"skillswap-auth/internal/repository"
)

type prefixSealer struct{}

func (prefixSealer) Seal(_ context.Context, plaintext, keyPurpose string) (string, error) {
	return keyPurpose + ":" + plaintext, nil
}

func (prefixSealer) Open(_ context.Context, sealed string) (string, error) {
	i := strings.IndexByte(sealed, ':')
	if i < 0 {
		return "", errors.New("bad envelope")
	}
	return sealed[i+1:], nil
}

func newMock(t *testing.T) (*AccountRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewAccountRepository(db, prefixSealer{})
	repo.now = func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) }
	return repo, mock
}

func TestFindByEmail(t *testing.T) {
	repo, mock := newMock(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lock := created.Add(time.Hour)
	expires := created.Add(10 * time.Minute)

	rows := sqlmock.NewRows(accountColumns).AddRow(
		"6f1c2a59-0d43-4d0c-9c55-0d6b5b1e7f10",
		"Ada",
		"ada@example.com",
		"hash:current",
		[]byte(`["hash:a","hash:b"]`),
		nil,
		int64(3),
		lock,
		"mfa_code:123456",
		expires,
		nil,
		nil,
		created,
		created,
	)
	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE email = \$1 LIMIT 1`).
		WithArgs("ada@example.com").
		WillReturnRows(rows)

	acct, err := repo.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", acct.Name)
	assert.Equal(t, []string{"hash:a", "hash:b"}, acct.PasswordHistory)
	assert.Nil(t, acct.PasswordChangedAt)
	assert.Equal(t, 3, acct.FailedLoginAttempts)
	require.NotNil(t, acct.LockUntil)
	assert.Equal(t, lock, *acct.LockUntil)
	assert.Equal(t, &models.OneTimeCode{Code: "123456", ExpiresAt: expires}, acct.MFA)
	assert.Nil(t, acct.PasswordReset)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByEmailNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByEmailDBError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM accounts`).WillReturnError(sql.ErrConnDone)

	_, err := repo.FindByEmail(context.Background(), "ada@example.com")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NotErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestFindByIDRejectsMalformedID(t *testing.T) {
	repo, mock := newMock(t)

	_, err := repo.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO accounts \(id,name,email,password_hash,password_history,(.+)\) VALUES \((.+)\)`).
		WithArgs(
			sqlmock.AnyArg(), "Ada", "ada@example.com", "hash:pw", "[]",
			nil, 0, nil, nil, nil, nil, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	acct := &models.Account{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash:pw"}
	require.NoError(t, repo.Create(context.Background(), acct))
	assert.NotEmpty(t, acct.ID)
	assert.Equal(t, repo.now(), acct.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	err := repo.Create(context.Background(), &models.Account{Email: "ada@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, repository.ErrEmailTaken)
}

func TestSaveSealsCodes(t *testing.T) {
	repo, mock := newMock(t)
	expires := time.Date(2025, 5, 1, 9, 10, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE accounts SET name = \$1, (.+) WHERE id = \$13`).
		WithArgs(
			"Ada", "ada@example.com", "hash:pw", `["hash:old"]`,
			nil, 0, nil,
			"mfa_code:654321", expires,
			nil, nil,
			repo.now(),
			"6f1c2a59-0d43-4d0c-9c55-0d6b5b1e7f10",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	acct := &models.Account{
		ID:              "6f1c2a59-0d43-4d0c-9c55-0d6b5b1e7f10",
		Name:            "Ada",
		Email:           "ada@example.com",
		PasswordHash:    "hash:pw",
		PasswordHistory: []string{"hash:old"},
		MFA:             &models.OneTimeCode{Code: "654321", ExpiresAt: expires},
	}
	require.NoError(t, repo.Save(context.Background(), acct))
	assert.Equal(t, repo.now(), acct.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMissingRow(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`UPDATE accounts`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), &models.Account{ID: "6f1c2a59-0d43-4d0c-9c55-0d6b5b1e7f10"})
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestRunMigrationsUsesEmbeddedFS(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var dir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, d string, _ ...goose.OptionsFunc) error {
		dir = d
		return nil
	}
	require.NoError(t, RunMigrations(context.Background(), db))
	assert.Equal(t, ".", dir)

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	assert.ErrorContains(t, RunMigrations(context.Background(), db), "failed to run migrations")
}
