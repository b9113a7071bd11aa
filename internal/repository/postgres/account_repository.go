package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"skillswap-auth/internal/models"
	"skillswap-auth/internal/repository"
)

const uniqueViolation = "23505"

var accountColumns = []string{
	"id",
	"name",
	"email",
	"password_hash",
	"password_history",
	"password_changed_at",
	"failed_login_attempts",
	"lock_until",
	"mfa_code",
	"mfa_code_expires",
	"reset_code",
	"reset_code_expires",
	"created_at",
	"updated_at",
}

type AccountRepository struct {
	db     DBTX
	sealer repository.CodeSealer
	now    func() time.Time
}

func NewAccountRepository(db DBTX, sealer repository.CodeSealer) *AccountRepository {
	return &AccountRepository{db: db, sealer: sealer, now: time.Now}
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, sq.Eq{"email": email})
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrAccountNotFound
	}
	return r.findOne(ctx, sq.Eq{"id": id})
}

func (r *AccountRepository) findOne(ctx context.Context, where sq.Eq) (*models.Account, error) {
	query, args, err := sq.Select(accountColumns...).
		From("accounts").
		Where(where).
		Limit(1).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var (
		acct                     models.Account
		history                  []byte
		changedAt, lockUntil     sql.NullTime
		mfaCode, resetCode       sql.NullString
		mfaExpires, resetExpires sql.NullTime
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&acct.ID,
		&acct.Name,
		&acct.Email,
		&acct.PasswordHash,
		&history,
		&changedAt,
		&acct.FailedLoginAttempts,
		&lockUntil,
		&mfaCode,
		&mfaExpires,
		&resetCode,
		&resetExpires,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrAccountNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &acct.PasswordHistory); err != nil {
			return nil, fmt.Errorf("decode password history: %w", err)
		}
	}
	acct.PasswordChangedAt = timePtr(changedAt)
	acct.LockUntil = timePtr(lockUntil)
	acct.CreatedAt = acct.CreatedAt.UTC()
	acct.UpdatedAt = acct.UpdatedAt.UTC()

	if acct.MFA, err = repository.OpenCode(ctx, r.sealer, sealed(mfaCode, mfaExpires)); err != nil {
		return nil, err
	}
	if acct.PasswordReset, err = repository.OpenCode(ctx, r.sealer, sealed(resetCode, resetExpires)); err != nil {
		return nil, err
	}
	return &acct, nil
}

// Create assigns an ID and timestamps when missing
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	row, err := r.encode(ctx, account)
	if err != nil {
		return err
	}

	query, args, err := sq.Insert("accounts").
		Columns(accountColumns...).
		Values(row...).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// Save overwrites every mutable column of the row
func (r *AccountRepository) Save(ctx context.Context, account *models.Account) error {
	prevUpdated := account.UpdatedAt
	account.UpdatedAt = r.now().UTC()

	row, err := r.encode(ctx, account)
	if err != nil {
		account.UpdatedAt = prevUpdated
		return err
	}

	query, args, err := sq.Update("accounts").
		Set("name", row[1]).
		Set("email", row[2]).
		Set("password_hash", row[3]).
		Set("password_history", row[4]).
		Set("password_changed_at", row[5]).
		Set("failed_login_attempts", row[6]).
		Set("lock_until", row[7]).
		Set("mfa_code", row[8]).
		Set("mfa_code_expires", row[9]).
		Set("reset_code", row[10]).
		Set("reset_code_expires", row[11]).
		Set("updated_at", row[13]).
		Where(sq.Eq{"id": account.ID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return repository.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

// encode returns the row values in accountColumns order
func (r *AccountRepository) encode(ctx context.Context, account *models.Account) ([]any, error) {
	history := account.PasswordHistory
	if history == nil {
		history = []string{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("encode password history: %w", err)
	}

	mfa, err := repository.SealCode(ctx, r.sealer, account.MFA, repository.PurposeMFACode)
	if err != nil {
		return nil, err
	}
	reset, err := repository.SealCode(ctx, r.sealer, account.PasswordReset, repository.PurposeResetCode)
	if err != nil {
		return nil, err
	}

	return []any{
		account.ID,
		account.Name,
		account.Email,
		account.PasswordHash,
		string(historyJSON),
		nullTime(account.PasswordChangedAt),
		account.FailedLoginAttempts,
		nullTime(account.LockUntil),
		nullString(mfa.Value),
		nullTime(mfa.ExpiresAt),
		nullString(reset.Value),
		nullTime(reset.ExpiresAt),
		account.CreatedAt,
		account.UpdatedAt,
	}, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrEmailTaken
	}
	return fmt.Errorf("db error: %w", err)
}

func sealed(value sql.NullString, expires sql.NullTime) repository.SealedCode {
	var out repository.SealedCode
	if value.Valid {
		v := value.String
		out.Value = &v
	}
	out.ExpiresAt = timePtr(expires)
	return out
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
