package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap-auth/internal/bucketing"
	"skillswap-auth/internal/models"
	"skillswap-auth/internal/repository"
	"skillswap-auth/internal/util"
)

// AccountRepository keeps accounts in bucketed partitions with an email
// index claimed through a lightweight transaction. Email is fixed once
// registered.
type AccountRepository struct {
	client    *ScyllaClient
	bucketing *bucketing.BucketingManager
	sealer    repository.CodeSealer
	now       func() time.Time
}

func NewAccountRepository(client *ScyllaClient, bm *bucketing.BucketingManager, sealer repository.CodeSealer) *AccountRepository {
	return &AccountRepository{
		client:    client,
		bucketing: bm,
		sealer:    sealer,
		now:       time.Now,
	}
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var (
		bucket int
		id     gocql.UUID
	)
	query := r.client.Query(r.client.Prepared.GetAccountByEmail.Statement(), email).WithContext(ctx)
	if err := r.client.ScanWithRetry(query, &bucket, &id); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrAccountNotFound
		}
		util.Error("Failed to look up account by email",
			zap.String("email", util.MaskEmail(email)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	return r.get(ctx, bucket, id)
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	uid, err := gocql.ParseUUID(id)
	if err != nil {
		return nil, repository.ErrAccountNotFound
	}
	return r.get(ctx, r.bucketing.GetAccountBucket(id), uid)
}

func (r *AccountRepository) get(ctx context.Context, bucket int, id gocql.UUID) (*models.Account, error) {
	var row accountRow
	query := r.client.Query(r.client.Prepared.GetAccountByID.Statement(), bucket, id).WithContext(ctx)
	if err := r.client.ScanWithRetry(query, row.dest()...); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrAccountNotFound
		}
		util.Error("Failed to get account by ID",
			zap.String("account_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}
	return row.decode(ctx, r.sealer)
}

// Create claims the email first, then writes the account partition. A failed
// partition write releases the claim.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	uid, err := gocql.ParseUUID(account.ID)
	if err != nil {
		return fmt.Errorf("invalid account id: %w", err)
	}
	now := r.now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	bucket := r.bucketing.GetAccountBucket(account.ID)

	row, err := encodeAccount(ctx, r.sealer, account)
	if err != nil {
		return err
	}

	applied, err := r.client.Query(r.client.Prepared.ClaimEmail.Statement(),
		account.Email, bucket, uid, now).
		WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("failed to claim email: %w", err)
	}
	if !applied {
		return repository.ErrEmailTaken
	}

	args := append([]interface{}{bucket, uid}, row.values()...)
	if err := r.client.Query(r.client.Prepared.InsertAccount.Statement(), args...).WithContext(ctx).Exec(); err != nil {
		if relErr := r.client.Query(r.client.Prepared.ReleaseEmail.Statement(), account.Email).WithContext(ctx).Exec(); relErr != nil {
			util.Error("Failed to release email claim",
				zap.String("account_id", account.ID),
				zap.Error(relErr))
		}
		util.Error("Failed to create account",
			zap.String("account_id", account.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create account: %w", err)
	}

	util.Info("Account created",
		zap.String("account_id", account.ID),
		zap.Int("account_bucket", bucket))
	return nil
}

func (r *AccountRepository) Save(ctx context.Context, account *models.Account) error {
	uid, err := gocql.ParseUUID(account.ID)
	if err != nil {
		return repository.ErrAccountNotFound
	}
	prevUpdated := account.UpdatedAt
	account.UpdatedAt = r.now().UTC()

	row, err := encodeAccount(ctx, r.sealer, account)
	if err != nil {
		account.UpdatedAt = prevUpdated
		return err
	}

	args := append(row.mutable(), r.bucketing.GetAccountBucket(account.ID), uid)
	applied, err := r.client.Query(r.client.Prepared.UpdateAccount.Statement(), args...).
		WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		util.Error("Failed to save account",
			zap.String("account_id", account.ID),
			zap.Error(err))
		return fmt.Errorf("failed to save account: %w", err)
	}
	if !applied {
		return repository.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}
