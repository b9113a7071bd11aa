package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillswap-auth/internal/models"
	"skillswap-auth/internal/repository"
)

var _ repository.AccountRepository = (*AccountRepository)(nil)

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository()

	acct := &models.Account{Name: "Alice", Email: "alice@example.com", PasswordHash: "h"}
	require.NoError(t, repo.Create(ctx, acct))
	assert.NotEmpty(t, acct.ID)
	assert.False(t, acct.CreatedAt.IsZero())

	byEmail, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, byEmail.ID)

	byID, err := repo.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.Name)
}

func TestEmailIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository()
	require.NoError(t, repo.Create(ctx, &models.Account{Email: "alice@example.com"}))

	_, err := repo.FindByEmail(ctx, "Alice@example.com")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
	assert.NoError(t, repo.Create(ctx, &models.Account{Email: "Alice@example.com"}))
}

func TestDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository()
	require.NoError(t, repo.Create(ctx, &models.Account{Email: "alice@example.com"}))

	err := repo.Create(ctx, &models.Account{Email: "alice@example.com"})
	assert.ErrorIs(t, err, repository.ErrEmailTaken)
	assert.Equal(t, 1, repo.Len())
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository()

	_, err := repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
	_, err = repo.FindByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
	assert.ErrorIs(t, repo.Save(ctx, &models.Account{ID: "missing"}), repository.ErrAccountNotFound)
}

func TestSaveReplacesDocumentAndIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository()
	acct := &models.Account{Email: "alice@example.com", PasswordHistory: []string{"h0"}}
	require.NoError(t, repo.Create(ctx, acct))

	loaded, err := repo.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	loaded.PasswordHistory[0] = "mutated"
	loaded.MFA = &models.OneTimeCode{Code: "123456", ExpiresAt: time.Now()}

	again, err := repo.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"h0"}, again.PasswordHistory)
	assert.Nil(t, again.MFA)

	require.NoError(t, repo.Save(ctx, loaded))
	again, err = repo.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"mutated"}, again.PasswordHistory)
	require.NotNil(t, again.MFA)
	assert.Equal(t, "123456", again.MFA.Code)
}

func TestConcurrentSavesLastWriteWins(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository()
	acct := &models.Account{Email: "alice@example.com"}
	require.NoError(t, repo.Create(ctx, acct))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			a, err := repo.FindByID(ctx, acct.ID)
			if err != nil {
				return
			}
			a.FailedLoginAttempts = n
			_ = repo.Save(ctx, a)
		}(i)
	}
	wg.Wait()

	final, err := repo.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, final.FailedLoginAttempts, 0)
	assert.Less(t, final.FailedLoginAttempts, 20)
}
