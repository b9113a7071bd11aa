// Package memory is an in-process credential store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"skillswap-auth/internal/models"
	"skillswap-auth/internal/repository"
)

type AccountRepository struct {
	mu      sync.RWMutex
	byID    map[string]models.Account
	byEmail map[string]string
	now     func() time.Time
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[string]models.Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	acct := r.byID[id].Clone()
	return &acct, nil
}

func (r *AccountRepository) FindByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	acct := stored.Clone()
	return &acct, nil
}

// Create assigns an ID and timestamps when missing
func (r *AccountRepository) Create(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[account.Email]; taken {
		return repository.ErrEmailTaken
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	r.byID[account.ID] = account.Clone()
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *AccountRepository) Save(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[account.ID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	if prev.Email != account.Email {
		if _, taken := r.byEmail[account.Email]; taken {
			return repository.ErrEmailTaken
		}
		delete(r.byEmail, prev.Email)
		r.byEmail[account.Email] = account.ID
	}
	account.UpdatedAt = r.now().UTC()
	r.byID[account.ID] = account.Clone()
	return nil
}

func (r *AccountRepository) HealthCheck(context.Context) error {
	return nil
}

// Len returns the number of stored accounts
func (r *AccountRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
