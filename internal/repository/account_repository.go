// Package repository defines the credential store contract shared by the
// memory, postgres and scylla implementations.
package repository

import (
	"context"
	"errors"

	"skillswap-auth/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
)

// AccountRepository stores one document per account. Save replaces the whole
// document; concurrent saves resolve last-write-wins.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	Save(ctx context.Context, account *models.Account) error
	HealthCheck(ctx context.Context) error
}

// CodeSealer encrypts one-time codes before they reach durable storage
type CodeSealer interface {
	Seal(ctx context.Context, plaintext, keyPurpose string) (string, error)
	Open(ctx context.Context, sealed string) (string, error)
}

// Key purposes used when sealing codes
const (
	PurposeMFACode   = "mfa_code"
	PurposeResetCode = "reset_code"
)
