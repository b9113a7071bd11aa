package repository

import (
	"context"
	"fmt"
	"time"

	"skillswap-auth/internal/models"
)

// SealedCode is the storage form of a models.OneTimeCode
type SealedCode struct {
	Value     *string
	ExpiresAt *time.Time
}

// SealCode encrypts code for storage. A nil code yields two nulls.
func SealCode(ctx context.Context, sealer CodeSealer, code *models.OneTimeCode, purpose string) (SealedCode, error) {
	if code == nil {
		return SealedCode{}, nil
	}
	sealed, err := sealer.Seal(ctx, code.Code, purpose)
	if err != nil {
		return SealedCode{}, fmt.Errorf("seal %s: %w", purpose, err)
	}
	expires := code.ExpiresAt.UTC()
	return SealedCode{Value: &sealed, ExpiresAt: &expires}, nil
}

// OpenCode reverses SealCode. Either column being null means no code.
func OpenCode(ctx context.Context, sealer CodeSealer, stored SealedCode) (*models.OneTimeCode, error) {
	if stored.Value == nil || *stored.Value == "" || stored.ExpiresAt == nil {
		return nil, nil
	}
	plain, err := sealer.Open(ctx, *stored.Value)
	if err != nil {
		return nil, fmt.Errorf("open code: %w", err)
	}
	return &models.OneTimeCode{Code: plain, ExpiresAt: stored.ExpiresAt.UTC()}, nil
}
