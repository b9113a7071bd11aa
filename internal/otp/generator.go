// Package otp issues and verifies six digit email codes.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"skillswap-auth/internal/models"
)

const (
	DefaultTTL = 10 * time.Minute

	minCode = 100000
	maxCode = 999999
)

var (
	ErrNoPending = errors.New("no pending code")
	ErrExpired   = errors.New("code expired")
	ErrMismatch  = errors.New("code mismatch")
)

type Generator struct {
	random io.Reader
	ttl    time.Duration
}

// NewGenerator draws from crypto/rand. A nil reader falls back to it as well.
func NewGenerator(ttl time.Duration) *Generator {
	return NewGeneratorWithReader(rand.Reader, ttl)
}

func NewGeneratorWithReader(random io.Reader, ttl time.Duration) *Generator {
	if random == nil {
		random = rand.Reader
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Generator{random: random, ttl: ttl}
}

// Generate returns a code uniformly drawn from 100000..999999
func (g *Generator) Generate() (string, error) {
	n, err := rand.Int(g.random, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+minCode), nil
}

// Issue generates a code expiring ttl after now
func (g *Generator) Issue(now time.Time) (models.OneTimeCode, error) {
	code, err := g.Generate()
	if err != nil {
		return models.OneTimeCode{}, err
	}
	return models.OneTimeCode{Code: code, ExpiresAt: now.Add(g.ttl).UTC()}, nil
}

// Verify checks a submitted code. Both sides are trimmed and compared exactly.
// A code is still valid at the instant it expires.
func Verify(stored *models.OneTimeCode, submitted string, now time.Time) error {
	if stored == nil || stored.Code == "" || stored.ExpiresAt.IsZero() {
		return ErrNoPending
	}
	if now.After(stored.ExpiresAt) {
		return ErrExpired
	}
	want := strings.TrimSpace(stored.Code)
	got := strings.TrimSpace(submitted)
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return ErrMismatch
	}
	return nil
}
