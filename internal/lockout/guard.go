// Package lockout tracks failed password attempts and temporary account locks.
package lockout

import (
	"math"
	"time"

	"skillswap-auth/internal/models"
)

const (
	DefaultMaxAttempts  = 5
	DefaultLockDuration = 10 * time.Minute
)

type State int

const (
	Open State = iota
	Locked
)

func (s State) String() string {
	if s == Locked {
		return "LOCKED"
	}
	return "OPEN"
}

// Decision is the outcome of one login attempt against the guard
type Decision struct {
	Allowed          bool
	Locked           bool
	SecondsRemaining int
	// LockedNow is set when this attempt triggered the lock
	LockedNow bool
}

type Guard struct {
	maxAttempts  int
	lockDuration time.Duration
}

func NewGuard(maxAttempts int, lockDuration time.Duration) *Guard {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockDuration <= 0 {
		lockDuration = DefaultLockDuration
	}
	return &Guard{maxAttempts: maxAttempts, lockDuration: lockDuration}
}

// Status evaluates the lock lazily: an elapsed LockUntil means Open.
func (g *Guard) Status(account models.Account, now time.Time) (State, int) {
	if account.LockUntil == nil || !now.Before(*account.LockUntil) {
		return Open, 0
	}
	return Locked, secondsUntil(*account.LockUntil, now)
}

// CheckAndRecordAttempt applies one password check result. A locked account
// is returned unchanged.
func (g *Guard) CheckAndRecordAttempt(account models.Account, passwordMatches bool, now time.Time) (models.Account, Decision) {
	if state, remaining := g.Status(account, now); state == Locked {
		return account, Decision{Locked: true, SecondsRemaining: remaining}
	}

	next := account.Clone()
	next.UpdatedAt = now.UTC()

	if passwordMatches {
		next.FailedLoginAttempts = 0
		next.LockUntil = nil
		return next, Decision{Allowed: true}
	}

	next.FailedLoginAttempts++
	if next.FailedLoginAttempts >= g.maxAttempts {
		until := now.Add(g.lockDuration).UTC()
		next.LockUntil = &until
		return next, Decision{LockedNow: true, SecondsRemaining: secondsUntil(until, now)}
	}
	return next, Decision{}
}

func secondsUntil(until, now time.Time) int {
	return int(math.Ceil(until.Sub(now).Seconds()))
}
