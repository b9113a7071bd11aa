package lockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillswap-auth/internal/models"
)

var t0 = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func TestFailuresLockAtThreshold(t *testing.T) {
	g := NewGuard(5, 10*time.Minute)
	acct := models.Account{ID: "u1"}

	var d Decision
	for i := 1; i <= 4; i++ {
		acct, d = g.CheckAndRecordAttempt(acct, false, t0)
		assert.False(t, d.Allowed)
		assert.False(t, d.LockedNow)
		assert.Equal(t, i, acct.FailedLoginAttempts)
		assert.Nil(t, acct.LockUntil)
	}

	acct, d = g.CheckAndRecordAttempt(acct, false, t0)
	assert.True(t, d.LockedNow)
	assert.Equal(t, 600, d.SecondsRemaining)
	require.NotNil(t, acct.LockUntil)
	assert.Equal(t, t0.Add(10*time.Minute), *acct.LockUntil)

	state, remaining := g.Status(acct, t0.Add(time.Second))
	assert.Equal(t, Locked, state)
	assert.Equal(t, 599, remaining)
}

func TestLockedAccountIsNotMutated(t *testing.T) {
	g := NewGuard(5, 10*time.Minute)
	until := t0.Add(10 * time.Minute)
	acct := models.Account{FailedLoginAttempts: 5, LockUntil: &until}

	next, d := g.CheckAndRecordAttempt(acct, true, t0.Add(500*time.Millisecond))
	assert.False(t, d.Allowed)
	assert.True(t, d.Locked)
	assert.Equal(t, 600, d.SecondsRemaining)
	assert.Equal(t, acct, next)
}

func TestLockElapsesLazily(t *testing.T) {
	g := NewGuard(5, 10*time.Minute)
	until := t0.Add(10 * time.Minute)
	acct := models.Account{FailedLoginAttempts: 5, LockUntil: &until}

	state, _ := g.Status(acct, until)
	assert.Equal(t, Open, state)

	next, d := g.CheckAndRecordAttempt(acct, true, until)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, next.FailedLoginAttempts)
	assert.Nil(t, next.LockUntil)
}

func TestFailureAfterElapsedLockRelocks(t *testing.T) {
	g := NewGuard(5, 10*time.Minute)
	until := t0.Add(10 * time.Minute)
	acct := models.Account{FailedLoginAttempts: 5, LockUntil: &until}

	next, d := g.CheckAndRecordAttempt(acct, false, until.Add(time.Minute))
	assert.True(t, d.LockedNow)
	assert.Equal(t, 6, next.FailedLoginAttempts)
	require.NotNil(t, next.LockUntil)
	assert.Equal(t, until.Add(11*time.Minute), *next.LockUntil)
}

func TestSuccessResetsCounter(t *testing.T) {
	g := NewGuard(5, 10*time.Minute)
	acct := models.Account{FailedLoginAttempts: 3}

	next, d := g.CheckAndRecordAttempt(acct, true, t0)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, next.FailedLoginAttempts)
	assert.Equal(t, 3, acct.FailedLoginAttempts)
}

func TestSecondsRemainingRoundsUp(t *testing.T) {
	g := NewGuard(5, 10*time.Minute)
	until := t0.Add(10 * time.Minute)
	acct := models.Account{LockUntil: &until}

	_, remaining := g.Status(acct, until.Add(-1500*time.Millisecond))
	assert.Equal(t, 2, remaining)
}

func TestDefaults(t *testing.T) {
	g := NewGuard(0, 0)
	assert.Equal(t, DefaultMaxAttempts, g.maxAttempts)
	assert.Equal(t, DefaultLockDuration, g.lockDuration)
	assert.Equal(t, "LOCKED", Locked.String())
	assert.Equal(t, "OPEN", Open.String())
}
