package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillswap-auth/internal/config"
)

func fastParams() Argon2Params {
	return Argon2Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndCompare(t *testing.T) {
	h := NewHasherWithParams(fastParams(), "pepper")

	encoded, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$"), encoded)

	ok, err := h.Compare(encoded, "Passw0rd!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(encoded, "Passw0rd?")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := NewHasherWithParams(fastParams(), "")

	a, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	b, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPepperIsRequiredToVerify(t *testing.T) {
	encoded, err := NewHasherWithParams(fastParams(), "pepper-one").Hash("Passw0rd!")
	require.NoError(t, err)

	ok, err := NewHasherWithParams(fastParams(), "pepper-two").Compare(encoded, "Passw0rd!")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := NewHasherWithParams(fastParams(), "").Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestCompareMalformed(t *testing.T) {
	h := NewHasherWithParams(fastParams(), "")

	tests := []struct {
		name    string
		encoded string
		want    error
	}{
		{"empty", "", ErrInvalidHash},
		{"bcrypt", "$2a$10$abcdefghijklmnopqrstuv", ErrInvalidHash},
		{"bad version", "$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5", ErrIncompatibleVersion},
		{"bad params", "$argon2id$v=19$m=x,t=1,p=1$c2FsdHNhbHQ$a2V5", ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5", ErrInvalidHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Compare(tt.encoded, "Passw0rd!")
			assert.False(t, ok)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := NewHasherWithParams(fastParams(), "")
	encoded, err := weak.Hash("Passw0rd!")
	require.NoError(t, err)

	stronger := fastParams()
	stronger.Iterations = 2
	needs, err := NewHasherWithParams(stronger, "").NeedsRehash(encoded)
	require.NoError(t, err)
	assert.True(t, needs)

	needs, err = weak.NeedsRehash(encoded)
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestNewHasherFromConfig(t *testing.T) {
	cfg := &config.Config{Hashing: config.HashingConfig{
		Argon2MemoryCost:  8 * 1024,
		Argon2TimeCost:    1,
		Argon2Parallelism: 1,
		Pepper:            "p",
	}}
	h := NewHasher(cfg)
	assert.Equal(t, uint32(8*1024), h.params.Memory)
	assert.Equal(t, uint32(1), h.params.Iterations)
	assert.Equal(t, uint8(1), h.params.Parallelism)
	assert.Equal(t, "p", h.pepper)
}
