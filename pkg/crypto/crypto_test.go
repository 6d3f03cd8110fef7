package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, h.ValidatePassword("correct horse", hash))
	assert.False(t, h.ValidatePassword("wrong horse", hash))
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, NewPasswordHasher(bcrypt.MinCost+1).NeedsRehash(hash))
	assert.True(t, h.NeedsRehash("not-a-hash"))
}

func TestNewPasswordHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).cost)
}
