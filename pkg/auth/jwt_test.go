package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret", "", 60, 120)
	userID := uuid.New()

	pair, err := issuer.GenerateTokenPair(userID, "ada@example.com", "user")
	require.NoError(t, err)
	assert.True(t, pair.RefreshExpiresAt.After(pair.ExpiresAt))

	claims, err := issuer.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)

	refresh, err := issuer.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID, refresh.UserID)
}

func TestIssuer_RejectsWrongTokenType(t *testing.T) {
	issuer := NewIssuer("test-secret", "", 60, 120)
	pair, err := issuer.GenerateTokenPair(uuid.New(), "a@b.co", "user")
	require.NoError(t, err)

	_, err = issuer.ValidateToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsForeignSecretAndExpiry(t *testing.T) {
	issuer := NewIssuer("secret-a", "", 60, 120)
	other := NewIssuer("secret-b", "", 60, 120)
	pair, err := issuer.GenerateTokenPair(uuid.New(), "a@b.co", "user")
	require.NoError(t, err)

	_, err = other.ValidateToken(pair.AccessToken)
	assert.Error(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.ValidateToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestHashToken(t *testing.T) {
	assert.Len(t, HashToken("abc"), 64)
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}
