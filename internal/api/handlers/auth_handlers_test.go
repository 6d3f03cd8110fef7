package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
)

type fakeIdentity struct {
	IdentityService
	signedOut []string
}

func (f *fakeIdentity) SignIn(_ context.Context, req entities.SignInRequest) (*entities.AuthResponse, error) {
	if req.Password != "correct-horse" {
		return nil, apperrors.InvalidCredentialsError()
	}
	return &entities.AuthResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (f *fakeIdentity) SignOut(_ context.Context, access, refresh string) error {
	f.signedOut = append(f.signedOut, access, refresh)
	return nil
}

func (f *fakeIdentity) ResolveRecipientByPhone(_ context.Context, phone string) (*entities.ResolvedRecipient, error) {
	if phone == "+919800000002" {
		return nil, apperrors.WalletNotConfiguredError()
	}
	return nil, apperrors.NotFoundError("user")
}

func TestAuthHandlers(t *testing.T) {
	identity := &fakeIdentity{}
	h := NewAuthHandlers(identity, zap.NewNop())

	r, api := newRouter(uuid.New())
	r.POST("/auth/signin", h.SignIn)
	api.POST("/auth/signout", h.SignOut)
	api.GET("/users/resolve", h.ResolveRecipient)

	t.Run("sign in", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/auth/signin", entities.SignInRequest{Email: "ada@example.com", Password: "correct-horse"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"accessToken":"access"`)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/auth/signin", entities.SignInRequest{Email: "ada@example.com", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, w).Code)
	})

	t.Run("malformed email", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/auth/signin", gin.H{"email": "ada", "password": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("sign out revokes both tokens", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/auth/signout", SignOutRequest{RefreshToken: "refresh"})
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{testToken, "refresh"}, identity.signedOut)
	})

	t.Run("resolve without wallet", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/users/resolve?phone=%2B919800000002", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "wallet not configured", decodeError(t, w).Message)
	})

	t.Run("resolve unknown phone", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/users/resolve?phone=%2B10000000000", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "user not found", decodeError(t, w).Message)
	})
}
