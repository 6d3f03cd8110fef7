package recipient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, r *entities.Recipient) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*entities.Recipient, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Recipient), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Recipient, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Recipient), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, r *entities.Recipient) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockRepository) ToggleFavorite(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

func strPtr(s string) *string { return &s }

func TestService_Create(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, zap.NewNop())
	userID := uuid.New()

	repo.On("Create", mock.Anything, mock.MatchedBy(func(r *entities.Recipient) bool {
		return r.UserID == userID && r.Name == "Priya" && *r.Country == "IN"
	})).Return(nil)

	got, err := svc.Create(context.Background(), userID, entities.RecipientInput{
		Name:          "  Priya ",
		WalletAddress: "0x2222222222222222222222222222222222222222",
		Country:       strPtr("in"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	repo.AssertExpectations(t)
}

func TestService_CreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		input entities.RecipientInput
		field string
	}{
		{"missing name", entities.RecipientInput{WalletAddress: "0x2222222222222222222222222222222222222222"}, "name"},
		{"short address", entities.RecipientInput{Name: "A", WalletAddress: "0x1234"}, "wallet_address"},
		{"no prefix", entities.RecipientInput{Name: "A", WalletAddress: "2222222222222222222222222222222222222222"}, "wallet_address"},
		{"bad country", entities.RecipientInput{Name: "A", WalletAddress: "0x2222222222222222222222222222222222222222", Country: strPtr("IND")}, "country"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			_, err := NewService(repo, zap.NewNop()).Create(context.Background(), uuid.New(), tt.input)

			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidInput(err))
			assert.Equal(t, tt.field, apperrors.GetErrorDetails(err)["field"])
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestService_GetMissing(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	_, err := NewService(repo, zap.NewNop()).Get(context.Background(), uuid.New(), uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_Update(t *testing.T) {
	repo := new(MockRepository)
	userID, id := uuid.New(), uuid.New()
	existing := &entities.Recipient{ID: id, UserID: userID, Name: "Old", WalletAddress: "0x2222222222222222222222222222222222222222"}

	repo.On("GetByID", mock.Anything, userID, id).Return(existing, nil)
	repo.On("Update", mock.Anything, existing).Return(nil)

	got, err := NewService(repo, zap.NewNop()).Update(context.Background(), userID, id, entities.RecipientInput{
		Name:          "New",
		WalletAddress: "0x3333333333333333333333333333333333333333",
		IsFavorite:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.True(t, got.IsFavorite)
	repo.AssertExpectations(t)
}

func TestService_DeletePropagatesNotFound(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Delete", mock.Anything, mock.Anything, mock.Anything).Return(apperrors.NotFoundError("recipient"))

	err := NewService(repo, zap.NewNop()).Delete(context.Background(), uuid.New(), uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
