package recipient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
)

// Repository defines recipient persistence operations
type Repository interface {
	Create(ctx context.Context, r *entities.Recipient) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*entities.Recipient, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Recipient, error)
	Update(ctx context.Context, r *entities.Recipient) error
	ToggleFavorite(ctx context.Context, userID, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// Service handles the user's address book
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new recipient service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Create validates and stores a new recipient
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in entities.RecipientInput) (*entities.Recipient, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	recipient := &entities.Recipient{
		ID:            uuid.New(),
		UserID:        userID,
		Name:          in.Name,
		WalletAddress: in.WalletAddress,
		Email:         in.Email,
		Country:       in.Country,
		Note:          in.Note,
		IsFavorite:    in.IsFavorite,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, recipient); err != nil {
		s.logger.Error("Failed to store recipient", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, err
	}

	s.logger.Info("Recipient created",
		zap.String("id", recipient.ID.String()),
		zap.String("user_id", userID.String()))
	return recipient, nil
}

// Get returns a recipient owned by userID
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*entities.Recipient, error) {
	recipient, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, apperrors.NotFoundError("recipient")
	}
	return recipient, nil
}

// List returns favorites first, then by name
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*entities.Recipient, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Update replaces the writable fields of a recipient
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, in entities.RecipientInput) (*entities.Recipient, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	recipient, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	recipient.Name = in.Name
	recipient.WalletAddress = in.WalletAddress
	recipient.Email = in.Email
	recipient.Country = in.Country
	recipient.Note = in.Note
	recipient.IsFavorite = in.IsFavorite

	if err := s.repo.Update(ctx, recipient); err != nil {
		return nil, err
	}
	return recipient, nil
}

// ToggleFavorite flips the favorite flag and returns the new value
func (s *Service) ToggleFavorite(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	return s.repo.ToggleFavorite(ctx, userID, id)
}

// Delete removes a recipient
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("Recipient deleted", zap.String("id", id.String()), zap.String("user_id", userID.String()))
	return nil
}

func normalize(in entities.RecipientInput) (entities.RecipientInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, apperrors.ValidationError("name", "name is required")
	}

	in.WalletAddress = strings.TrimSpace(in.WalletAddress)
	if err := validateAddress(in.WalletAddress); err != nil {
		return in, err
	}
	in.WalletAddress = common.HexToAddress(in.WalletAddress).Hex()

	if in.Country != nil {
		country := strings.ToUpper(strings.TrimSpace(*in.Country))
		if len(country) != 2 {
			return in, apperrors.ValidationError("country", "country must be an ISO 3166 alpha-2 code")
		}
		in.Country = &country
	}
	return in, nil
}

// validateAddress validates EVM address format
func validateAddress(address string) error {
	if len(address) != 42 || !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return apperrors.ValidationError("wallet_address", fmt.Sprintf("invalid EVM address %q", address))
	}
	return nil
}
