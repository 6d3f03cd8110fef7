package entities

import (
	"time"

	"github.com/google/uuid"
)

// Recipient is an address book entry owned by a user
type Recipient struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	Name          string    `json:"name" db:"name"`
	WalletAddress string    `json:"wallet_address" db:"wallet_address"`
	Email         *string   `json:"email,omitempty" db:"email"`
	Country       *string   `json:"country,omitempty" db:"country"`
	Note          *string   `json:"note,omitempty" db:"note"`
	IsFavorite    bool      `json:"is_favorite" db:"is_favorite"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// RecipientInput carries the writable recipient fields
type RecipientInput struct {
	Name          string  `json:"name" validate:"required,max=120"`
	WalletAddress string  `json:"wallet_address" validate:"required,eth_addr"`
	Email         *string `json:"email,omitempty" validate:"omitempty,email"`
	Country       *string `json:"country,omitempty" validate:"omitempty,len=2"`
	Note          *string `json:"note,omitempty" validate:"omitempty,max=500"`
	IsFavorite    bool    `json:"is_favorite"`
}
