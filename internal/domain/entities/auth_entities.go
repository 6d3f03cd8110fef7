package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// === Authentication Request/Response Models ===

// SignUpRequest represents a user registration request
type SignUpRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	FirstName string  `json:"firstName" validate:"omitempty,max=100"`
	LastName  string  `json:"lastName" validate:"omitempty,max=100"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,e164"`
}

// SignInRequest represents a user login request
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse represents the response after successful authentication
type AuthResponse struct {
	User         *UserInfo `json:"user"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// UserInfo represents the public view of a user
type UserInfo struct {
	ID            uuid.UUID       `json:"id"`
	Email         string          `json:"email"`
	FirstName     string          `json:"firstName"`
	LastName      string          `json:"lastName"`
	Phone         *string         `json:"phone,omitempty"`
	WalletAddress *string         `json:"walletAddress,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Session is what the auth provider reports for an authenticated request
type Session struct {
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// UpdateUserRequest carries the profile attributes a user may change.
// Nil fields are left untouched; Metadata is merged key by key.
type UpdateUserRequest struct {
	FirstName     *string                `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName      *string                `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Phone         *string                `json:"phone,omitempty" validate:"omitempty,e164"`
	WalletAddress *string                `json:"walletAddress,omitempty" validate:"omitempty,eth_addr"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// User represents a complete user entity for database operations
type User struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Email         string          `json:"email" db:"email"`
	PasswordHash  string          `json:"-" db:"password_hash"`
	FirstName     string          `json:"firstName" db:"first_name"`
	LastName      string          `json:"lastName" db:"last_name"`
	Phone         *string         `json:"phone" db:"phone_number"`
	WalletAddress *string         `json:"walletAddress" db:"wallet_address"`
	Metadata      json.RawMessage `json:"metadata" db:"metadata"`
	Role          string          `json:"role" db:"role"`
	IsActive      bool            `json:"isActive" db:"is_active"`
	LastLoginAt   *time.Time      `json:"lastLoginAt" db:"last_login_at"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ToUserInfo converts User to UserInfo for public responses
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		WalletAddress: u.WalletAddress,
		Metadata:      u.Metadata,
		CreatedAt:     u.CreatedAt,
	}
}

// ResolvedRecipient is the result of looking a user up by phone number
type ResolvedRecipient struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}
