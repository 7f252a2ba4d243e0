package domain

import (
	"strings"
	"time"
)

// Account is a user identity. Email is stored normalised (lower-case, trimmed).
type Account struct {
	AccountID    string `json:"id" dynamodbav:"account_id"`
	Email        string `json:"email" dynamodbav:"email"`
	Name         string `json:"name" dynamodbav:"name"`
	PasswordHash string `json:"-" dynamodbav:"password_hash,omitempty"`
	HasPassword  bool   `json:"has_password" dynamodbav:"has_password"`
	Verified     bool   `json:"verified" dynamodbav:"verified"`

	// Sparse GSI keys: omitempty keeps cleared values out of the index.
	VerificationCode      string `json:"-" dynamodbav:"verification_code,omitempty"`
	VerificationExpiresAt int64  `json:"-" dynamodbav:"verification_expires_at,omitempty"`
	ResetToken            string `json:"-" dynamodbav:"reset_token,omitempty"`
	ResetExpiresAt        int64  `json:"-" dynamodbav:"reset_expires_at,omitempty"`

	GoogleSub   string     `json:"-" dynamodbav:"google_sub,omitempty"`
	LastLoginAt *time.Time `json:"last_login,omitempty" dynamodbav:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// CanLoginWithPassword reports whether a password hash is present.
func (a *Account) CanLoginWithPassword() bool {
	return a.PasswordHash != ""
}

// NormalizeEmail is the case-insensitive match key for an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountEmail reserves an email address for a single account.
type AccountEmail struct {
	Email     string `dynamodbav:"email"`
	AccountID string `dynamodbav:"account_id"`
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=120"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// SetPasswordRequest adds a first password to the signed-in account.
type SetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// GoogleAuthRequest carries either an OAuth authorization code or a raw ID token.
type GoogleAuthRequest struct {
	Code    string `json:"code"`
	IDToken string `json:"token"`
}

type UpdateProfileRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=120"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
}
