package token

import (
	"context"
	"crypto/rand"
	"errors"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewResetToken generates a cryptographically random 40-character hex token.
func NewResetToken() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewVerificationCode returns a uniformly random 6-digit numeric code in [100000, 999999].
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// maxCodeAttempts bounds how many codes NewUnusedVerificationCode draws before giving up.
const maxCodeAttempts = 5

// ErrCodeSpaceBusy is returned when every drawn code was already live.
var ErrCodeSpaceBusy = errors.New("no unused verification code available")

// NewUnusedVerificationCode draws codes until inUse reports one that no other
// account currently holds.
func NewUnusedVerificationCode(ctx context.Context, inUse func(ctx context.Context, code string) (bool, error)) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := NewVerificationCode()
		if err != nil {
			return "", err
		}
		taken, err := inUse(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceBusy
}
