package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	userIDSize          = 16
	refreshSecretSize   = 32
	refreshTokenRawSize = userIDSize + refreshSecretSize
)

// RefreshSecret is the random part of a refresh token.
type RefreshSecret [refreshSecretSize]byte

var (
	ErrRefreshTokenMalformed = errors.New("malformed refresh token")
	ErrInvalidCodeDigits     = errors.New("invalid code digits")
)

// NewUserID returns a fresh random user identifier.
func NewUserID() string {
	return uuid.NewString()
}

func NewRefreshSecret() (RefreshSecret, error) {
	var secret RefreshSecret
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashRefreshSecret returns the hex SHA-256 digest stored in the session set.
// Raw secrets never reach storage.
func HashRefreshSecret(secret RefreshSecret) string {
	sum := sha256.Sum256(secret[:])
	return hex.EncodeToString(sum[:])
}

// EncodeRefreshToken binds secret to userID: base64url(uuid bytes || secret).
func EncodeRefreshToken(userID string, secret RefreshSecret) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshTokenMalformed, err)
	}

	var raw [refreshTokenRawSize]byte
	copy(raw[:userIDSize], id[:])
	copy(raw[userIDSize:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeRefreshToken(token string) (string, RefreshSecret, error) {
	var secret RefreshSecret

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, ErrRefreshTokenMalformed
	}
	if len(raw) != refreshTokenRawSize {
		return "", secret, ErrRefreshTokenMalformed
	}

	id, err := uuid.FromBytes(raw[:userIDSize])
	if err != nil {
		return "", secret, ErrRefreshTokenMalformed
	}
	copy(secret[:], raw[userIDSize:])

	return id.String(), secret, nil
}

// NewNumericCode returns a decimal code of exactly digits characters drawn
// uniformly from [10^(digits-1), 10^digits).
func NewNumericCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", ErrInvalidCodeDigits
	}

	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	high := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	span := new(big.Int).Sub(high, low)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	n.Add(n, low)

	code := n.String()
	if len(code) != digits {
		return "", fmt.Errorf("invalid code generation length")
	}
	return code, nil
}
