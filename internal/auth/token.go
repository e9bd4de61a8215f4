package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenClaims struct {
	Role Role   `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// TokenService verifies the access tokens the identity provider hands out.
// Issuing is only used by tooling and tests.
type TokenService struct {
	accessTokenSecret []byte
	accessTokenExpiry time.Duration
}

func NewTokenService(accessTokenSecret string, accessTokenExpiryInSecs int) *TokenService {
	return &TokenService{
		accessTokenSecret: []byte(accessTokenSecret),
		accessTokenExpiry: time.Duration(accessTokenExpiryInSecs) * time.Second,
	}
}

func (ts *TokenService) GenerateAccessToken(identity Identity) (string, error) {
	now := time.Now()

	claims := TokenClaims{
		Role: identity.Role,
		Name: identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTokenExpiry)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.accessTokenSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return token, nil
}

// ValidateAccessToken returns isValid=false with a nil error for tokens that
// are expired, tampered with or malformed.
func (ts *TokenService) ValidateAccessToken(tokenStr string) (bool, *Identity, error) {
	claims := new(TokenClaims)

	token, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(t *jwt.Token) (any, error) {
			return ts.accessTokenSecret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) ||
			errors.Is(err, jwt.ErrTokenExpired) ||
			errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
			errors.Is(err, jwt.ErrTokenNotValidYet) ||
			errors.Is(err, jwt.ErrTokenUnverifiable) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	if !token.Valid {
		return false, nil, nil
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return false, nil, nil
	}

	role, err := ParseRole(string(claims.Role))
	if err != nil {
		return false, nil, nil
	}

	return true, &Identity{ID: id, Role: role, Name: claims.Name}, nil
}
