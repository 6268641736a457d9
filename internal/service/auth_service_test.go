package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/forum-archive-api/internal/models"
	appErrors "github.com/noah-isme/forum-archive-api/pkg/errors"
)

func signToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(userID, issuer string) *models.JWTClaims {
	now := time.Now()
	return &models.JWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret", Issuer: "forum-archive"})

	claims, err := svc.ValidateToken(signToken(t, "secret", validClaims("user-1", "forum-archive")))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestAuthServiceFallsBackToSubject(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret"})
	c := validClaims("", "")
	c.Subject = "user-9"

	claims, err := svc.ValidateToken(signToken(t, "secret", c))
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.UserID)
}

func TestAuthServiceRejectsInvalidTokens(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret", Issuer: "forum-archive"})

	expired := validClaims("user-1", "forum-archive")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	cases := map[string]string{
		"wrong secret": signToken(t, "other", validClaims("user-1", "forum-archive")),
		"wrong issuer": signToken(t, "secret", validClaims("user-1", "elsewhere")),
		"expired":      signToken(t, "secret", expired),
		"no subject":   signToken(t, "secret", validClaims("", "forum-archive")),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
		})
	}
}
