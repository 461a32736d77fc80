package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewJWTService_Validation(t *testing.T) {
	_, err := NewJWTService("short", time.Hour)
	assert.Error(t, err)

	_, err = NewJWTService(testSecret, 0)
	assert.Error(t, err)

	svc, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGenerateAndExtract(t *testing.T) {
	svc, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)

	token, expiry, err := svc.GenerateAccessToken("ci-bot", "")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	claims, err := svc.ExtractClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", claims.Subject)
	assert.Equal(t, "uploader", claims.Role)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, expiry.Unix(), claims.Exp)
}

func TestGenerateAccessToken_RequiresSubject(t *testing.T) {
	svc, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)

	_, _, err = svc.GenerateAccessToken("", "admin")
	assert.Error(t, err)
}

func TestExtractClaims_Rejects(t *testing.T) {
	svc, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)

	other, err := NewJWTService("ffffffffffffffffffffffffffffffff", time.Hour)
	require.NoError(t, err)
	foreign, _, err := other.GenerateAccessToken("x", "")
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "x",
		"type": "access",
		"exp":  time.Now().Add(-time.Minute).Unix(),
	})
	expiredToken, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "x",
		"type": "refresh",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})
	refreshToken, err := refresh.SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expiredToken,
		"non-access":   refreshToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ExtractClaims(token)
			assert.Error(t, err)
		})
	}
}
