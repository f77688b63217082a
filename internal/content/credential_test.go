package content

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("gateway-secret"))
	require.NoError(t, err)
	return token
}

func TestCredentialUsable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		token    string
		expected bool
	}{
		{"empty", "", false},
		{"opaque api key", "pk_live_1234", true},
		{"jwt without exp", signedToken(t, jwt.MapClaims{"sub": "agent"}), true},
		{"jwt valid", signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), true},
		{"jwt expired", signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CredentialUsable(tt.token, now))
		})
	}
}
