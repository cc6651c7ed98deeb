package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMaker_GenerateAndParseToken(t *testing.T) {
	maker := NewJWTMaker("test_secret_key_1234567890", 15*time.Minute)

	tests := []struct {
		name    string
		userUID string
		email   string
	}{
		{name: "regular user", userUID: "6f1c2a9e-1111-4e0b-9d1c-aaaaaaaaaaaa", email: "student@example.com"},
		{name: "empty email", userUID: "user-2", email: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.userUID, tt.email)
			require.NoError(t, err)
			assert.NotEmpty(t, token)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.userUID, claims.UserUID())
			assert.Equal(t, tt.email, claims.Email)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_ParseToken_Invalid(t *testing.T) {
	secret := "test_secret_key_1234567890"
	maker := NewJWTMaker(secret, 15*time.Minute)

	valid, err := maker.GenerateToken("user-1", "a@b.c")
	require.NoError(t, err)

	expired, err := NewJWTMaker(secret, -time.Hour).GenerateToken("user-1", "a@b.c")
	require.NoError(t, err)

	wrongSecret, err := NewJWTMaker("another_secret", time.Hour).GenerateToken("user-1", "a@b.c")
	require.NoError(t, err)

	noSubject, err := maker.GenerateToken("", "a@b.c")
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	foreignToken, err := foreign.SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: expired},
		{name: "wrong secret key", token: wrongSecret},
		{name: "tampered token", token: valid + "tampered"},
		{name: "missing subject", token: noSubject},
		{name: "foreign issuer", token: foreignToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTMaker_TokenExpiration(t *testing.T) {
	maker := NewJWTMaker("test_secret_key", time.Hour)
	start := time.Now()
	maker.now = func() time.Time { return start }

	token, err := maker.GenerateToken("user-1", "a@b.c")
	require.NoError(t, err)

	_, err = maker.ParseToken(token)
	require.NoError(t, err)

	maker.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = maker.ParseToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}
