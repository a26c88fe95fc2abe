package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	m, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)

	token, err := m.Generate("ops", true)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "неверный формат JWT")

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
	assert.True(t, claims.CanWrite)
	assert.Equal(t, "blockbase", claims.Issuer)
}

func TestTokenManager_InvalidTokens(t *testing.T) {
	m, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)

	for _, tok := range []string{
		"",
		"not.a.jwt",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	} {
		_, err := m.Validate(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "токен %q", tok)
	}

	// Чужой секрет
	other, err := NewTokenManager(strings.Repeat("x", 32), time.Hour)
	require.NoError(t, err)
	foreign, err := other.Generate("ops", true)
	require.NoError(t, err)
	_, err = m.Validate(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Не HMAC
	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Operator: "evil"})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Expired(t *testing.T) {
	m, err := NewTokenManager(testSecret, time.Minute)
	require.NoError(t, err)

	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	token, err := m.Generate("ops", false)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenManager_Secrets(t *testing.T) {
	_, err := NewTokenManager("short", 0)
	assert.ErrorIs(t, err, ErrShortSecret)

	m, err := NewTokenManager("", 0)
	require.NoError(t, err)
	assert.Len(t, m.secret, 32)
	assert.Equal(t, DefaultTokenTTL, m.ttl)
}

func TestGenerateSecureSecret(t *testing.T) {
	s1, err := GenerateSecureSecret()
	require.NoError(t, err)
	s2, err := GenerateSecureSecret()
	require.NoError(t, err)

	assert.NotEqual(t, s1, s2)
	assert.GreaterOrEqual(t, len(s1), 40)
}
