package security

import (
	"testing"
	"time"

	"coreshare-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	user := &domain.User{ID: 42, Username: "alice", Role: domain.UserRoleBoth}

	token, err := tm.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int32(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.UserRoleBoth, claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute).(*tokenManager)
	issued := time.Now().Add(-2 * time.Hour)
	tm.now = func() time.Time { return issued }

	token, err := tm.GenerateAccessToken(&domain.User{ID: 1, Role: domain.UserRoleRenter})
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, err := NewTokenManager(testSecret, time.Hour).GenerateAccessToken(&domain.User{ID: 1})
	require.NoError(t, err)

	_, err = NewTokenManager("ffffffffffffffffffffffffffffffff", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsNoneAlgorithm(t *testing.T) {
	claims := UserClaims{UserID: 1, Type: TokenTypeAccess, RegisteredClaims: jwt.RegisteredClaims{
		Issuer: tokenIssuer, Audience: jwt.ClaimStrings{tokenAudience}, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_WrongType(t *testing.T) {
	claims := UserClaims{UserID: 1, Type: "refresh", RegisteredClaims: jwt.RegisteredClaims{
		Issuer: tokenIssuer, Audience: jwt.ClaimStrings{tokenAudience}, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "battery staple"))
}
