package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "renavam/pkg/domain"
	dErrors "renavam/pkg/domain-errors"
)

var jwtService = New("test-signing-key", 2*time.Hour)
var userID = id.NewUserID()

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, userID, claims.UserID)
	assert.NotEmpty(t, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), claims.ExpiresAt, time.Minute)
}

func Test_GenerateAccessToken_UniqueJTI(t *testing.T) {
	first, err := jwtService.GenerateAccessToken(userID)
	require.NoError(t, err)
	second, err := jwtService.GenerateAccessToken(userID)
	require.NoError(t, err)

	firstClaims, err := jwtService.ValidateToken(first)
	require.NoError(t, err)
	secondClaims, err := jwtService.ValidateToken(second)
	require.NoError(t, err)
	assert.NotEqual(t, firstClaims.JTI, secondClaims.JTI)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	expired := New("test-signing-key", -time.Hour)
	token, err := expired.GenerateAccessToken(userID)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "token has expired", dErrors.MessageOf(err))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := New("another-signing-key", time.Hour)
	token, err := other.GenerateAccessToken(userID)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
