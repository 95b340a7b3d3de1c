package realtime

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-signing-secret")

func signToken(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func TestAuthenticateValidToken(t *testing.T) {
	a := NewAuthenticator(testSecret)
	credential := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "user-42",
		"name": "Dana Reeves",
		"role": "attorney",
	})

	identity, err := a.Authenticate(credential)
	require.NoError(t, err)
	assert.Equal(t, "user-42", identity.ID)
	assert.Equal(t, "Dana Reeves", identity.DisplayName)
	assert.Equal(t, "attorney", identity.Role)
}

func TestAuthenticateOptionalClaims(t *testing.T) {
	a := NewAuthenticator(testSecret)
	credential := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})

	identity, err := a.Authenticate(credential)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.ID)
	assert.Empty(t, identity.DisplayName)
	assert.Empty(t, identity.Role)
}

func TestAuthenticateRejectsEmptyCredential(t *testing.T) {
	a := NewAuthenticator(testSecret)
	_, err := a.Authenticate("")
	assert.Error(t, err)
}

func TestAuthenticateRejectsMalformedCredential(t *testing.T) {
	a := NewAuthenticator(testSecret)
	_, err := a.Authenticate("not-a-jwt")
	assert.Error(t, err)
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	a := NewAuthenticator([]byte("a different secret"))
	credential := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})

	_, err := a.Authenticate(credential)
	assert.Error(t, err)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	a := NewAuthenticator(testSecret)
	credential := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := a.Authenticate(credential)
	assert.Error(t, err)
}

func TestAuthenticateRejectsUnexpectedAlgorithm(t *testing.T) {
	a := NewAuthenticator(testSecret)
	credential := signToken(t, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "user-1"})

	_, err := a.Authenticate(credential)
	assert.Error(t, err)
}

func TestAuthenticateRejectsMissingSubject(t *testing.T) {
	a := NewAuthenticator(testSecret)
	credential := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"name": "No Subject"})

	_, err := a.Authenticate(credential)
	assert.Error(t, err)
}
