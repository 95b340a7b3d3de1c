package realtime

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the stable identity a verified credential resolves to
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Authenticator verifies bearer credentials issued by the case-management
// application. Only verification lives here; issuance is external.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator with the shared HS256 secret
func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

// Authenticate validates the credential and resolves it to an identity.
// Malformed tokens, bad signatures, expired tokens, and tokens without a
// subject all fail; the caller notifies the connection and terminates it.
func (a *Authenticator) Authenticate(credential string) (*Identity, error) {
	if credential == "" {
		return nil, fmt.Errorf("empty credential")
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("invalid credential: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid credential: unexpected claims type")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("invalid credential: missing subject")
	}

	identity := &Identity{ID: sub}
	if name, ok := claims["name"].(string); ok {
		identity.DisplayName = name
	}
	if role, ok := claims["role"].(string); ok {
		identity.Role = role
	}

	return identity, nil
}
