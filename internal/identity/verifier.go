package identity

import (
	"crypto/rsa"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Credential source, recorded so the resolver knows how to interpret the
// token subject.
const (
	SourceProvider = "provider"
	SourceLocal    = "local"
)

// Claims is the unified result of verifying any supported credential.
type Claims struct {
	Subject string // provider user id or local user id, per Source
	Email   string
	Name    string
	Avatar  string
	Source  string
}

// Errors returned along the credential path.
var (
	ErrTokenMissing = errors.New("credential missing")
	ErrTokenInvalid = errors.New("credential invalid")
	ErrUnresolvable = errors.New("credential does not resolve to a user")
)

// Verifier turns a raw bearer token into identity claims.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// ProviderVerifier validates RS256 tokens signed by the external identity
// provider against its published public key.
type ProviderVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewProviderVerifier parses the provider's PEM-encoded RSA public key.
func NewProviderVerifier(publicKeyPEM []byte, issuer string) (*ProviderVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return &ProviderVerifier{publicKey: key, issuer: issuer}, nil
}

var _ Verifier = (*ProviderVerifier)(nil)

func (v *ProviderVerifier) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.publicKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, ErrTokenInvalid
	}
	email, _ := mapClaims["email"].(string)
	name, _ := mapClaims["name"].(string)
	avatar, _ := mapClaims["picture"].(string)
	return &Claims{
		Subject: sub,
		Email:   email,
		Name:    name,
		Avatar:  avatar,
		Source:  SourceProvider,
	}, nil
}
