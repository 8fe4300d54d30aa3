package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService issues and verifies locally-signed access tokens. It is the
// fallback credential path when the external identity provider is not in use.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
}

func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	return &TokenService{
		secret:    []byte(secret),
		expiresIn: expiresIn,
	}
}

// CreateForUser creates a token whose subject is the local user id.
func (t *TokenService) CreateForUser(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iss": localIssuer,
		"iat": now.Unix(),
		"exp": now.Add(t.expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

const localIssuer = "chatbackend"

var _ Verifier = (*TokenService)(nil)

// Verify implements Verifier for locally-issued tokens.
func (t *TokenService) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithIssuer(localIssuer))
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
	return &Claims{Subject: sub, Source: SourceLocal}, nil
}
