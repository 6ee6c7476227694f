package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every reason a token is rejected: bad signature,
// expiry, malformed structure or missing subject.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated principal carried by a token.
type Identity struct {
	Username string
	Roles    []string
}

// HasRole reports whether the identity holds role.
func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("auth.NewTokenIssuer: empty secret")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth.NewTokenIssuer: non-positive ttl %s", ttl)
	}

	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for identity. Timestamps are truncated to whole
// seconds, so the token expires at now.Truncate(time.Second) + TTL.
func (i *TokenIssuer) Issue(identity Identity, now time.Time) (string, error) {
	const op = "auth.Issue"

	issuedAt := now.Truncate(time.Second)
	claims := &Claims{
		Roles: identity.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Username,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Verify checks tokenStr against now and returns the identity it carries.
// Any failure yields ErrInvalidToken.
func (i *TokenIssuer) Verify(tokenStr string, now time.Time) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(token *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{Username: claims.Subject, Roles: claims.Roles}, nil
}
