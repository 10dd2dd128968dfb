// Package auth issues and verifies the bearer credentials of the API.
//
// A credential is an HS256 JWT carrying the caller's identity payload
// (email, name, photo). It proves which email is calling and nothing
// more: roles always come from the users collection, never from the token.
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"HS256","typ":"JWT"}
//	- Payload: {"email":"a@x.com","name":"..","sub":"a@x.com","exp":..,"jti":".."}
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sakif/learnloop/internal/apperror"
)

const (
	issuer = "learnloop"

	// TokenTTL is how long an issued credential stays valid.
	TokenTTL = 24 * time.Hour
)

// Identity is the payload a client presents at login and gets back from
// every verified request.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Photo string `json:"photo,omitempty"`
}

// TokenService handles JWT creation and validation with one HMAC secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// A secret shorter than 16 characters is refused so a misconfigured
// deployment fails at startup instead of issuing weak tokens.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

type claims struct {
	Identity
	jwt.RegisteredClaims
}

// Issue signs a credential for id, valid for TokenTTL.
func (s *TokenService) Issue(id Identity) (string, error) {
	return s.issue(id, TokenTTL)
}

func (s *TokenService) issue(id Identity, ttl time.Duration) (string, error) {
	id.Email = strings.TrimSpace(id.Email)
	if id.Email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}

	now := s.now()
	c := claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Email,
			Issuer:    issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string and returns its identity.
//
// The signature, the HS256 algorithm, the issuer and the expiry are all
// checked. Pinning the algorithm with jwt.WithValidMethods stops a token
// signed with "none" or an asymmetric algorithm from being accepted.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, errors.New("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("auth: invalid token claims")
	}

	if c.Email == "" {
		c.Email = c.Subject
	}
	if c.Email == "" {
		return Identity{}, errors.New("auth: token has no email")
	}
	return c.Identity, nil
}
