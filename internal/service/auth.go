package service

import (
	"fmt"
	"log/slog"

	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/auth"
)

// AuthService turns a client-supplied identity into a bearer credential.
//
// It does not consult the users collection: the frontend has already
// authenticated the person with its identity provider, and PUT /users is
// the separate call that records them.
type AuthService struct {
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{tokens: tokens, logger: logger}
}

func (s *AuthService) IssueToken(id auth.Identity) (string, error) {
	token, err := s.tokens.Issue(id)
	if err != nil {
		if apperror.IsExpected(err) {
			return "", err
		}
		s.logger.Error("failed to sign token",
			slog.String("email", id.Email),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

// ValidateToken is a convenience wrapper for callers outside the HTTP
// middleware, such as the operator CLI.
func (s *AuthService) ValidateToken(token string) (auth.Identity, error) {
	return s.tokens.Validate(token)
}
