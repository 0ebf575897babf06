package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loopmarked/dashboard/internal/store"
)

var (
	// ErrInvalidUser is returned when a token is requested for an empty user id.
	ErrInvalidUser = errors.New("invalid user")
	// ErrDevTokensDisabled is returned when token issuing is not enabled.
	ErrDevTokensDisabled = errors.New("dev tokens disabled")
)

// Service issues and validates bearer tokens. Sign-in itself (the OAuth
// redirect) happens at the identity provider; this service only turns a
// known user id into a token and back.
type Service struct {
	profiles  store.ProfileStore
	jwtConfig *JWTConfig
	devTokens bool
}

// NewService creates a new authentication service.
func NewService(profiles store.ProfileStore, jwtConfig *JWTConfig, devTokens bool) *Service {
	return &Service{
		profiles:  profiles,
		jwtConfig: jwtConfig,
		devTokens: devTokens,
	}
}

// IssueDevToken creates a token for userID, registering a profile when
// fullName is given.
func (s *Service) IssueDevToken(ctx context.Context, userID, fullName string) (string, error) {
	if !s.devTokens {
		return "", ErrDevTokensDisabled
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || len(userID) > 128 {
		return "", ErrInvalidUser
	}

	if fullName = strings.TrimSpace(fullName); fullName != "" {
		if err := s.profiles.UpsertProfile(ctx, &store.Profile{ID: userID, FullName: fullName}); err != nil {
			return "", fmt.Errorf("upsert profile: %w", err)
		}
	}

	token, err := GenerateToken(s.jwtConfig, userID)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
