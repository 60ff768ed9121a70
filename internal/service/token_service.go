package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/school-api/internal/domain/entity"
	"github.com/yourusername/school-api/internal/domain/repository"
	apperrors "github.com/yourusername/school-api/internal/pkg/errors"
)

// TokenService issues and authenticates opaque bearer credentials. Each
// credential is individually revocable and carries an ability list that
// limits what the bearer may do before finishing email verification.
//
// The plaintext handed to the client has the form "<id>|<secret>"; only the
// sha256 of the secret part is stored.
type TokenService struct {
	tokenRepo repository.AccessTokenRepository
	userRepo  repository.UserRepository
}

func NewTokenService(tokenRepo repository.AccessTokenRepository, userRepo repository.UserRepository) (*TokenService, error) {
	if tokenRepo == nil {
		return nil, fmt.Errorf("access token repository is required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	return &TokenService{tokenRepo: tokenRepo, userRepo: userRepo}, nil
}

// Issue creates a credential for the user with the given name and abilities
// and returns its plaintext form.
func (s *TokenService) Issue(userID uint, name string, abilities ...string) (string, *entity.AccessToken, error) {
	if len(abilities) == 0 {
		abilities = []string{entity.AbilityWildcard}
	}

	secret, err := generateTokenSecret()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token secret: %w", err)
	}

	token := &entity.AccessToken{
		UserID:    userID,
		Name:      name,
		Token:     hashTokenSecret(secret),
		Abilities: entity.AbilityList(abilities),
	}
	if err := s.tokenRepo.Create(token); err != nil {
		return "", nil, fmt.Errorf("failed to store access token: %w", err)
	}

	plaintext := fmt.Sprintf("%d|%s", token.ID, secret)
	return plaintext, token, nil
}

// Authenticate resolves a plaintext bearer credential to its owner. It
// returns ErrInvalidToken for anything that does not match a stored token.
func (s *TokenService) Authenticate(plaintext string) (*entity.User, *entity.AccessToken, error) {
	id, secret, ok := splitTokenPlaintext(plaintext)
	if !ok {
		return nil, nil, ErrInvalidToken
	}

	token, err := s.tokenRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	expected := hashTokenSecret(secret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token.Token)) != 1 {
		return nil, nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(token.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	if err := s.tokenRepo.TouchLastUsed(token.ID, time.Now()); err != nil {
		log.Printf("[TokenService] Failed to touch last_used_at for token %d: %v", token.ID, err)
	}

	return user, token, nil
}

// Revoke deletes a single credential. Other sessions of the same user stay
// valid.
func (s *TokenService) Revoke(tokenID uint) error {
	return s.tokenRepo.Delete(tokenID)
}

// RevokeAll deletes every credential of the user.
func (s *TokenService) RevokeAll(userID uint) (int64, error) {
	return s.tokenRepo.DeleteForUser(userID)
}

func generateTokenSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashTokenSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func splitTokenPlaintext(plaintext string) (uint, string, bool) {
	parts := strings.SplitN(plaintext, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return 0, "", false
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return uint(id), parts[1], true
}
