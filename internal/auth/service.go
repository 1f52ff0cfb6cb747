package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	FindUser(ctx context.Context, id int64) (*User, error)
	InsertKey(ctx context.Context, key *APIKey) error
	RevokeKey(ctx context.Context, userID, keyID int64) error
	ListKeys(ctx context.Context, userID int64) ([]APIKey, error)
	TouchKey(ctx context.Context, id int64, at time.Time) error
}

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate resolves a presented API key into the acting manager. Every
// failure collapses into ErrUnauthorized so callers leak nothing about which
// part of the check failed.
func (s *Service) Authenticate(ctx context.Context, key string) (*shared.Actor, error) {
	if len(key) < PrefixLength {
		return nil, shared.ErrUnauthorized
	}
	record, err := s.repo.FindKeyByPrefix(ctx, key[:PrefixLength])
	if err != nil {
		return nil, shared.ErrUnauthorized
	}
	if !record.IsActive {
		return nil, shared.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(record.Hash), []byte(key)); err != nil {
		return nil, shared.ErrUnauthorized
	}
	user, err := s.repo.FindUser(ctx, record.UserID)
	if err != nil || !user.IsActive {
		return nil, shared.ErrUnauthorized
	}
	_ = s.repo.TouchKey(ctx, record.ID, time.Now().UTC())
	return &shared.Actor{ID: user.ID, Name: user.Name}, nil
}

// IssueKey mints a new API key for a user and returns the clear key. It is
// shown exactly once; afterwards only the hash survives.
func (s *Service) IssueKey(ctx context.Context, userID int64, label string) (string, *APIKey, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	if !user.IsActive {
		return "", nil, shared.ErrForbidden
	}
	clear, err := generateKey()
	if err != nil {
		return "", nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(clear), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}
	key := &APIKey{
		UserID:   userID,
		Label:    label,
		Prefix:   clear[:PrefixLength],
		Hash:     string(hash),
		IsActive: true,
	}
	if err := s.repo.InsertKey(ctx, key); err != nil {
		return "", nil, err
	}
	return clear, key, nil
}

// RevokeKey deactivates one of the user's keys.
func (s *Service) RevokeKey(ctx context.Context, userID, keyID int64) error {
	return s.repo.RevokeKey(ctx, userID, keyID)
}

// ListKeys returns the user's keys, hashes stripped.
func (s *Service) ListKeys(ctx context.Context, userID int64) ([]APIKey, error) {
	keys, err := s.repo.ListKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		keys[i].Hash = ""
	}
	return keys, nil
}

// generateKey produces "ig_" plus 32 hex characters. The prefix stored for
// lookup therefore covers "ig_" and the first 9 hex digits.
func generateKey() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "ig_" + hex.EncodeToString(raw[:]), nil
}
