package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stocktally/stocktally/internal/shared"
)

// Service wraps authentication business rules for the shared store login.
type Service struct {
	repo   Repository
	tokens *TokenStore
	audit  AuditPort
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewService constructs a new Service. audit may be nil.
func NewService(repo Repository, tokens *TokenStore, audit AuditPort) *Service {
	return &Service{repo: repo, tokens: tokens, audit: audit}
}

// Login validates the shared credentials and issues an opaque bearer token.
func (s *Service) Login(ctx context.Context, username, password, ip, ua string) (string, error) {
	cred, err := s.repo.GetCredential(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", shared.ErrInvalidCredentials
		}
		return "", err
	}
	if username != cred.Username {
		return "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", shared.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ctx)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	if err := s.repo.RecordSession(ctx, DeviceSession{
		ID:        token,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokens.TTL()),
		IP:        ip,
		UserAgent: ua,
	}); err != nil {
		// Audit row is best effort; the token is already valid.
		return token, nil
	}
	return token, nil
}

// VerifyToken checks a presented bearer token.
func (s *Service) VerifyToken(ctx context.Context, token string) error {
	return s.tokens.Verify(ctx, token)
}

// ChangeLogin rotates the shared credentials.
func (s *Service) ChangeLogin(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateCredential(ctx, username, string(hash)); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    "admin",
			Action:   "auth:change-login",
			Entity:   "auth_secrets",
			EntityID: "1",
			Meta:     map[string]any{"username": username},
		})
	}
	return nil
}

// SeedLoginIfMissing creates the shared login from the initial environment
// values. Absent values are not fatal; the row can be created later.
func (s *Service) SeedLoginIfMissing(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.repo.SeedCredential(ctx, username, string(hash))
	return err
}
