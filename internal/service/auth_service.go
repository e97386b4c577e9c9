package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"snapjournal/internal/docstore"
	"snapjournal/internal/models"
	"snapjournal/internal/repository"
)

type TokenIssuer interface {
	IssueAccessToken(email string) (string, time.Time, error)
	NewRefreshToken() (string, time.Time)
}

type AuthService interface {
	Register(ctx context.Context, req models.CreateAccountRequest) (*models.TokenPair, error)
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

type authService struct {
	accounts repository.AccountRepository
	users    repository.UserRepository
	tokens   TokenIssuer
}

func NewAuthService(accounts repository.AccountRepository, users repository.UserRepository, tokens TokenIssuer) AuthService {
	return &authService{accounts: accounts, users: users, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the account and its user row, then signs the new user in.
// An account left without a user row by an earlier attempt is finished off
// when the same password comes back.
func (s *authService) Register(ctx context.Context, req models.CreateAccountRequest) (*models.TokenPair, error) {
	email := normalizeEmail(req.Email)
	if _, err := s.accounts.Create(ctx, email, req.Password); err != nil {
		if !errors.Is(err, repository.ErrAccountExists) || !s.unfinished(ctx, email, req.Password) {
			return nil, fmt.Errorf("register: %w", err)
		}
	}
	if _, err := s.users.Ensure(ctx, email); err != nil {
		return nil, fmt.Errorf("create user row: %w", err)
	}
	return s.issue(ctx, email)
}

// unfinished reports whether email has an account matching password but no
// user row.
func (s *authService) unfinished(ctx context.Context, email, password string) bool {
	if _, err := s.users.Get(ctx, email); !errors.Is(err, docstore.ErrNotFound) {
		return false
	}
	_, err := s.accounts.VerifyPassword(ctx, email, password)
	return err == nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	account, err := s.accounts.VerifyPassword(ctx, normalizeEmail(email), password)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	return s.issue(ctx, account.Email)
}

// Refresh rotates the refresh token. The presented token stops working.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	account, err := s.accounts.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidRefresh) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return s.issue(ctx, account.Email)
}

func (s *authService) issue(ctx context.Context, email string) (*models.TokenPair, error) {
	accessToken, expiresAt, err := s.tokens.IssueAccessToken(email)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExpiry := s.tokens.NewRefreshToken()
	if err := s.accounts.UpdateRefreshToken(ctx, email, refreshToken, refreshExpiry); err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}
