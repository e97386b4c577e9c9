package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"snapjournal/internal/docstore"
	"snapjournal/internal/models"
)

var (
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRefresh     = errors.New("invalid or expired refresh token")
)

type accountRepository struct {
	store docstore.Store
	now   func() time.Time
}

func NewAccountRepository(store docstore.Store) AccountRepository {
	return &accountRepository{store: store, now: time.Now}
}

func accountRef(email string) docstore.DocRef {
	return docstore.Collection(accountsCollection).Doc(email)
}

func refreshTokenRef(token string) docstore.DocRef {
	return docstore.Collection(refreshTokensCollection).Doc(token)
}

func (r *accountRepository) Create(ctx context.Context, email, password string) (*models.Account, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    r.now().UTC(),
	}
	err = r.store.Create(ctx, accountRef(email), docstore.Fields{
		"email":        account.Email,
		"passwordHash": account.PasswordHash,
		"createdAt":    account.CreatedAt,
	})
	if err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", email, ErrAccountExists)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

func (r *accountRepository) get(ctx context.Context, email string) (*models.Account, error) {
	snap, err := r.store.Get(ctx, accountRef(email))
	if err != nil {
		return nil, err
	}
	var account models.Account
	if err := snap.DataTo(&account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) VerifyPassword(ctx context.Context, email, password string) (*models.Account, error) {
	account, err := r.get(ctx, email)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// UpdateRefreshToken stores the token on the account and indexes it by
// value so it can be looked up without a field query. Older index rows stay
// behind but no longer match their account.
func (r *accountRepository) UpdateRefreshToken(ctx context.Context, email, refreshToken string, expiryTime time.Time) error {
	b := r.store.Batch()
	b.Set(accountRef(email), docstore.Fields{
		"refreshToken":           refreshToken,
		"refreshTokenExpiryTime": expiryTime,
	}, true)
	b.Set(refreshTokenRef(refreshToken), docstore.Fields{"email": email}, false)
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *accountRepository) GetByRefreshToken(ctx context.Context, refreshToken string) (*models.Account, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefresh
	}
	snap, err := r.store.Get(ctx, refreshTokenRef(refreshToken))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	var index struct {
		Email string `json:"email"`
	}
	if err := snap.DataTo(&index); err != nil {
		return nil, err
	}

	account, err := r.get(ctx, index.Email)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if account.RefreshToken != refreshToken || r.now().After(account.RefreshTokenExpiryTime) {
		return nil, ErrInvalidRefresh
	}
	return account, nil
}
