// Package services contains application services for the registry client.
// This file defines the authentication service: login against the server,
// the locally stored access token, and session decoding.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/choirsync/internal/client/client"
	"github.com/dmitrijs2005/choirsync/internal/client/models"
	"github.com/dmitrijs2005/choirsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/choirsync/internal/common"
	"github.com/dmitrijs2005/choirsync/internal/dbx"
)

// Metadata keys owned by the auth service. All of them live under
// KeyPrefix.
const (
	KeyPrefix      = "auth:"
	KeyAccessToken = KeyPrefix + "token"
	KeyEmail       = KeyPrefix + "email"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: authenticate against the server and store the token and email.
//   - Logout: forget the stored token and email.
//   - Session: decode the stored token; ErrNotLoggedIn when there is none.
//   - Ping: check server liveness.
//   - Close: release underlying client resources.
type AuthService interface {
	Login(ctx context.Context, email string, password []byte) (models.Session, error)
	Logout(ctx context.Context) error
	Session(ctx context.Context) (models.Session, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// TokenStore keeps the access token in the metadata repository. It is the
// client.TokenStore the HTTP client reads on every request.
type TokenStore struct {
	repo metadata.Repository
}

var _ client.TokenStore = (*TokenStore)(nil)

func NewTokenStore(repo metadata.Repository) *TokenStore {
	return &TokenStore{repo: repo}
}

// Token returns the stored token, or "" when signed out.
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	b, err := s.repo.Get(ctx, KeyAccessToken)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Clear drops every auth key.
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.repo.Clear(ctx, KeyPrefix)
}

type authService struct {
	client client.Client
	db     *sql.DB
	tokens *TokenStore
	now    func() time.Time
}

// NewAuthService constructs an AuthService bound to the given API client and DB.
func NewAuthService(c client.Client, db *sql.DB) AuthService {
	return &authService{
		client: c,
		db:     db,
		tokens: NewTokenStore(metadata.NewSQLiteRepository(db)),
		now:    time.Now,
	}
}

// Login authenticates against the server and saves the token and email in a
// single transaction.
func (a *authService) Login(ctx context.Context, email string, password []byte) (models.Session, error) {
	token, err := a.client.Login(ctx, email, password)
	if err != nil {
		return models.Session{}, fmt.Errorf("login error: %w", err)
	}

	sess, err := decodeSession(token)
	if err != nil {
		return models.Session{}, err
	}
	if sess.Email == "" {
		sess.Email = email
	}

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, KeyAccessToken, []byte(token)); err != nil {
			return err
		}
		return repo.Set(ctx, KeyEmail, []byte(email))
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("saving credentials: %w", err)
	}
	return sess, nil
}

func (a *authService) Logout(ctx context.Context) error {
	return a.tokens.Clear(ctx)
}

// Session decodes the stored token. An expired session is returned along
// with common.ErrTokenExpired.
func (a *authService) Session(ctx context.Context) (models.Session, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return models.Session{}, err
	}
	if token == "" {
		return models.Session{}, ErrNotLoggedIn
	}

	sess, err := decodeSession(token)
	if err != nil {
		return models.Session{}, err
	}
	if sess.Email == "" {
		email, err := metadata.NewSQLiteRepository(a.db).Get(ctx, KeyEmail)
		if err != nil {
			return models.Session{}, err
		}
		sess.Email = string(email)
	}
	if sess.Expired(a.now()) {
		return sess, common.ErrTokenExpired
	}
	return sess, nil
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}

type sessionClaims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// decodeSession reads the claims without verifying the signature; the
// server does that on every request.
func decodeSession(token string) (models.Session, error) {
	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &claims); err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	sess := models.Session{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}
