// Package auth はパスワード認証とアクセストークンの発行・検証を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/astroline/internal/model"
	"github.com/hitoshi/astroline/internal/repository"
)

// TokenResponse はトークン発行エンドポイントのレスポンス。
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      string `json:"user_id"`
}

// Service はメールアドレスとパスワードによるログインを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   BcryptHasher
	tokens   *TokenIssuer
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, hasher BcryptHasher, tokens *TokenIssuer) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
	}
}

// Login は資格情報を検証してアクセストークンを発行する。
// ユーザー不在とパスワード不一致は同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidRequestError("email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !s.hasher.Verify(user.PasswordHash, password) {
		slog.Info("login rejected", slog.String("email", email))
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("access token issued", slog.String("user_id", user.ID))
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
		UserID:      user.ID,
	}, nil
}

// Authenticate はアクセストークンを検証し、Identity Storeに存在するユーザーのIDを返す。
// トークン不正とユーザー不在は*model.APIError（UNAUTHORIZED）を返す。
// ストアの障害はラップしたエラーを返す。
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return "", model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Info("token rejected: user no longer exists", slog.String("user_id", userID))
		return "", model.NewUnauthorizedError()
	}
	return user.ID, nil
}
