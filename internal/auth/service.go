// Package auth はOAuth認証フロー、セッション管理、認証状態の配信を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/genstudio/internal/model"
	"github.com/hitoshi/genstudio/internal/repository"
	"github.com/hitoshi/genstudio/internal/security"
)

var (
	// ErrNoSession はセッションIDが空であることを示す。
	ErrNoSession = errors.New("session ID is required")
	// ErrSessionNotFound はセッションが存在しないか期限切れであることを示す。
	ErrSessionNotFound = errors.New("session not found or expired")
	// ErrUserNotFound はセッションのユーザーが存在しないことを示す。
	ErrUserNotFound = errors.New("user not found")
)

// sessionIDBytes はセッションIDの乱数バイト数。hex化すると64文字。
const sessionIDBytes = 32

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	Logger        *slog.Logger
}

// Service はログイン、ログアウト、セッションからのユーザー解決を担う。
// ログアウトはHubを通じて同じセッションの画面に通知される。
type Service struct {
	oauth    OAuthProvider
	users    repository.UserRepository
	idents   repository.IdentityRepository
	sessions repository.SessionRepository
	hub      *Hub
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceを生成する。hubがnilの場合はログアウトを配信しない。
func NewService(
	oauth OAuthProvider,
	users repository.UserRepository,
	idents repository.IdentityRepository,
	sessions repository.SessionRepository,
	hub *Hub,
	config ServiceConfig,
) *Service {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		oauth:    oauth,
		users:    users,
		idents:   idents,
		sessions: sessions,
		hub:      hub,
		maxAge:   time.Duration(config.SessionMaxAge) * time.Second,
		logger:   logger,
		now:      time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback は認可コードを交換してユーザーを特定し、新しいセッションを発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	// 表示名はプレーンテキストで保存する
	info.Name = security.CleanDisplayName(info.Name)

	userID, err := s.resolveUser(ctx, info)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// resolveUser はIdPのユーザー情報に対応するユーザーIDを返す。
// 初回ログインならusersとidentitiesを同一トランザクションで作成する。
// 既存ユーザーでIdP側のメールアドレスや表示名が変わっていれば更新する。
func (s *Service) resolveUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	identity, err := s.idents.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}

	if identity == nil {
		return s.registerUser(ctx, info)
	}

	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user != nil && (user.Email != info.Email || user.Name != info.Name) {
		// 失敗してもログイン自体は続ける
		if err := s.users.UpdateProfile(ctx, user.ID, info.Email, info.Name); err != nil {
			s.logger.Warn("failed to refresh user profile",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("existing user logged in",
		slog.String("user_id", identity.UserID),
		slog.String("provider", info.Provider),
	)
	return identity.UserID, nil
}

func (s *Service) registerUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	now := s.now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     info.Email,
		Name:      info.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	identity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}

	if err := s.users.CreateWithIdentity(ctx, user, identity); err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	s.logger.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
	)
	return user.ID, nil
}

// Logout はセッションを破棄し、同じセッションの購読者へ未ログイン状態を配信する。
// 削除に失敗した場合は配信しない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if s.hub != nil {
		s.hub.Publish(sessionID, State{})
	}

	s.logger.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) issueSession(ctx context.Context, userID string) (*model.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: now.Add(s.maxAge),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
