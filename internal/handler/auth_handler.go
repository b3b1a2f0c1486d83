// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/genstudio/internal/middleware"
	"github.com/hitoshi/genstudio/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
	// StateSecret はOAuth state Cookieの署名鍵（SESSION_SECRET）。
	StateSecret string
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig

	// onLogout はセッション破棄後に呼ばれる。セッションに紐づくWorkspaceの解放に使う。
	onLogout func(sessionID string)
}

// NewAuthHandler はAuthHandlerを生成する。onLogoutはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, onLogout func(sessionID string)) *AuthHandler {
	return &AuthHandler{
		service:  service,
		config:   config,
		onLogout: onLogout,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.setCookie(w, oauthStateCookie, signState(h.config.StateSecret, state), 600, false)
	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || !verifyState(h.config.StateSecret, stateCookie.Value, state) {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	h.setCookie(w, oauthStateCookie, "", -1, false)

	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	h.setCookie(w, middleware.SessionCookieName, session.ID, h.config.SessionMaxAge, true)
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄し、セッションに紐づく生成フォームを解放する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		// 失敗してもCookieはクリアする
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
		if h.onLogout != nil {
			h.onLogout(cookie.Value)
		}
	}

	h.setCookie(w, middleware.SessionCookieName, "", -1, true)
	http.Redirect(w, r, h.config.BaseURL, http.StatusSeeOther)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		slog.Debug("failed to get current user", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, userVM{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.DisplayName(),
	})
}

// setCookie はHTTP OnlyのCookieを設定する。maxAgeが負の場合は削除。
func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int, withDomain bool) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if withDomain {
		c.Domain = h.config.CookieDomain
	}
	http.SetCookie(w, c)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// signState は "{state}.{HMAC-SHA256(secret, state)}" 形式のCookie値を返す。
func signState(secret, state string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(state))
	return state + "." + hex.EncodeToString(mac.Sum(nil))
}

// verifyState はCookie値の署名を検証し、stateと一致するかを返す。
func verifyState(secret, cookieValue, state string) bool {
	got, _, ok := strings.Cut(cookieValue, ".")
	if !ok || got != state {
		return false
	}
	return hmac.Equal([]byte(cookieValue), []byte(signState(secret, state)))
}
