package handler

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/genstudio/internal/auth"
	"github.com/hitoshi/genstudio/internal/gate"
	"github.com/hitoshi/genstudio/internal/middleware"
	"github.com/hitoshi/genstudio/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var gateTemplate = template.Must(template.ParseFS(templateFS, "templates/gate.html"))

const (
	defaultResolveTimeout = 3 * time.Second
	defaultKeepAlive      = 15 * time.Second
)

// GateHandlerConfig はゲート画面の設定。
type GateHandlerConfig struct {
	// LoginPath は外部ログイン入口のパス。
	LoginPath string
	// ResolveTimeout はページ描画前にセッション解決を待つ上限。超えた場合は読み込み中画面を返す。
	ResolveTimeout time.Duration
	// KeepAlive はSSEのコメント行を送る間隔。
	KeepAlive time.Duration
}

// GateHandler は認証状態に応じた画面の描画と、認証状態のSSE配信を行う。
type GateHandler struct {
	resolver auth.UserResolver
	hub      *auth.Hub
	config   GateHandlerConfig
	logger   *slog.Logger
}

// NewGateHandler はGateHandlerを生成する。
func NewGateHandler(resolver auth.UserResolver, hub *auth.Hub, config GateHandlerConfig, logger *slog.Logger) *GateHandler {
	if config.LoginPath == "" {
		config.LoginPath = "/auth/google/login"
	}
	if config.ResolveTimeout <= 0 {
		config.ResolveTimeout = defaultResolveTimeout
	}
	if config.KeepAlive <= 0 {
		config.KeepAlive = defaultKeepAlive
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GateHandler{resolver: resolver, hub: hub, config: config, logger: logger}
}

// open はリクエストのセッションを購読するGateを生成する。呼び出し側でCloseすること。
func (h *GateHandler) open(r *http.Request) *gate.Gate {
	sessionID := ""
	if c, err := r.Cookie(middleware.SessionCookieName); err == nil {
		sessionID = c.Value
	}
	source := auth.NewSessionStateSource(r.Context(), h.resolver, h.hub, sessionID, h.logger)
	return gate.New(source, func() string { return h.config.LoginPath })
}

type gatePageData struct {
	View         string
	User         *model.User
	LoginURL     string
	ImageOptions model.ImageOptionCatalog
	VideoOptions model.VideoOptionCatalog
}

// Page はゲート画面を描画する。
// GET /
func (h *GateHandler) Page(w http.ResponseWriter, r *http.Request) {
	g := h.open(r)
	defer g.Close()

	ctx, cancel := context.WithTimeout(r.Context(), h.config.ResolveTimeout)
	defer cancel()
	st, err := g.Wait(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return
	}

	data := gatePageData{
		View:     gate.ViewFor(st).String(),
		User:     st.User,
		LoginURL: g.Login(),
	}
	if data.View == gate.ViewTool.String() {
		data.ImageOptions = model.ImageOptions()
		data.VideoOptions = model.VideoOptions()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := gateTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render gate page", slog.String("error", err.Error()))
	}
}

// authStateEvent はSSEで配信する認証状態。
type authStateEvent struct {
	View      string  `json:"view"`
	IsLoading bool    `json:"is_loading"`
	User      *userVM `json:"user,omitempty"`
	LoginURL  string  `json:"login_url"`
}

type userVM struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func newAuthStateEvent(st auth.State, loginURL string) authStateEvent {
	ev := authStateEvent{
		View:      gate.ViewFor(st).String(),
		IsLoading: st.IsLoading,
		LoginURL:  loginURL,
	}
	if st.User != nil {
		ev.User = &userVM{ID: st.User.ID, Email: st.User.Email, Name: st.User.DisplayName()}
	}
	return ev
}

// StateStream は認証状態の変化をServer-Sent Eventsで配信する。
// 接続直後に現在の状態を送り、以降は変化のたびに送る。
// GET /auth/state
func (h *GateHandler) StateStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	g := h.open(r)
	defer g.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	keepAlive := time.NewTicker(h.config.KeepAlive)
	defer keepAlive.Stop()

	last := ""
	send := func() error {
		payload, err := json.Marshal(newAuthStateEvent(g.State(), g.Login()))
		if err != nil {
			return err
		}
		if string(payload) == last {
			return nil
		}
		last = string(payload)
		if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-g.Changes():
			if err := send(); err != nil {
				h.logger.Debug("auth state stream closed", slog.String("error", err.Error()))
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
