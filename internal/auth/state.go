package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/genstudio/internal/model"
)

// State はある時点の認証状態。
// IsLoadingがtrueの間はUserを参照しない。IsLoadingがfalseでUserがnilなら未ログイン。
type State struct {
	User      *model.User `json:"user"`
	IsLoading bool        `json:"is_loading"`
}

// Resolved は認証状態が確定しているかを返す。
func (s State) Resolved() bool {
	return !s.IsLoading
}

// SignedIn はログイン済みかを返す。
func (s State) SignedIn() bool {
	return !s.IsLoading && s.User != nil
}

// StateSource は認証状態の変化を通知するストリーム。
// 返された関数を呼ぶと購読を解除し、以降listenerは呼ばれない。
type StateSource interface {
	OnAuthStateChanged(listener func(State)) (unsubscribe func())
}

// Hub はセッションIDごとに認証状態の変化を配信するプロセス内のPub/Sub。
type Hub struct {
	mu   sync.Mutex
	next uint64
	subs map[string]map[uint64]func(State)
}

// NewHub は空のHubを生成する。
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]func(State))}
}

// Subscribe はセッションの状態変化を購読する。
func (h *Hub) Subscribe(sessionID string, listener func(State)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[uint64]func(State))
	}
	h.subs[sessionID][id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[sessionID], id)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
		})
	}
}

// Publish はセッションの全購読者に状態を配信する。
// listenerはHubのロック外で呼ばれる。
func (h *Hub) Publish(sessionID string, state State) {
	h.mu.Lock()
	listeners := make([]func(State), 0, len(h.subs[sessionID]))
	for _, l := range h.subs[sessionID] {
		listeners = append(listeners, l)
	}
	h.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

// Subscribers はセッションの購読者数を返す。
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// UserResolver はセッションIDからユーザーを解決する。
type UserResolver interface {
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// SessionStateSource は1つのセッションの認証状態を流すStateSource。
// 購読直後に読み込み中を通知し、セッションを解決した結果を通知する。
// その後はHub経由の変化（ログアウト等）を購読解除まで転送する。
type SessionStateSource struct {
	ctx       context.Context
	resolver  UserResolver
	hub       *Hub
	sessionID string
	logger    *slog.Logger
}

// NewSessionStateSource はSessionStateSourceを生成する。
// hubがnilの場合は初回の解決結果のみ通知する。
func NewSessionStateSource(ctx context.Context, resolver UserResolver, hub *Hub, sessionID string, logger *slog.Logger) *SessionStateSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStateSource{
		ctx:       ctx,
		resolver:  resolver,
		hub:       hub,
		sessionID: sessionID,
		logger:    logger,
	}
}

// OnAuthStateChanged はStateSourceを実装する。
func (s *SessionStateSource) OnAuthStateChanged(listener func(State)) func() {
	var (
		mu     sync.Mutex
		closed bool
	)
	deliver := func(st State) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		listener(st)
	}

	deliver(State{IsLoading: true})

	unsubscribeHub := func() {}
	if s.hub != nil && s.sessionID != "" {
		unsubscribeHub = s.hub.Subscribe(s.sessionID, deliver)
	}

	if s.sessionID == "" {
		deliver(State{})
	} else {
		go func() {
			deliver(State{User: s.resolve()})
		}()
	}

	return func() {
		mu.Lock()
		closed = true
		mu.Unlock()
		unsubscribeHub()
	}
}

// resolve はセッションのユーザーを取得する。解決できない場合は未ログインとして扱う。
func (s *SessionStateSource) resolve() *model.User {
	user, err := s.resolver.GetCurrentUser(s.ctx, s.sessionID)
	if err != nil {
		s.logger.Debug("session not resolved",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return user
}

var _ StateSource = (*SessionStateSource)(nil)
