// Package gate は認証状態に応じて生成ツールの表示可否を決めるセッションゲートを提供する。
//
// Gateは認証状態ストリームを1つ購読し、読み込み中・未ログイン・ツール表示の
// いずれの画面を出すかを決める。ログインは外部のログイン入口に委譲する。
package gate

import (
	"context"
	"sync"

	"github.com/hitoshi/genstudio/internal/auth"
	"github.com/hitoshi/genstudio/internal/model"
)

// View はゲートが表示する画面。
type View int

const (
	ViewLoading View = iota
	ViewSignIn
	ViewTool
)

// String はテンプレートやログで使う画面名を返す。
func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewSignIn:
		return "signin"
	case ViewTool:
		return "tool"
	default:
		return "unknown"
	}
}

// ViewFor は認証状態から表示する画面を決める。
func ViewFor(st auth.State) View {
	switch {
	case st.IsLoading:
		return ViewLoading
	case st.User == nil:
		return ViewSignIn
	default:
		return ViewTool
	}
}

// Gate はマウント中の認証状態の購読を保持する。
// Closeの後は状態更新を反映しない。
type Gate struct {
	login func() string

	mu          sync.Mutex
	state       auth.State
	closed      bool
	unsubscribe func()

	resolved     chan struct{}
	resolvedOnce sync.Once
	changes      chan struct{}
}

// New はsourceを購読したGateを生成する。
// loginは外部のログイン入口（URL）を返す関数。
func New(source auth.StateSource, login func() string) *Gate {
	g := &Gate{
		login:    login,
		state:    auth.State{IsLoading: true},
		resolved: make(chan struct{}),
		changes:  make(chan struct{}, 1),
	}
	unsubscribe := source.OnAuthStateChanged(g.apply)

	g.mu.Lock()
	g.unsubscribe = unsubscribe
	g.mu.Unlock()
	return g
}

func (g *Gate) apply(st auth.State) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.state = st
	g.mu.Unlock()

	if st.Resolved() {
		g.resolvedOnce.Do(func() { close(g.resolved) })
	}
	select {
	case g.changes <- struct{}{}:
	default:
	}
}

// State は最後に受け取った認証状態を返す。
func (g *Gate) State() auth.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// View は現在表示すべき画面を返す。
func (g *Gate) View() View {
	return ViewFor(g.State())
}

// User はログイン中のユーザーを返す。読み込み中・未ログインの場合はnil。
func (g *Gate) User() *model.User {
	st := g.State()
	if !st.SignedIn() {
		return nil
	}
	return st.User
}

// Login は外部のログイン入口を返す。
func (g *Gate) Login() string {
	if g.login == nil {
		return ""
	}
	return g.login()
}

// Wait は認証状態が確定するかctxが終了するまで待つ。
func (g *Gate) Wait(ctx context.Context) (auth.State, error) {
	select {
	case <-g.resolved:
		return g.State(), nil
	case <-ctx.Done():
		return g.State(), ctx.Err()
	}
}

// Changes は状態が更新されるたびに通知するチャネルを返す。
// 通知は合流するため、受信後はStateで最新値を読む。
func (g *Gate) Changes() <-chan struct{} {
	return g.changes
}

// Close は購読を解除する。複数回呼んでもよい。
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
