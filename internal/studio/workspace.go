package studio

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Workspace はセッション1つ分の生成フォーム（画像と動画）。
type Workspace struct {
	Image *ImageFlow
	Video *VideoFlow
}

// reset はフォームの結果を解放する。
func (w *Workspace) reset() {
	w.Image.Reset()
	w.Video.Reset()
}

// WorkspaceFactory は新しいWorkspaceを生成する関数。
type WorkspaceFactory func() *Workspace

type workspaceEntry struct {
	ws       *Workspace
	lastUsed time.Time
}

// Registry はセッションIDごとのWorkspaceをメモリ上で管理する。
// ログアウト時またはidleTTLを超えて未使用のWorkspaceは破棄する。
type Registry struct {
	factory WorkspaceFactory
	idleTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*workspaceEntry
}

// NewRegistry はRegistryを生成する。
func NewRegistry(factory WorkspaceFactory, idleTTL time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factory: factory,
		idleTTL: idleTTL,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*workspaceEntry),
	}
}

// Get はセッションのWorkspaceを返す。存在しなければ生成する。
func (r *Registry) Get(sessionID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[sessionID]; ok {
		e.lastUsed = r.now()
		return e.ws
	}

	ws := r.factory()
	r.entries[sessionID] = &workspaceEntry{ws: ws, lastUsed: r.now()}
	return ws
}

// Drop はセッションのWorkspaceを破棄する。ログアウト時に呼ぶ。
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	r.mu.Unlock()

	if ok {
		e.ws.reset()
	}
}

// Len は管理中のWorkspace数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep はidleTTLを超えて未使用のWorkspaceを破棄し、破棄した件数を返す。
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}

	now := r.now()
	var expired []*Workspace

	r.mu.Lock()
	for id, e := range r.entries {
		if now.Sub(e.lastUsed) > r.idleTTL {
			expired = append(expired, e.ws)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, ws := range expired {
		ws.reset()
	}
	return len(expired)
}

// Run はctxがキャンセルされるまでinterval間隔でSweepを実行する。
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("idle workspaces evicted", slog.Int("count", n))
			}
		}
	}
}
