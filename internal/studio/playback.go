package studio

import (
	"sync"
)

// Player は1本の動画の再生コントローラー。
type Player interface {
	Play()
	Pause()
}

// PlayerState はサーバー側で再生状態だけを保持するPlayer実装。
// ブラウザはこの状態を反映して<video>要素を操作する。
type PlayerState struct {
	mu      sync.Mutex
	playing bool
}

// Play は再生中にする。
func (p *PlayerState) Play() {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
}

// Pause は一時停止にする。
func (p *PlayerState) Pause() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
}

// IsPlaying は再生中かどうかを返す。
func (p *PlayerState) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Playback は現在の結果一覧に属するPlayerの登録簿。
// 同時に再生できるのは1本だけで、playingに再生中の結果IDを保持する。
type Playback struct {
	mu      sync.Mutex
	players map[string]Player
	playing string
}

// NewPlayback は空のPlaybackを生成する。
func NewPlayback() *Playback {
	return &Playback{players: make(map[string]Player)}
}

// Register は結果IDにPlayerを紐付ける。
func (p *Playback) Register(id string, player Player) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.players[id] = player
}

// Reset は全Playerを停止して登録を破棄する。結果一覧の入れ替え時に呼ぶ。
func (p *Playback) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, player := range p.players {
		player.Pause()
	}
	p.players = make(map[string]Player)
	p.playing = ""
}

// Toggle は指定IDの再生・一時停止を切り替える。
// 再生中のIDなら一時停止し、それ以外なら他の全Playerを停止してから再生する。
// 未登録のIDは何もせずfalseを返す。
func (p *Playback) Toggle(id string) (playing string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target, exists := p.players[id]
	if !exists {
		return p.playing, false
	}

	if p.playing == id {
		target.Pause()
		p.playing = ""
		return p.playing, true
	}

	for otherID, other := range p.players {
		if otherID != id {
			other.Pause()
		}
	}
	target.Play()
	p.playing = id
	return p.playing, true
}

// Playing は再生中の結果IDを返す。再生中でなければ空文字列。
func (p *Playback) Playing() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
