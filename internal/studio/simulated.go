package studio

import (
	"context"
	"time"

	"github.com/hitoshi/genstudio/internal/model"
)

const (
	// DefaultSimulatedDelay は疑似動画生成の待ち時間。
	DefaultSimulatedDelay = 8 * time.Second
	// DefaultSampleVideoURL は疑似動画生成が返すサンプル動画。
	DefaultSampleVideoURL = "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4"
)

// SimulatedVideoGenerator は固定時間待ってからサンプル動画のURLを返す疑似バックエンド。
// 実際の動画生成APIが用意されるまでの差し替え用。
type SimulatedVideoGenerator struct {
	Delay     time.Duration
	SampleURL string
}

// NewSimulatedVideoGenerator はSimulatedVideoGeneratorを生成する。
// sampleURLが空の場合はDefaultSampleVideoURLを使う。delayが0以下なら待たずに返す。
func NewSimulatedVideoGenerator(delay time.Duration, sampleURL string) *SimulatedVideoGenerator {
	if sampleURL == "" {
		sampleURL = DefaultSampleVideoURL
	}
	return &SimulatedVideoGenerator{Delay: delay, SampleURL: sampleURL}
}

// GenerateVideo はDelayだけ待ってSampleURLを返す。待機中にctxがキャンセルされた場合はエラーを返す。
func (g *SimulatedVideoGenerator) GenerateVideo(ctx context.Context, _ model.VideoParams) (*model.VideoResponse, error) {
	if g.Delay > 0 {
		timer := time.NewTimer(g.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return &model.VideoResponse{URL: g.SampleURL}, nil
}

var _ VideoGenerator = (*SimulatedVideoGenerator)(nil)
