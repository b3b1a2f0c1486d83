package studio

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/genstudio/internal/model"
)

// VideoState は動画フォームの現在の状態。
type VideoState struct {
	Prompt      string              `json:"prompt"`
	Style       model.VideoStyle    `json:"style"`
	Duration    model.VideoDuration `json:"duration"`
	AspectRatio model.AspectRatio   `json:"aspect_ratio"`
	Quality     model.VideoQuality  `json:"quality"`
	Generating  bool                `json:"generating"`
	Results     []model.Result      `json:"results"`
	PlayingID   string              `json:"playing_id"`
}

// VideoFlow は動画生成フォーム1つ分の状態とリクエストのライフサイクルを管理する。
// ImageFlowと同じ状態遷移に加え、再生中の動画を1本に制限する。
type VideoFlow struct {
	generator VideoGenerator
	fetcher   Fetcher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
	playback  *Playback

	mu         sync.Mutex
	req        model.VideoRequest
	generating bool
	results    []model.Result
}

// NewVideoFlow はデフォルトのオプションでVideoFlowを生成する。
func NewVideoFlow(generator VideoGenerator, fetcher Fetcher, recorder Recorder, logger *slog.Logger) *VideoFlow {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoFlow{
		generator: generator,
		fetcher:   fetcher,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
		playback:  NewPlayback(),
		req: model.VideoRequest{
			Style:       model.VideoStyleCinematic,
			Duration:    model.VideoDurationStandard,
			AspectRatio: model.AspectRatioLandscape,
			Quality:     model.VideoQualityAuto,
		},
	}
}

// SetPrompt はプロンプトを更新する。
func (f *VideoFlow) SetPrompt(prompt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.req.Prompt = prompt
}

// UpdateOption は指定項目のオプションを更新する。
func (f *VideoFlow) UpdateOption(field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch field {
	case FieldStyle:
		v, err := model.ParseVideoStyle(value)
		if err != nil {
			return err
		}
		f.req.Style = v
	case FieldDuration:
		v, err := model.ParseVideoDuration(value)
		if err != nil {
			return err
		}
		f.req.Duration = v
	case FieldAspectRatio:
		v, err := model.ParseAspectRatio(value)
		if err != nil {
			return err
		}
		f.req.AspectRatio = v
	case FieldQuality:
		v, err := model.ParseVideoQuality(value)
		if err != nil {
			return err
		}
		f.req.Quality = v
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// State は現在の状態のスナップショットを返す。
func (f *VideoFlow) State() VideoState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return VideoState{
		Prompt:      f.req.Prompt,
		Style:       f.req.Style,
		Duration:    f.req.Duration,
		AspectRatio: f.req.AspectRatio,
		Quality:     f.req.Quality,
		Generating:  f.generating,
		Results:     slices.Clone(f.results),
		PlayingID:   f.playback.Playing(),
	}
}

// Results は直近の生成結果を返す。
func (f *VideoFlow) Results() []model.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.results)
}

// ResultAt は指定位置の生成結果を返す。
func (f *VideoFlow) ResultAt(index int) (model.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= len(f.results) {
		return model.Result{}, false
	}
	return f.results[index], true
}

// Submit は現在のオプションで動画生成を1回実行する。
func (f *VideoFlow) Submit(ctx context.Context) (model.Notice, error) {
	return f.submit(ctx, false)
}

// Regenerate は結果一覧をクリアしてから同じオプションで再生成する。
func (f *VideoFlow) Regenerate(ctx context.Context) (model.Notice, error) {
	return f.submit(ctx, true)
}

func (f *VideoFlow) submit(ctx context.Context, clear bool) (model.Notice, error) {
	f.mu.Lock()
	if f.generating {
		f.mu.Unlock()
		err := fmt.Errorf("%w: %w", ErrBusy, model.NewGenerationInProgressError())
		return NoticeFromError(err), err
	}
	if clear {
		f.results = nil
		f.playback.Reset()
	}
	if strings.TrimSpace(f.req.Prompt) == "" {
		f.mu.Unlock()
		err := fmt.Errorf("%w: %w", ErrEmptyPrompt, model.NewEmptyPromptError(model.MediaVideo))
		return NoticeFromError(err), err
	}
	req := f.req
	f.generating = true
	f.mu.Unlock()

	submittedAt := f.now()
	params := model.VideoParams{
		Prompt:      EnhanceVideoPrompt(req.Prompt, req.Style, req.Duration, req.AspectRatio),
		Duration:    req.Duration,
		AspectRatio: req.AspectRatio,
		Quality:     req.Quality,
	}

	resp, err := f.generator.GenerateVideo(ctx, params)
	if err == nil && (resp == nil || resp.URL == "") {
		err = fmt.Errorf("empty response from video generator")
	}
	f.recorder.RecordGeneration(model.MediaVideo, err == nil, time.Since(submittedAt))

	if err != nil {
		f.mu.Lock()
		f.generating = false
		f.mu.Unlock()
		f.logger.Error("error generating video",
			slog.String("error", err.Error()),
			slog.Int("duration", int(req.Duration)),
			slog.String("aspect_ratio", string(req.AspectRatio)),
		)
		wrapped := fmt.Errorf("%w: %w", ErrGenerationFailed, model.NewGenerationFailedError(model.MediaVideo))
		return NoticeFromError(wrapped), wrapped
	}

	video := model.Result{
		URL: resp.URL,
		ID:  fmt.Sprintf("%d", submittedAt.UnixMilli()),
	}

	f.mu.Lock()
	f.results = []model.Result{video}
	f.playback.Reset()
	f.playback.Register(video.ID, &PlayerState{})
	f.generating = false
	f.mu.Unlock()
	f.recorder.RecordResults(model.MediaVideo, 1)

	return successNotice("Video generated successfully!"), nil
}

// TogglePlay は指定動画の再生・一時停止を切り替え、再生中の結果IDを返す。
// 他の動画が再生中であれば先に一時停止される。
func (f *VideoFlow) TogglePlay(id string) (string, error) {
	playing, ok := f.playback.Toggle(id)
	if !ok {
		return playing, model.NewResultNotFoundError(id)
	}
	return playing, nil
}

// Download は生成結果をダウンロード用に取得する。
func (f *VideoFlow) Download(ctx context.Context, rawURL string, index int) (*Blob, model.Notice, error) {
	blob, err := download(ctx, f.fetcher, f.recorder, model.MediaVideo, rawURL, index)
	if err != nil {
		f.logger.Error("error downloading video", slog.String("error", err.Error()))
		return nil, NoticeFromError(err), err
	}
	return blob, successNotice("Video downloaded successfully!"), nil
}

// Reset はフォームを破棄する際に結果一覧と再生状態を解放する。
func (f *VideoFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = nil
	f.playback.Reset()
}
