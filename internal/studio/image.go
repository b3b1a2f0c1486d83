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

// 画像フォームのオプション項目名。
const (
	FieldStyle       = "style"
	FieldSize        = "size"
	FieldQuality     = "quality"
	FieldCount       = "count"
	FieldDuration    = "duration"
	FieldAspectRatio = "aspect_ratio"
)

// ImageState は画像フォームの現在の状態。
type ImageState struct {
	Prompt     string             `json:"prompt"`
	Style      model.ImageStyle   `json:"style"`
	Size       model.ImageSize    `json:"size"`
	Quality    model.ImageQuality `json:"quality"`
	Count      model.ImageCount   `json:"count"`
	Generating bool               `json:"generating"`
	Results    []model.Result     `json:"results"`
}

// ImageFlow は画像生成フォーム1つ分の状態とリクエストのライフサイクルを管理する。
// 状態遷移: idle → generating → {success | error} → idle
type ImageFlow struct {
	generator ImageGenerator
	fetcher   Fetcher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	req        model.ImageRequest
	generating bool
	results    []model.Result
}

// NewImageFlow はデフォルトのオプションでImageFlowを生成する。
// recorderがnilの場合は計測を行わない。
func NewImageFlow(generator ImageGenerator, fetcher Fetcher, recorder Recorder, logger *slog.Logger) *ImageFlow {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageFlow{
		generator: generator,
		fetcher:   fetcher,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
		req: model.ImageRequest{
			Style:   model.DefaultImageStyle,
			Size:    model.ImageSizeSquare,
			Quality: model.ImageQualityAuto,
			Count:   model.DefaultImageCount,
		},
	}
}

// SetPrompt はプロンプトを更新する。検証は送信時に行う。
func (f *ImageFlow) SetPrompt(prompt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.req.Prompt = prompt
}

// UpdateOption は指定項目のオプションを更新する。
// 選択肢に無い値は状態を変えずにエラーを返す。
func (f *ImageFlow) UpdateOption(field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch field {
	case FieldStyle:
		v, err := model.ParseImageStyle(value)
		if err != nil {
			return err
		}
		f.req.Style = v
	case FieldSize:
		v, err := model.ParseImageSize(value)
		if err != nil {
			return err
		}
		f.req.Size = v
	case FieldQuality:
		v, err := model.ParseImageQuality(value)
		if err != nil {
			return err
		}
		f.req.Quality = v
	case FieldCount:
		v, err := model.ParseImageCount(value)
		if err != nil {
			return err
		}
		f.req.Count = v
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// State は現在の状態のスナップショットを返す。
func (f *ImageFlow) State() ImageState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ImageState{
		Prompt:     f.req.Prompt,
		Style:      f.req.Style,
		Size:       f.req.Size,
		Quality:    f.req.Quality,
		Count:      f.req.Count,
		Generating: f.generating,
		Results:    slices.Clone(f.results),
	}
}

// Results は直近の生成結果を返す。
func (f *ImageFlow) Results() []model.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.results)
}

// ResultAt は指定位置の生成結果を返す。
func (f *ImageFlow) ResultAt(index int) (model.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= len(f.results) {
		return model.Result{}, false
	}
	return f.results[index], true
}

// Submit は現在のオプションで画像生成を1回実行する。
// 失敗時も生成中フラグは必ず解除され、直前の結果一覧は変更されない。
func (f *ImageFlow) Submit(ctx context.Context) (model.Notice, error) {
	return f.submit(ctx, false)
}

// Regenerate は結果一覧をクリアしてから同じオプションで再生成する。
func (f *ImageFlow) Regenerate(ctx context.Context) (model.Notice, error) {
	return f.submit(ctx, true)
}

func (f *ImageFlow) submit(ctx context.Context, clear bool) (model.Notice, error) {
	f.mu.Lock()
	if f.generating {
		f.mu.Unlock()
		err := fmt.Errorf("%w: %w", ErrBusy, model.NewGenerationInProgressError())
		return NoticeFromError(err), err
	}
	if clear {
		f.results = nil
	}
	if strings.TrimSpace(f.req.Prompt) == "" {
		f.mu.Unlock()
		err := fmt.Errorf("%w: %w", ErrEmptyPrompt, model.NewEmptyPromptError(model.MediaImage))
		return NoticeFromError(err), err
	}
	req := f.req
	f.generating = true
	f.mu.Unlock()

	submittedAt := f.now()
	params := model.ImageParams{
		Prompt:  EnhanceImagePrompt(req.Prompt, req.Style),
		Size:    req.Size,
		Quality: req.Quality,
		N:       int(req.Count),
		Style:   model.ImageStyleNatural,
	}

	resp, err := f.generator.GenerateImage(ctx, params)
	if err == nil {
		err = validateImageResponse(resp)
	}
	f.recorder.RecordGeneration(model.MediaImage, err == nil, time.Since(submittedAt))

	if err != nil {
		f.finish(nil, false)
		f.logger.Error("error generating images",
			slog.String("error", err.Error()),
			slog.String("size", string(req.Size)),
			slog.Int("count", int(req.Count)),
		)
		wrapped := fmt.Errorf("%w: %w", ErrGenerationFailed, model.NewGenerationFailedError(model.MediaImage))
		return NoticeFromError(wrapped), wrapped
	}

	results := make([]model.Result, len(resp.Data))
	for i, img := range resp.Data {
		results[i] = model.Result{
			URL: img.URL,
			ID:  fmt.Sprintf("%d-%d", submittedAt.UnixMilli(), i),
		}
	}
	f.finish(results, true)
	f.recorder.RecordResults(model.MediaImage, len(results))

	suffix := ""
	if len(results) > 1 {
		suffix = "s"
	}
	return successNotice("Generated %d image%s successfully!", len(results), suffix), nil
}

// finish は生成中フラグを解除し、成功時のみ結果一覧を置き換える。
func (f *ImageFlow) finish(results []model.Result, replace bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if replace {
		f.results = results
	}
	f.generating = false
}

// Download は生成結果をダウンロード用に取得する。indexは0始まりの表示位置。
func (f *ImageFlow) Download(ctx context.Context, rawURL string, index int) (*Blob, model.Notice, error) {
	blob, err := download(ctx, f.fetcher, f.recorder, model.MediaImage, rawURL, index)
	if err != nil {
		f.logger.Error("error downloading image", slog.String("error", err.Error()))
		return nil, NoticeFromError(err), err
	}
	return blob, successNotice("Image downloaded successfully!"), nil
}

// Reset はフォームを破棄する際に結果一覧を解放する。
func (f *ImageFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = nil
}

func validateImageResponse(resp *model.ImageResponse) error {
	if resp == nil {
		return fmt.Errorf("empty response from image generator")
	}
	for i, img := range resp.Data {
		if img.URL == "" {
			return fmt.Errorf("image %d has no url", i)
		}
	}
	return nil
}
