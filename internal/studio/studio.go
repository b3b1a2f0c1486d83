// Package studio は画像・動画生成フォームの状態管理とリクエスト組み立てを提供する。
//
// 1つのフロー（ImageFlow / VideoFlow）が1つの生成フォームに相当し、
// 選択中のオプション、生成中フラグ、直近の生成結果だけを保持する。
// 実際の生成は外部の生成バックエンドに委譲する。
package studio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/genstudio/internal/model"
)

var (
	// ErrEmptyPrompt はプロンプトが空または空白のみであることを示す。
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrBusy は生成中に再度送信されたことを示す。
	ErrBusy = errors.New("generation already in progress")
	// ErrGenerationFailed は生成バックエンドの呼び出しが失敗したことを示す。
	ErrGenerationFailed = errors.New("generation failed")
	// ErrDownloadFailed は生成結果のダウンロードが失敗したことを示す。
	ErrDownloadFailed = errors.New("download failed")
	// ErrUnknownField は存在しないオプション項目が指定されたことを示す。
	ErrUnknownField = errors.New("unknown option field")
	// ErrURLRejected はダウンロード先URLが安全性検証で拒否されたことを示す。
	ErrURLRejected = errors.New("url rejected")
)

// ImageGenerator は画像生成バックエンドのインターフェース。
// 呼び出しは全件成功か失敗のどちらかで、部分的な結果は返さない。
type ImageGenerator interface {
	GenerateImage(ctx context.Context, params model.ImageParams) (*model.ImageResponse, error)
}

// VideoGenerator は動画生成バックエンドのインターフェース。
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, params model.VideoParams) (*model.VideoResponse, error)
}

// Fetcher は生成結果のURLからバイナリを取得するインターフェース。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (data []byte, contentType string, err error)
}

// Recorder は生成・ダウンロードの計測値を記録するインターフェース。
type Recorder interface {
	RecordGeneration(kind model.MediaKind, success bool, d time.Duration)
	RecordResults(kind model.MediaKind, n int)
	RecordDownload(kind model.MediaKind, success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordGeneration(model.MediaKind, bool, time.Duration) {}
func (nopRecorder) RecordResults(model.MediaKind, int)                    {}
func (nopRecorder) RecordDownload(model.MediaKind, bool)                  {}

// Blob はダウンロード用に取得した生成結果のバイナリ。
type Blob struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DownloadFilename は保存時のファイル名を返す。indexは0始まり。
func DownloadFilename(kind model.MediaKind, index int) string {
	ext := "png"
	if kind == model.MediaVideo {
		ext = "mp4"
	}
	return fmt.Sprintf("ai-generated-%s-%d.%s", kind, index+1, ext)
}

// NoticeFromError はエラーをユーザー向けの通知に変換する。
// APIErrorを含まないエラーは内部エラーの文言にする。
func NoticeFromError(err error) model.Notice {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return model.Notice{Level: model.NoticeError, Message: apiErr.Message}
	}
	return model.Notice{Level: model.NoticeError, Message: model.NewInternalError().Message}
}

func successNotice(format string, args ...any) model.Notice {
	return model.Notice{Level: model.NoticeSuccess, Message: fmt.Sprintf(format, args...)}
}

// download はフロー共通のダウンロード処理。
func download(ctx context.Context, fetcher Fetcher, rec Recorder, kind model.MediaKind, rawURL string, index int) (*Blob, error) {
	data, contentType, err := fetcher.Fetch(ctx, rawURL)
	if err != nil {
		rec.RecordDownload(kind, false)
		return nil, fmt.Errorf("%w: %w: %w", ErrDownloadFailed, model.NewDownloadFailedError(kind), err)
	}
	rec.RecordDownload(kind, true)

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Blob{
		Filename:    DownloadFilename(kind, index),
		ContentType: contentType,
		Data:        data,
	}, nil
}
