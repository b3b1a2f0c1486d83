// Package logger はslogのJSONロガーと、ログファイルへのローテーション出力を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// ServiceName はすべてのログに付与するservice属性の値。
	ServiceName = "genstudio"

	rotateMaxSizeMB  = 100
	rotateMaxBackups = 10
)

// New はlevel以上をwへJSONで出力するロガーを返す。wがnilならos.Stdout。
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})).
		With(slog.String("service", ServiceName))
}

// SetupDefault はNewで作ったロガーをslogのデフォルトにする。
func SetupDefault(w io.Writer, level slog.Leveler) {
	slog.SetDefault(New(w, level))
}

// TeeFile はwへの出力に加えてpathへローテーション付きで書き込むwriterを返す。
// pathが空ならwをそのまま返す。maxAgeDaysが0以下なら古いファイルを日数では消さない。
// 返すCloserはプロセス終了時に閉じる。
func TeeFile(w io.Writer, path string, maxAgeDays int) (io.Writer, io.Closer) {
	if path == "" {
		return w, nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotateMaxSizeMB,
		MaxBackups: rotateMaxBackups,
		MaxAge:     max(maxAgeDays, 0),
		Compress:   true,
	}
	return io.MultiWriter(w, file), file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
