// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 期限切れセッションと、署名付きURLの有効期間を過ぎた生成結果を
// cronスケジュールで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultSessionGrace は期限切れセッションを削除せずに残しておく時間。
const DefaultSessionGrace = 24 * time.Hour

// Job はスケジューラから実行される削除ジョブ。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// SessionPurger は期限切れセッションを削除する。repository.PostgresSessionRepoが実装する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context, grace time.Duration) (int64, error)
}

// ArtifactPruner は保存済み生成結果の削除を行う。storage.Clientが実装する。
type ArtifactPruner interface {
	PruneOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// SessionCleanupJob は期限切れセッションの削除ジョブ。
// 削除対象が無くてもエラーにならない。
type SessionCleanupJob struct {
	purger SessionPurger
	logger *slog.Logger
	// Grace は期限切れ後も残しておく時間
	Grace time.Duration
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(purger SessionPurger, logger *slog.Logger) *SessionCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCleanupJob{purger: purger, logger: logger, Grace: DefaultSessionGrace}
}

// Name はJobを実装する。
func (j *SessionCleanupJob) Name() string { return "session_cleanup" }

// Run はexpires_atからGrace以上経過したセッションを削除する。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	n, err := j.purger.DeleteExpired(ctx, j.Grace)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.String("grace", j.Grace.String()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", n),
		slog.String("grace", j.Grace.String()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// ArtifactCleanupJob は保存期間を過ぎた生成結果の削除ジョブ。
type ArtifactCleanupJob struct {
	pruner ArtifactPruner
	maxAge time.Duration
	logger *slog.Logger
}

// NewArtifactCleanupJob は新しいArtifactCleanupJobを生成する。
// maxAgeには署名付きURLの有効期間を渡す。
func NewArtifactCleanupJob(pruner ArtifactPruner, maxAge time.Duration, logger *slog.Logger) *ArtifactCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactCleanupJob{pruner: pruner, maxAge: maxAge, logger: logger}
}

// Name はJobを実装する。
func (j *ArtifactCleanupJob) Name() string { return "artifact_cleanup" }

// Run は最終更新からmaxAgeを超えた生成結果を削除する。
// 途中で失敗した場合も、それまでに削除した件数を記録する。
func (j *ArtifactCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	n, err := j.pruner.PruneOlderThan(ctx, j.maxAge)
	if err != nil {
		j.logger.Error("生成結果クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("deleted_count", n),
		)
		return fmt.Errorf("生成結果クリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("生成結果クリーンアップジョブが完了しました",
		slog.Int("deleted_count", n),
		slog.String("max_age", j.maxAge.String()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
