package cleanup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// scheduleParser は標準の5フィールド式と@daily等の記述子を受け付ける。
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler はcron式に従ってジョブを順に実行する。
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger *slog.Logger
}

// NewScheduler はスケジュール式を検証してSchedulerを生成する。
func NewScheduler(schedule string, logger *slog.Logger, jobs ...Job) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		// 前回の実行が終わっていなければ次回をスキップする
		cron:   cron.New(cron.WithParser(scheduleParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:   jobs,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce は全ジョブを1回ずつ実行する。失敗したジョブがあっても残りは実行する。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	failed := 0
	for _, job := range s.jobs {
		if err := job.Run(ctx); err != nil {
			failed++
			s.logger.Warn("cleanup job failed",
				slog.String("job", job.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
	return failed
}

// Run はctxがキャンセルされるまでスケジュール実行を続ける。
// 終了時は実行中のジョブの完了を待つ。
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("cleanup scheduler started",
		slog.Int("jobs", len(s.jobs)),
		slog.Time("next_run", s.cron.Entries()[0].Next),
	)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("cleanup scheduler stopped")
}
