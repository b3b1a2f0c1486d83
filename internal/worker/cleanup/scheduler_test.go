package cleanup

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

type recordingJob struct {
	name  string
	err   error
	calls int
}

func (j *recordingJob) Name() string { return j.name }

func (j *recordingJob) Run(context.Context) error {
	j.calls++
	return j.err
}

func TestNewScheduler_ValidatesSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		wantErr  bool
	}{
		{"0 3 * * *", false},
		{"@daily", false},
		{"*/15 * * * *", false},
		{"0 0 3 * * *", true},
		{"every night", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			_, err := NewScheduler(tt.schedule, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewScheduler(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_RunOnce_ContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	failing := &recordingJob{name: "session_cleanup", err: errors.New("db down")}
	ok := &recordingJob{name: "artifact_cleanup"}

	s, err := NewScheduler("@daily", newTestLogger(&buf), failing, ok)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	if failed := s.RunOnce(context.Background()); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", failing.calls, ok.calls)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"job":"session_cleanup"`)) {
		t.Errorf("失敗したジョブ名がログに記録されていない。ログ出力: %s", buf.String())
	}
}

func TestScheduler_Run_StopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewScheduler("@daily", newTestLogger(&buf), &recordingJob{name: "noop"})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !bytes.Contains(buf.Bytes(), []byte("cleanup scheduler stopped")) {
		t.Errorf("停止ログが記録されていない。ログ出力: %s", buf.String())
	}
}
