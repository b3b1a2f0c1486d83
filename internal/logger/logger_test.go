package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("not a JSON line: %v\n%s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_WritesJSONWithServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelInfo).Warn("download completed",
		slog.String("kind", "video"),
		slog.Int("bytes", 25),
	)

	entries := decodeLines(t, buf.Bytes())
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	want := map[string]any{
		"msg":     "download completed",
		"level":   "WARN",
		"service": ServiceName,
		"kind":    "video",
		"bytes":   float64(25),
	}
	for k, v := range want {
		if e[k] != v {
			t.Errorf("%s = %v, want %v", k, e[k], v)
		}
	}
	if _, ok := e["time"]; !ok {
		t.Error("time field missing")
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  []string
	}{
		{slog.LevelDebug, []string{"DEBUG", "INFO", "ERROR"}},
		{slog.LevelInfo, []string{"INFO", "ERROR"}},
		{slog.LevelError, []string{"ERROR"}},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, tt.level)
			l.Debug("d")
			l.Info("i")
			l.Error("e")

			var got []string
			for _, e := range decodeLines(t, buf.Bytes()) {
				got = append(got, e["level"].(string))
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("levels = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupDefault(&buf, slog.LevelInfo)
	slog.Info("global", slog.String("session", "s-1"))

	entries := decodeLines(t, buf.Bytes())
	if len(entries) != 1 || entries[0]["session"] != "s-1" {
		t.Errorf("entries = %v", entries)
	}
}

func TestTeeFile_WritesToBothOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "genstudio.log")
	var buf bytes.Buffer

	w, closer := TeeFile(&buf, path, 7)
	New(w, slog.LevelInfo).Info("generation completed", slog.String("kind", "image"))
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !bytes.Equal(data, buf.Bytes()) {
		t.Errorf("file = %q, stdout = %q", data, buf.Bytes())
	}
	if e := decodeLines(t, data); e[0]["kind"] != "image" {
		t.Errorf("kind = %v", e[0]["kind"])
	}
}

func TestTeeFile_EmptyPathReturnsWriter(t *testing.T) {
	var buf bytes.Buffer

	w, closer := TeeFile(&buf, "", 14)
	if w != io.Writer(&buf) {
		t.Error("expected the original writer when path is empty")
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
