package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/genstudio/internal/middleware"
)

// HealthCheck は依存先1つ分の疎通確認。
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewHealthHandler はヘルスチェックエンドポイントのハンドラーを返す。
// いずれかの確認が失敗した場合は503を返す。
// GET /health
func NewHealthHandler(checks []HealthCheck, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				slog.Warn("health check failed",
					slog.String("check", c.Name),
					slog.String("error", err.Error()),
				)
				resp.Checks[c.Name] = "unavailable"
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}

		middleware.WriteJSON(w, status, resp)
	})
}
