// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/genstudio/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 生成フローとHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordGeneration(kind model.MediaKind, success bool, d time.Duration)
	RecordResults(kind model.MediaKind, n int)
	RecordDownload(kind model.MediaKind, success bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	generations       *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	results           *prometheus.CounterVec
	downloads         *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genstudio_generations_total",
			Help: "生成リクエストの合計数（種別・結果別）",
		}, []string{"kind", "outcome"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "genstudio_generation_latency_seconds",
			Help: "生成バックエンド呼び出しのレイテンシ（秒）",
			// 動画の疑似生成は8秒待つため上限を広めに取る
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"kind"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genstudio_results_total",
			Help: "生成された結果の合計数",
		}, []string{"kind"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genstudio_downloads_total",
			Help: "ダウンロードの合計数（種別・結果別）",
		}, []string{"kind", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genstudio_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.generations,
		c.generationLatency,
		c.results,
		c.downloads,
		c.httpStatus,
	)

	return c
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordGeneration は生成リクエストの結果とレイテンシを記録する。
func (c *Collector) RecordGeneration(kind model.MediaKind, success bool, d time.Duration) {
	c.generations.WithLabelValues(string(kind), outcome(success)).Inc()
	c.generationLatency.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// RecordResults は生成された結果数を記録する。
func (c *Collector) RecordResults(kind model.MediaKind, n int) {
	c.results.WithLabelValues(string(kind)).Add(float64(n))
}

// RecordDownload はダウンロードの結果を記録する。
func (c *Collector) RecordDownload(kind model.MediaKind, success bool) {
	c.downloads.WithLabelValues(string(kind), outcome(success)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RegisterWorkspaceGauge は保持中のWorkspace数を公開するゲージを登録する。
func RegisterWorkspaceGauge(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "genstudio_workspaces",
		Help: "メモリ上に保持しているWorkspace数",
	}, func() float64 { return float64(count()) }))
}

// Instrument はレスポンスのステータスコードを記録するミドルウェアを返す。
func Instrument(c MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			c.RecordHTTPStatus(status)
		})
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
