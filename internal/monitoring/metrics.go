package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 扫描任务指标
	SweepRunsTotal    *prometheus.CounterVec // 按任务类型
	WarningsSent      prometheus.Counter
	UnlocksTriggered  *prometheus.CounterVec // 按解锁原因
	RemindersSent     *prometheus.CounterVec // 按提醒档位

	// 邮件指标
	EmailsSentTotal   *prometheus.CounterVec // 按模板
	EmailsFailedTotal *prometheus.CounterVec // 按模板

	// 业务指标
	BeneficiariesAdded     prometheus.Counter
	BeneficiariesRevoked   prometheus.Counter
	VerificationsTotal     prometheus.Counter
	UnlockTokenValidations *prometheus.CounterVec // 按结果
}

// NewMetrics 创建监控指标，promauto 自动注册到默认 Registry。
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heritage_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "heritage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		SweepRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heritage_sweep_runs_total",
			Help: "Total number of sweep executions",
		}, []string{"job"}),
		WarningsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heritage_inactivity_warnings_sent_total",
			Help: "Total number of inactivity warning emails sent to owners",
		}),
		UnlocksTriggered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heritage_unlocks_triggered_total",
			Help: "Total number of unlock events fired",
		}, []string{"unlock_type"}),
		RemindersSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heritage_verification_reminders_sent_total",
			Help: "Total number of verification reminder emails sent",
		}, []string{"tier"}),
		EmailsSentTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heritage_emails_sent_total",
			Help: "Total number of emails handed to the mail collaborator",
		}, []string{"template"}),
		EmailsFailedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heritage_emails_failed_total",
			Help: "Total number of email sends that failed (non-fatal)",
		}, []string{"template"}),
		BeneficiariesAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heritage_beneficiaries_added_total",
			Help: "Total number of beneficiaries added",
		}),
		BeneficiariesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heritage_beneficiaries_revoked_total",
			Help: "Total number of beneficiaries revoked",
		}),
		VerificationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heritage_beneficiary_verifications_total",
			Help: "Total number of successful beneficiary verifications",
		}),
		UnlockTokenValidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heritage_unlock_token_validations_total",
			Help: "Total number of unlock token validation attempts",
		}, []string{"result"}),
	}
}

// HTTPHandler 返回 Prometheus 指标的 HTTP 处理器。
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware 记录请求量与时延的 Gin 中间件。
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}
