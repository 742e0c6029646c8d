package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 投票数
	votesCastTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "votes_cast_total",
			Help: "Total number of votes cast",
		},
	)

	// 重复投票被拒次数
	duplicateVotesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicate_votes_rejected_total",
			Help: "Total number of rejected duplicate votes",
		},
	)

	// 改票次数
	voteAmendmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vote_amendments_total",
			Help: "Total number of vote amendments",
		},
	)

	// 申诉提交数
	appealsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appeals_submitted_total",
			Help: "Total number of appeals submitted",
		},
		[]string{"type"},
	)

	// 申诉处理数
	appealsResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appeals_resolved_total",
			Help: "Total number of appeals resolved",
		},
		[]string{"status"}, // approved, rejected, withdrawn
	)

	// 完整性告警数
	integrityFlagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integrity_flags_total",
			Help: "Total number of integrity anomalies detected",
		},
		[]string{"kind"}, // duplicate, temporal
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 申诉状态分布
	appealsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "appeals_by_status",
			Help: "Number of appeals by status",
		},
		[]string{"status"},
	)

	// 超时未处理申诉数
	appealsOverdue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "appeals_overdue",
			Help: "Number of open appeals past their resolution time limit",
		},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(votesCastTotal)
	prometheus.MustRegister(duplicateVotesTotal)
	prometheus.MustRegister(voteAmendmentsTotal)
	prometheus.MustRegister(appealsSubmittedTotal)
	prometheus.MustRegister(appealsResolvedTotal)
	prometheus.MustRegister(integrityFlagsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(appealsByStatus)
	prometheus.MustRegister(appealsOverdue)

	// Go 运行时指标只注册一次,已注册则忽略
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordVoteCast 记录一次成功投票
func RecordVoteCast() {
	votesCastTotal.Inc()
}

// RecordDuplicateVote 记录一次重复投票拒绝
func RecordDuplicateVote() {
	duplicateVotesTotal.Inc()
}

// RecordVoteAmended 记录一次改票
func RecordVoteAmended() {
	voteAmendmentsTotal.Inc()
}

// RecordAppealSubmitted 记录申诉提交
func RecordAppealSubmitted(appealType string) {
	appealsSubmittedTotal.WithLabelValues(appealType).Inc()
}

// RecordAppealResolved 记录申诉进入终态
func RecordAppealResolved(status string) {
	appealsResolvedTotal.WithLabelValues(status).Inc()
}

// RecordIntegrityFlags 记录完整性异常
func RecordIntegrityFlags(kind string, count int) {
	if count <= 0 {
		return
	}
	integrityFlagsTotal.WithLabelValues(kind).Add(float64(count))
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateAppealsByStatus 更新申诉状态分布指标
func UpdateAppealsByStatus(status string, count float64) {
	appealsByStatus.WithLabelValues(status).Set(count)
}

// UpdateAppealsOverdue 更新超时申诉数
func UpdateAppealsOverdue(count float64) {
	appealsOverdue.Set(count)
}
