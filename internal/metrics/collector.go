package metrics

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AppealCounter 提供申诉状态分布与超时数量
type AppealCounter interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Collector 指标收集器
type Collector struct {
	db       *gorm.DB
	appeals  AppealCounter
	interval time.Duration
	logger   *logrus.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器,appeals 可为 nil
func NewCollector(db *gorm.DB, appeals AppealCounter, interval time.Duration, logger *logrus.Logger) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Collector{
		db:       db,
		appeals:  appeals,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce(c.ctx)
		}
	}
}

// CollectOnce 立即刷新一次全部指标
func (c *Collector) CollectOnce(ctx context.Context) {
	if err := UpdateDatabaseConnections(c.db); err != nil {
		c.logger.WithError(err).Debug("failed to collect database metrics")
	}
	if c.appeals == nil {
		return
	}

	counts, err := c.appeals.CountByStatus(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("failed to collect appeal status metrics")
	} else {
		for status, count := range counts {
			UpdateAppealsByStatus(status, float64(count))
		}
	}

	overdue, err := c.appeals.CountOverdue(ctx, time.Now().UTC())
	if err != nil {
		c.logger.WithError(err).Warn("failed to collect overdue appeal metrics")
		return
	}
	UpdateAppealsOverdue(float64(overdue))
}
