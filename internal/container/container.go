package container

import (
	"fmt"
	"time"

	"github.com/mautops/promotion-vote/internal/config"
	"github.com/mautops/promotion-vote/internal/database"
	"github.com/mautops/promotion-vote/internal/integration"
	"github.com/mautops/promotion-vote/internal/repository"
	"github.com/mautops/promotion-vote/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理数据库、事件处理器和各领域服务
type Container struct {
	db           *gorm.DB
	eventHandler *integration.EventHandler
	audit        service.AuditLogService
	votes        service.VoteService
	statistics   service.StatisticsService
	integrity    service.IntegrityService
	appeals      service.AppealService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	// 1. 初始化数据库(带重试机制)
	// 默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return New(db, cfg, logger), nil
}

// New 基于已有连接组装服务,测试中直接使用
func New(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Container {
	clock := service.SystemClock()

	// 2. 初始化 EventHandler
	eventHandler := integration.NewEventHandler(repository.NewEventRepository(db), cfg.Notifier, logger)

	// 3. 初始化仓储与服务
	voteRepo := repository.NewVoteRepository(db)
	appealRepo := repository.NewAppealRepository(db)
	registry := service.NewRegistry(repository.NewCampaignRepository(db))
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), clock)

	integrity := service.NewIntegrityService(db, voteRepo, registry, audit, eventHandler, clock, logger)
	votes := service.NewVoteService(voteRepo, registry, registry, eventHandler, clock, service.VoteConfig{
		TokenSalt:     cfg.Vote.TokenSalt,
		MaxAmendments: cfg.Vote.MaxAmendments,
	}, logger)
	statistics := service.NewStatisticsService(db, voteRepo, appealRepo, registry, clock)
	appeals := service.NewAppealService(db, appealRepo, repository.NewStateHistoryRepository(db),
		audit, registry, integrity, eventHandler, clock, service.AppealConfig{
			WindowDays:     cfg.Appeal.WindowDays,
			RateLimit:      cfg.Appeal.RateLimit,
			RateWindowDays: cfg.Appeal.RateWindowDays,
		}, logger)

	return &Container{
		db:           db,
		eventHandler: eventHandler,
		audit:        audit,
		votes:        votes,
		statistics:   statistics,
		integrity:    integrity,
		appeals:      appeals,
	}
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// EventHandler 获取事件处理器
func (c *Container) EventHandler() *integration.EventHandler {
	return c.eventHandler
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.audit
}

// VoteService 获取投票服务
func (c *Container) VoteService() service.VoteService {
	return c.votes
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statistics
}

// IntegrityService 获取完整性审计服务
func (c *Container) IntegrityService() service.IntegrityService {
	return c.integrity
}

// AppealService 获取申诉服务
func (c *Container) AppealService() service.AppealService {
	return c.appeals
}

// Close 关闭容器,清理资源
// 先停止事件处理器,让排队中的事件写完状态后再关闭连接
func (c *Container) Close() error {
	if c.eventHandler != nil {
		c.eventHandler.Stop()
	}
	if c.db != nil {
		database.Close(c.db)
	}
	return nil
}
