package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/promotion-vote/internal/config"
	"github.com/mautops/promotion-vote/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dependencies 路由依赖
type Dependencies struct {
	DB         *gorm.DB
	Votes      service.VoteService
	Statistics service.StatisticsService
	Integrity  service.IntegrityService
	Appeals    service.AppealService
	Server     config.ServerConfig
	Logger     *logrus.Logger
}

// SetupRoutes 配置路由
func SetupRoutes(deps *Dependencies) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(deps.Logger))

	// 健康检查
	healthController := NewHealthController(deps.DB)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	voteController := NewVoteController(deps.Votes)
	campaignController := NewCampaignController(deps.Statistics, deps.Integrity)
	appealController := NewAppealController(deps.Appeals, deps.Statistics)

	// 写接口按客户端限流
	limited := RateLimitMiddleware(deps.Server.RateLimitRPS, deps.Server.RateLimitBurst)

	// 回执核验不需要身份,令牌本身即凭证
	router.GET("/api/v1/receipts/:token", voteController.Receipt)

	// API v1 路由组
	v1 := router.Group("/api/v1", RequireUser())
	{
		campaigns := v1.Group("/campaigns/:id")
		{
			campaigns.POST("/votes", limited, voteController.Cast)
			campaigns.GET("/votes/me", voteController.HasVoted)
			campaigns.PUT("/votes/me", limited, voteController.Amend)
			campaigns.GET("/stats", campaignController.Stats)
			campaigns.GET("/timeline", campaignController.Timeline)
			campaigns.GET("/integrity", campaignController.Integrity)
			campaigns.POST("/integrity/audit", campaignController.Audit)
			campaigns.POST("/integrity/remediate", campaignController.Remediate)
		}

		v1.POST("/votes/:id/invalidate", campaignController.InvalidateVote)

		appeals := v1.Group("/appeals")
		{
			appeals.POST("", limited, appealController.Submit)
			appeals.GET("/queue", appealController.Queue)
			appeals.GET("/overdue", appealController.Overdue)
			appeals.GET("/statistics", appealController.Statistics)
			appeals.GET("/mine", appealController.Mine)
			appeals.GET("/:id", appealController.Get)
			appeals.GET("/:id/history", appealController.History)
			appeals.GET("/:id/review-context", appealController.ReviewContext)
			appeals.POST("/:id/start-review", appealController.StartReview)
			appeals.POST("/:id/review", appealController.Review)
			appeals.POST("/:id/withdraw", limited, appealController.Withdraw)
		}

		v1.GET("/employees/:id/appeals", appealController.EmployeeHistory)
	}

	return router
}
