package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/promotion-vote/internal/service"
)

// CampaignController 活动统计与完整性审计控制器
type CampaignController struct {
	statsService     service.StatisticsService
	integrityService service.IntegrityService
}

// NewCampaignController 创建活动控制器
func NewCampaignController(statsService service.StatisticsService, integrityService service.IntegrityService) *CampaignController {
	return &CampaignController{
		statsService:     statsService,
		integrityService: integrityService,
	}
}

// invalidateVoteBody 作废选票请求体
type invalidateVoteBody struct {
	Reason string `json:"reason" binding:"required"`
}

// Stats 活动投票统计
// @Router       /campaigns/{id}/stats [get]
func (c *CampaignController) Stats(ctx *gin.Context) {
	stats, err := c.statsService.CampaignStats(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, stats)
}

// Timeline 按天统计投票数
// @Router       /campaigns/{id}/timeline [get]
func (c *CampaignController) Timeline(ctx *gin.Context) {
	points, err := c.statsService.VoteTimeline(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, points)
}

// Integrity 完整性检查
// @Router       /campaigns/{id}/integrity [get]
func (c *CampaignController) Integrity(ctx *gin.Context) {
	report, err := c.integrityService.ValidateIntegrity(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, report)
}

// Audit 执行完整性审计,有异常时发出告警事件
// @Router       /campaigns/{id}/integrity/audit [post]
func (c *CampaignController) Audit(ctx *gin.Context) {
	report, err := c.integrityService.AuditIntegrity(ctx.Request.Context(), ctx.Param("id"), currentUser(ctx))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, report)
}

// Remediate 清理重复指纹,保留最早的有效票
// @Router       /campaigns/{id}/integrity/remediate [post]
func (c *CampaignController) Remediate(ctx *gin.Context) {
	count, err := c.integrityService.RemediateDuplicates(ctx.Request.Context(), ctx.Param("id"), currentUser(ctx))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{"invalidated": count})
}

// InvalidateVote 作废单张选票
// @Router       /votes/{id}/invalidate [post]
func (c *CampaignController) InvalidateVote(ctx *gin.Context) {
	var body invalidateVoteBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	vote, err := c.integrityService.InvalidateVote(ctx.Request.Context(), ctx.Param("id"), currentUser(ctx), body.Reason)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{
		"vote_id":             vote.ID,
		"is_valid":            vote.IsValid,
		"invalidated_at":      vote.InvalidatedAt,
		"invalidation_reason": vote.InvalidationReason,
	})
}
