package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/service"
)

// AppealController 申诉控制器
type AppealController struct {
	appealService service.AppealService
	statsService  service.StatisticsService
}

// NewAppealController 创建申诉控制器
func NewAppealController(appealService service.AppealService, statsService service.StatisticsService) *AppealController {
	return &AppealController{
		appealService: appealService,
		statsService:  statsService,
	}
}

// submitAppealBody 提交申诉请求体,申诉人取自认证头
type submitAppealBody struct {
	CampaignID       string               `json:"campaign_id" binding:"required"`
	TargetEmployeeID string               `json:"target_employee_id,omitempty"`
	AppealType       model.AppealType     `json:"appeal_type" binding:"required"`
	Reason           string               `json:"reason" binding:"required"`
	Priority         model.AppealPriority `json:"priority,omitempty"`
	Evidence         []string             `json:"evidence,omitempty"`
	Supporters       []string             `json:"supporters,omitempty"`
}

// reviewAppealBody 审核请求体
type reviewAppealBody struct {
	Outcome  model.AppealOutcome `json:"outcome" binding:"required"`
	Notes    string              `json:"notes,omitempty"`
	Decision model.AppealStatus  `json:"decision,omitempty"`
}

// Submit 提交申诉
// @Summary      提交申诉
// @Tags         申诉
// @Router       /appeals [post]
func (c *AppealController) Submit(ctx *gin.Context) {
	var body submitAppealBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	appeal, err := c.appealService.SubmitAppeal(ctx.Request.Context(), &service.SubmitAppealRequest{
		CampaignID:          body.CampaignID,
		AppellantEmployeeID: currentUser(ctx),
		TargetEmployeeID:    body.TargetEmployeeID,
		AppealType:          body.AppealType,
		Reason:              body.Reason,
		Priority:            body.Priority,
		Evidence:            body.Evidence,
		Supporters:          body.Supporters,
	})
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, appeal)
}

// Get 获取申诉详情
// @Router       /appeals/{id} [get]
func (c *AppealController) Get(ctx *gin.Context) {
	appeal, err := c.appealService.GetAppeal(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{
		"appeal":  appeal,
		"overdue": c.appealService.IsOverdue(appeal),
	})
}

// History 申诉状态历史
// @Router       /appeals/{id}/history [get]
func (c *AppealController) History(ctx *gin.Context) {
	history, err := c.appealService.History(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, history)
}

// ReviewContext 审核上下文,含活动完整性报告
// @Router       /appeals/{id}/review-context [get]
func (c *AppealController) ReviewContext(ctx *gin.Context) {
	reviewCtx, err := c.appealService.ReviewContext(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, reviewCtx)
}

// StartReview 开始审核
// @Router       /appeals/{id}/start-review [post]
func (c *AppealController) StartReview(ctx *gin.Context) {
	appeal, err := c.appealService.StartReview(ctx.Request.Context(), ctx.Param("id"), currentUser(ctx))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, appeal)
}

// Review 审核申诉
// @Router       /appeals/{id}/review [post]
func (c *AppealController) Review(ctx *gin.Context) {
	var body reviewAppealBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	appeal, err := c.appealService.ReviewAppeal(ctx.Request.Context(), ctx.Param("id"), &service.ReviewAppealRequest{
		ReviewerID: currentUser(ctx),
		Outcome:    body.Outcome,
		Notes:      body.Notes,
		Decision:   body.Decision,
	})
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, appeal)
}

// Withdraw 撤回申诉,仅申诉人可操作
// @Router       /appeals/{id}/withdraw [post]
func (c *AppealController) Withdraw(ctx *gin.Context) {
	appeal, err := c.appealService.WithdrawAppeal(ctx.Request.Context(), ctx.Param("id"), currentUser(ctx))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, appeal)
}

// Queue 待处理队列
// @Router       /appeals/queue [get]
func (c *AppealController) Queue(ctx *gin.Context) {
	appeals, err := c.appealService.PendingQueue(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, appeals)
}

// Overdue 超出处理时限的申诉
// @Router       /appeals/overdue [get]
func (c *AppealController) Overdue(ctx *gin.Context) {
	appeals, err := c.appealService.OverdueAppeals(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, appeals)
}

// Mine 当前员工的申诉记录
// @Router       /appeals/mine [get]
func (c *AppealController) Mine(ctx *gin.Context) {
	c.employeeHistory(ctx, currentUser(ctx))
}

// EmployeeHistory 指定员工的申诉记录
// @Router       /employees/{id}/appeals [get]
func (c *AppealController) EmployeeHistory(ctx *gin.Context) {
	c.employeeHistory(ctx, ctx.Param("id"))
}

func (c *AppealController) employeeHistory(ctx *gin.Context, employeeID string) {
	appeals, err := c.appealService.EmployeeHistory(ctx.Request.Context(), employeeID)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, appeals)
}

// Statistics 申诉统计
// from/to 为 RFC3339 或 2006-01-02,默认最近 30 天
// @Router       /appeals/statistics [get]
func (c *AppealController) Statistics(ctx *gin.Context) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	var err error
	if raw := ctx.Query("from"); raw != "" {
		if from, err = parseTimeParam(raw, false); err != nil {
			Error(ctx, http.StatusBadRequest, "invalid from", err.Error())
			return
		}
	}
	if raw := ctx.Query("to"); raw != "" {
		if to, err = parseTimeParam(raw, true); err != nil {
			Error(ctx, http.StatusBadRequest, "invalid to", err.Error())
			return
		}
	}

	stats, err := c.statsService.AppealStatistics(ctx.Request.Context(), from, to)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, stats)
}

// parseTimeParam 支持 RFC3339 与日期两种格式,endOfDay 时日期取当天最后一刻
func parseTimeParam(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
