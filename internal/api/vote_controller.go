package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/promotion-vote/internal/service"
	"github.com/shopspring/decimal"
)

// VoteController 投票控制器
type VoteController struct {
	voteService service.VoteService
}

// NewVoteController 创建投票控制器
func NewVoteController(voteService service.VoteService) *VoteController {
	return &VoteController{
		voteService: voteService,
	}
}

// castVoteBody 投票请求体,投票人取自认证头
type castVoteBody struct {
	CandidateID string           `json:"candidate_id" binding:"required"`
	Ranking     *int             `json:"ranking,omitempty"`
	Weight      *decimal.Decimal `json:"weight,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	SessionID   string           `json:"session_id,omitempty"`
}

// castVoteResponse 投票响应,仅返回回执令牌,不回显身份信息
type castVoteResponse struct {
	VoteID            string `json:"vote_id"`
	ReceiptToken      string `json:"receipt_token"`
	CandidateID       string `json:"candidate_id"`
	ModificationCount int    `json:"modification_count"`
	CanStillModify    bool   `json:"can_still_modify"`
}

// amendVoteBody 改票请求体
type amendVoteBody struct {
	CandidateID string `json:"candidate_id" binding:"required"`
	Reason      string `json:"reason,omitempty"`
}

// Cast 投票
// @Summary      匿名投票
// @Tags         投票
// @Param        id path string true "活动 ID"
// @Router       /campaigns/{id}/votes [post]
func (c *VoteController) Cast(ctx *gin.Context) {
	var body castVoteBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	vote, err := c.voteService.CastVote(ctx.Request.Context(), &service.CastVoteRequest{
		CampaignID:  ctx.Param("id"),
		EmployeeID:  currentUser(ctx),
		CandidateID: body.CandidateID,
		Ranking:     body.Ranking,
		Weight:      body.Weight,
		Reason:      body.Reason,
		IPAddress:   ctx.ClientIP(),
		UserAgent:   ctx.Request.UserAgent(),
		SessionID:   body.SessionID,
	})
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, &castVoteResponse{
		VoteID:            vote.ID,
		ReceiptToken:      vote.VoterToken,
		CandidateID:       vote.CandidateID,
		ModificationCount: vote.ModificationCount,
		CanStillModify:    vote.CanStillModify,
	})
}

// Amend 改票
// @Summary      修改当前选择
// @Tags         投票
// @Param        id path string true "活动 ID"
// @Router       /campaigns/{id}/votes/me [put]
func (c *VoteController) Amend(ctx *gin.Context) {
	var body amendVoteBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	vote, err := c.voteService.AmendVote(ctx.Request.Context(), &service.AmendVoteRequest{
		CampaignID:  ctx.Param("id"),
		EmployeeID:  currentUser(ctx),
		CandidateID: body.CandidateID,
		Reason:      body.Reason,
	})
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, &castVoteResponse{
		VoteID:            vote.ID,
		ReceiptToken:      vote.VoterToken,
		CandidateID:       vote.CandidateID,
		ModificationCount: vote.ModificationCount,
		CanStillModify:    vote.CanStillModify,
	})
}

// HasVoted 当前员工是否已投票
// @Router       /campaigns/{id}/votes/me [get]
func (c *VoteController) HasVoted(ctx *gin.Context) {
	voted, err := c.voteService.HasVoted(ctx.Request.Context(), ctx.Param("id"), currentUser(ctx))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{"has_voted": voted})
}

// Receipt 通过回执令牌核验选票
// @Router       /receipts/{token} [get]
func (c *VoteController) Receipt(ctx *gin.Context) {
	receipt, err := c.voteService.Receipt(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, receipt)
}
