package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mautops/promotion-vote/internal/anonymizer"
	"github.com/mautops/promotion-vote/internal/metrics"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const maxReasonLength = 1000

var (
	maxWeight     = decimal.NewFromInt(100)
	defaultWeight = decimal.NewFromInt(1)
)

// VoteService 投票服务接口
type VoteService interface {
	HasVoted(ctx context.Context, campaignID, employeeID string) (bool, error)
	CastVote(ctx context.Context, req *CastVoteRequest) (*model.VoteModel, error)
	AmendVote(ctx context.Context, req *AmendVoteRequest) (*model.VoteModel, error)
	Receipt(ctx context.Context, token string) (*VoteReceipt, error)
}

// CastVoteRequest 投票请求
type CastVoteRequest struct {
	CampaignID  string           `json:"campaign_id" binding:"required"`
	EmployeeID  string           `json:"employee_id" binding:"required"`
	CandidateID string           `json:"candidate_id" binding:"required"`
	Ranking     *int             `json:"ranking,omitempty"`
	Weight      *decimal.Decimal `json:"weight,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	IPAddress   string           `json:"-"`
	UserAgent   string           `json:"-"`
	SessionID   string           `json:"session_id,omitempty"`
}

// AmendVoteRequest 改票请求
type AmendVoteRequest struct {
	CampaignID  string `json:"campaign_id" binding:"required"`
	EmployeeID  string `json:"employee_id" binding:"required"`
	CandidateID string `json:"candidate_id" binding:"required"`
	Reason      string `json:"reason,omitempty"`
}

// VoteReceipt 投票回执,不含任何身份信息
type VoteReceipt struct {
	CampaignID        string    `json:"campaign_id"`
	CandidateID       string    `json:"candidate_id"`
	VotedAt           time.Time `json:"voted_at"`
	IsValid           bool      `json:"is_valid"`
	ModificationCount int       `json:"modification_count"`
}

// VoteConfig 投票配置
type VoteConfig struct {
	TokenSalt     string
	MaxAmendments int
}

// voteService 投票服务实现
type voteService struct {
	voteRepo   repository.VoteRepository
	campaigns  CampaignRegistry
	candidates CandidateRegistry
	publisher  EventPublisher
	clock      Clock
	cfg        VoteConfig
	logger     *logrus.Logger
}

// NewVoteService 创建投票服务
func NewVoteService(
	voteRepo repository.VoteRepository,
	campaigns CampaignRegistry,
	candidates CandidateRegistry,
	publisher EventPublisher,
	clock Clock,
	cfg VoteConfig,
	logger *logrus.Logger,
) VoteService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &voteService{
		voteRepo:   voteRepo,
		campaigns:  campaigns,
		candidates: candidates,
		publisher:  publisher,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// HasVoted 员工是否已在活动中投过票,作废的选票也计入
func (s *voteService) HasVoted(ctx context.Context, campaignID, employeeID string) (bool, error) {
	if campaignID == "" {
		return false, &ValidationError{Field: "campaign_id", Message: "is required"}
	}
	if employeeID == "" {
		return false, &ValidationError{Field: "employee_id", Message: "is required"}
	}

	exists, err := s.voteRepo.ExistsAny(ctx, campaignID, anonymizer.Fingerprint(employeeID, campaignID))
	if err != nil {
		return false, fmt.Errorf("failed to check vote: %w", err)
	}
	return exists, nil
}

// CastVote 投票
func (s *voteService) CastVote(ctx context.Context, req *CastVoteRequest) (*model.VoteModel, error) {
	weight, err := validateCastVote(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.activeCampaign(ctx, req.CampaignID, false); err != nil {
		return nil, err
	}
	if err := s.checkCandidate(ctx, req.CampaignID, req.CandidateID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	fingerprint := anonymizer.Fingerprint(req.EmployeeID, req.CampaignID)

	// 每个 (员工, 活动) 只能投一次,被作废的选票同样占用投票资格
	exists, err := s.voteRepo.ExistsAny(ctx, req.CampaignID, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to check vote: %w", err)
	}
	if exists {
		metrics.RecordDuplicateVote()
		return nil, &DuplicateVoteError{CampaignID: req.CampaignID}
	}

	vote := &model.VoteModel{
		ID:                uuid.New().String(),
		CampaignID:        req.CampaignID,
		CandidateID:       req.CandidateID,
		VoterToken:        anonymizer.Token(req.EmployeeID, req.CampaignID, s.cfg.TokenSalt, now),
		VoterFingerprint:  fingerprint,
		Ranking:           req.Ranking,
		Weight:            weight,
		Reason:            req.Reason,
		IPHash:            anonymizer.HashAttribute(req.IPAddress),
		UAHash:            anonymizer.HashAttribute(req.UserAgent),
		SessionID:         req.SessionID,
		VotedAt:           now,
		IsValid:           true,
		OriginalDecision:  req.CandidateID,
		CurrentDecision:   req.CandidateID,
		ModificationCount: 0,
		CanStillModify:    s.cfg.MaxAmendments > 0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := vote.Validate(); err != nil {
		return nil, err
	}

	// 并发投票时预检查可能同时通过,唯一索引决定胜者
	if err := s.voteRepo.Create(ctx, vote); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			metrics.RecordDuplicateVote()
			return nil, &DuplicateVoteError{CampaignID: req.CampaignID}
		}
		return nil, fmt.Errorf("failed to save vote: %w", err)
	}

	metrics.RecordVoteCast()
	s.logger.WithFields(logrus.Fields{
		"campaign_id":  vote.CampaignID,
		"candidate_id": vote.CandidateID,
		"vote_id":      vote.ID,
	}).Info("vote cast")

	publish(ctx, s.publisher, s.logger, s.clock, model.EventVoteCast, vote.CampaignID, map[string]interface{}{
		"campaign_id":  vote.CampaignID,
		"candidate_id": vote.CandidateID,
		"voter_token":  vote.VoterToken,
	})

	return vote, nil
}

// AmendVote 修改当前决定
// 仅在活动进行中且未过截止时间时允许,次数受 MaxAmendments 限制
func (s *voteService) AmendVote(ctx context.Context, req *AmendVoteRequest) (*model.VoteModel, error) {
	if req == nil {
		return nil, &ValidationError{Field: "request", Message: "is required"}
	}
	if err := requireFields(map[string]string{
		"campaign_id":  req.CampaignID,
		"employee_id":  req.EmployeeID,
		"candidate_id": req.CandidateID,
	}); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(req.Reason) > maxReasonLength {
		return nil, &ValidationError{Field: "reason", Message: fmt.Sprintf("must be at most %d characters", maxReasonLength)}
	}

	if _, err := s.activeCampaign(ctx, req.CampaignID, true); err != nil {
		return nil, err
	}
	if err := s.checkCandidate(ctx, req.CampaignID, req.CandidateID); err != nil {
		return nil, err
	}

	vote, err := s.voteRepo.FindValidByFingerprint(ctx, req.CampaignID, anonymizer.Fingerprint(req.EmployeeID, req.CampaignID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}

	if !vote.CanStillModify || vote.ModificationCount >= s.cfg.MaxAmendments {
		return nil, &StateError{
			Resource: ResourceVote,
			ID:       vote.ID,
			Message:  fmt.Sprintf("amendment limit of %d reached", s.cfg.MaxAmendments),
		}
	}
	if vote.CurrentDecision == req.CandidateID {
		return nil, &ValidationError{Field: "candidate_id", Message: "is already the current decision"}
	}

	now := s.clock.Now()
	ok, err := s.voteRepo.UpdateDecision(ctx, &repository.DecisionChange{
		VoteID:         vote.ID,
		ExpectedCount:  vote.ModificationCount,
		CandidateID:    req.CandidateID,
		Reason:         req.Reason,
		CanStillModify: vote.ModificationCount+1 < s.cfg.MaxAmendments,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to amend vote: %w", err)
	}
	if !ok {
		return nil, &StateError{
			Resource: ResourceVote,
			ID:       vote.ID,
			Conflict: true,
			Message:  "vote was amended or invalidated by another request",
		}
	}

	metrics.RecordVoteAmended()
	s.logger.WithFields(logrus.Fields{
		"campaign_id":        vote.CampaignID,
		"vote_id":            vote.ID,
		"modification_count": vote.ModificationCount + 1,
	}).Info("vote amended")

	updated, err := s.voteRepo.FindByID(ctx, vote.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload vote: %w", err)
	}
	return updated, nil
}

// Receipt 根据回执令牌查询选票
func (s *voteService) Receipt(ctx context.Context, token string) (*VoteReceipt, error) {
	if token == "" {
		return nil, &ValidationError{Field: "token", Message: "is required"}
	}

	vote, err := s.voteRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}

	return &VoteReceipt{
		CampaignID:        vote.CampaignID,
		CandidateID:       vote.CandidateID,
		VotedAt:           vote.VotedAt,
		IsValid:           vote.IsValid,
		ModificationCount: vote.ModificationCount,
	}, nil
}

// activeCampaign 获取进行中的活动,withinWindow 为 true 时还要求未过截止时间
func (s *voteService) activeCampaign(ctx context.Context, campaignID string, withinWindow bool) (*Campaign, error) {
	campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusActive {
		return nil, &CampaignStateError{
			CampaignID: campaignID,
			Status:     campaign.Status,
			Message:    "voting requires an active campaign",
		}
	}
	if withinWindow && s.clock.Now().After(campaign.EndDate) {
		return nil, &CampaignStateError{
			CampaignID: campaignID,
			Status:     campaign.Status,
			Message:    "voting period has ended",
		}
	}
	return campaign, nil
}

func (s *voteService) checkCandidate(ctx context.Context, campaignID, candidateID string) error {
	exists, err := s.candidates.CandidateExists(ctx, campaignID, candidateID)
	if err != nil {
		return err
	}
	if !exists {
		return &ValidationError{Field: "candidate_id", Message: fmt.Sprintf("candidate %s is not in campaign %s", candidateID, campaignID)}
	}
	return nil
}

// validateCastVote 校验投票请求,返回生效的权重
func validateCastVote(req *CastVoteRequest) (decimal.Decimal, error) {
	if req == nil {
		return decimal.Zero, &ValidationError{Field: "request", Message: "is required"}
	}
	if err := requireFields(map[string]string{
		"campaign_id":  req.CampaignID,
		"employee_id":  req.EmployeeID,
		"candidate_id": req.CandidateID,
	}); err != nil {
		return decimal.Zero, err
	}

	weight := defaultWeight
	if req.Weight != nil {
		weight = *req.Weight
		if !weight.IsPositive() || weight.GreaterThan(maxWeight) {
			return decimal.Zero, &ValidationError{Field: "weight", Message: "must be greater than 0 and at most 100"}
		}
		weight = weight.Round(2)
	}
	if req.Ranking != nil && *req.Ranking < 1 {
		return decimal.Zero, &ValidationError{Field: "ranking", Message: "must be at least 1"}
	}
	if utf8.RuneCountInString(req.Reason) > maxReasonLength {
		return decimal.Zero, &ValidationError{Field: "reason", Message: fmt.Sprintf("must be at most %d characters", maxReasonLength)}
	}
	return weight, nil
}

// requireFields 按固定顺序检查必填字段,保证错误信息稳定
func requireFields(fields map[string]string) error {
	for _, name := range []string{"campaign_id", "employee_id", "candidate_id", "appellant_employee_id", "reviewer_id", "operator_id"} {
		if value, ok := fields[name]; ok && value == "" {
			return &ValidationError{Field: name, Message: "is required"}
		}
	}
	return nil
}
