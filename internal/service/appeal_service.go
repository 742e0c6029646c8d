package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/promotion-vote/internal/metrics"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AppealService 申诉服务接口
type AppealService interface {
	SubmitAppeal(ctx context.Context, req *SubmitAppealRequest) (*model.AppealModel, error)
	StartReview(ctx context.Context, appealID, reviewerID string) (*model.AppealModel, error)
	ReviewAppeal(ctx context.Context, appealID string, req *ReviewAppealRequest) (*model.AppealModel, error)
	WithdrawAppeal(ctx context.Context, appealID, requesterID string) (*model.AppealModel, error)
	IsOverdue(appeal *model.AppealModel) bool
	GetAppeal(ctx context.Context, appealID string) (*model.AppealModel, error)
	History(ctx context.Context, appealID string) ([]*model.StateHistoryModel, error)
	PendingQueue(ctx context.Context) ([]*model.AppealModel, error)
	EmployeeHistory(ctx context.Context, employeeID string) ([]*model.AppealModel, error)
	OverdueAppeals(ctx context.Context) ([]*model.AppealModel, error)
	ReviewContext(ctx context.Context, appealID string) (*AppealReviewContext, error)
}

// SubmitAppealRequest 提交申诉请求
type SubmitAppealRequest struct {
	CampaignID          string               `json:"campaign_id" binding:"required"`
	AppellantEmployeeID string               `json:"appellant_employee_id" binding:"required"`
	TargetEmployeeID    string               `json:"target_employee_id,omitempty"`
	AppealType          model.AppealType     `json:"appeal_type" binding:"required"`
	Reason              string               `json:"reason" binding:"required"`
	Priority            model.AppealPriority `json:"priority,omitempty"`
	Evidence            []string             `json:"evidence,omitempty"`
	Supporters          []string             `json:"supporters,omitempty"`
}

// ReviewAppealRequest 审核申诉请求
// Decision 为空时由 Outcome 推导
type ReviewAppealRequest struct {
	ReviewerID string              `json:"reviewer_id" binding:"required"`
	Outcome    model.AppealOutcome `json:"outcome" binding:"required"`
	Notes      string              `json:"notes,omitempty"`
	Decision   model.AppealStatus  `json:"decision,omitempty"`
}

// AppealReviewContext 审核人查看的申诉及活动完整性报告
type AppealReviewContext struct {
	Appeal    *model.AppealModel `json:"appeal"`
	Integrity *IntegrityReport   `json:"integrity"`
	Overdue   bool               `json:"overdue"`
}

// AppealConfig 申诉资格配置
type AppealConfig struct {
	WindowDays     int
	RateLimit      int
	RateWindowDays int
}

// DefaultAppealConfig 默认申诉配置: 结束后 7 天内可申诉,30 天内最多 2 次
func DefaultAppealConfig() AppealConfig {
	return AppealConfig{WindowDays: 7, RateLimit: 2, RateWindowDays: 30}
}

// appealService 申诉服务实现
type appealService struct {
	db          *gorm.DB
	appealRepo  repository.AppealRepository
	historyRepo repository.StateHistoryRepository
	audit       AuditLogService
	campaigns   CampaignRegistry
	integrity   IntegrityService
	publisher   EventPublisher
	clock       Clock
	cfg         AppealConfig
	logger      *logrus.Logger
}

// NewAppealService 创建申诉服务
func NewAppealService(
	db *gorm.DB,
	appealRepo repository.AppealRepository,
	historyRepo repository.StateHistoryRepository,
	audit AuditLogService,
	campaigns CampaignRegistry,
	integrity IntegrityService,
	publisher EventPublisher,
	clock Clock,
	cfg AppealConfig,
	logger *logrus.Logger,
) AppealService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &appealService{
		db:          db,
		appealRepo:  appealRepo,
		historyRepo: historyRepo,
		audit:       audit,
		campaigns:   campaigns,
		integrity:   integrity,
		publisher:   publisher,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
	}
}

// SubmitAppeal 提交申诉
// 资格按顺序检查,第一条失败的规则即为返回的错误
func (s *appealService) SubmitAppeal(ctx context.Context, req *SubmitAppealRequest) (*model.AppealModel, error) {
	if err := validateSubmitAppeal(req); err != nil {
		return nil, err
	}

	campaign, err := s.campaigns.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.checkEligibility(ctx, req, campaign, now); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = model.AppealPriorityMedium
	}
	evidence := req.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	supporters := req.Supporters
	if supporters == nil {
		supporters = []string{}
	}

	appeal := &model.AppealModel{
		ID:                  uuid.New().String(),
		CampaignID:          req.CampaignID,
		AppellantEmployeeID: req.AppellantEmployeeID,
		TargetEmployeeID:    req.TargetEmployeeID,
		AppealType:          req.AppealType,
		Reason:              req.Reason,
		Status:              model.AppealStatusPending,
		Priority:            priority,
		Evidence:            evidence,
		Supporters:          supporters,
		SubmittedAt:         now,
		AppealDeadline:      s.appealDeadline(campaign),
		ResolutionTimeLimit: now.Add(req.AppealType.ResolutionSLA()),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := appeal.Validate(); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.appealRepo.WithTx(tx).Create(ctx, appeal); err != nil {
			// 唯一索引兜底并发提交的同类型申诉
			if errors.Is(err, repository.ErrDuplicate) {
				return &EligibilityError{Rule: RuleDuplicateType, Reason: string(RuleDuplicateType)}
			}
			return fmt.Errorf("failed to save appeal: %w", err)
		}
		if err := s.recordTransition(ctx, tx, appeal.ID, "", model.AppealStatusPending, req.AppellantEmployeeID, req.Reason); err != nil {
			return err
		}
		return s.audit.WithTx(tx).RecordAction(ctx, req.AppellantEmployeeID, ActionSubmitAppeal, ResourceAppeal, appeal.ID, map[string]interface{}{
			"campaign_id": appeal.CampaignID,
			"appeal_type": appeal.AppealType,
			"priority":    appeal.Priority,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordAppealSubmitted(string(appeal.AppealType))
	s.logger.WithFields(logrus.Fields{
		"appeal_id":   appeal.ID,
		"campaign_id": appeal.CampaignID,
		"appeal_type": appeal.AppealType,
		"priority":    appeal.Priority,
	}).Info("appeal submitted")

	publish(ctx, s.publisher, s.logger, s.clock, model.EventAppealSubmitted, appeal.ID, map[string]interface{}{
		"appeal_id":             appeal.ID,
		"campaign_id":           appeal.CampaignID,
		"appellant_employee_id": appeal.AppellantEmployeeID,
		"appeal_type":           appeal.AppealType,
		"priority":              appeal.Priority,
		"resolution_time_limit": appeal.ResolutionTimeLimit,
	})

	return appeal, nil
}

// checkEligibility 资格检查: 活动已结束、未过申诉期、同类型未申诉、未超频率限制
func (s *appealService) checkEligibility(ctx context.Context, req *SubmitAppealRequest, campaign *Campaign, now time.Time) error {
	if campaign.Status != model.CampaignStatusClosed {
		return &EligibilityError{
			Rule:   RuleCampaignNotClosed,
			Reason: fmt.Sprintf("campaign is %s", campaign.Status),
			cause: &CampaignStateError{
				CampaignID: campaign.ID,
				Status:     campaign.Status,
				Message:    "appeals require a closed campaign",
			},
		}
	}

	deadline := s.appealDeadline(campaign)
	if now.After(deadline) {
		return &EligibilityError{
			Rule:   RuleDeadlinePassed,
			Reason: fmt.Sprintf("appeal deadline was %s", deadline.Format(time.RFC3339)),
		}
	}

	exists, err := s.appealRepo.ExistsForType(ctx, req.AppellantEmployeeID, req.CampaignID, req.AppealType)
	if err != nil {
		return fmt.Errorf("failed to check existing appeals: %w", err)
	}
	if exists {
		return &EligibilityError{Rule: RuleDuplicateType, Reason: string(RuleDuplicateType)}
	}

	since := now.AddDate(0, 0, -s.cfg.RateWindowDays)
	count, err := s.appealRepo.CountSubmittedSince(ctx, req.AppellantEmployeeID, since)
	if err != nil {
		return fmt.Errorf("failed to count recent appeals: %w", err)
	}
	if count >= int64(s.cfg.RateLimit) {
		return &EligibilityError{
			Rule:   RuleRateLimit,
			Reason: fmt.Sprintf("%d appeals in the last %d days", count, s.cfg.RateWindowDays),
		}
	}

	return nil
}

func (s *appealService) appealDeadline(campaign *Campaign) time.Time {
	return campaign.EndDate.AddDate(0, 0, s.cfg.WindowDays)
}

// StartReview 审核人接手申诉
func (s *appealService) StartReview(ctx context.Context, appealID, reviewerID string) (*model.AppealModel, error) {
	if reviewerID == "" {
		return nil, &ValidationError{Field: "reviewer_id", Message: "is required"}
	}

	return s.transition(ctx, appealID, reviewerID, model.AppealStatusUnderReview, ActionStartReview,
		func(appeal *model.AppealModel, now time.Time) (*repository.AppealUpdate, string, error) {
			return &repository.AppealUpdate{
				Status:     model.AppealStatusUnderReview,
				ReviewerID: reviewerID,
				UpdatedAt:  now,
			}, "review started", nil
		})
}

// ReviewAppeal 审核申诉
// 只有读取时的状态仍未改变才会写入,否则返回冲突
func (s *appealService) ReviewAppeal(ctx context.Context, appealID string, req *ReviewAppealRequest) (*model.AppealModel, error) {
	if req == nil {
		return nil, &ValidationError{Field: "request", Message: "is required"}
	}
	if req.ReviewerID == "" {
		return nil, &ValidationError{Field: "reviewer_id", Message: "is required"}
	}
	if !req.Outcome.Valid() {
		return nil, &ValidationError{Field: "outcome", Message: fmt.Sprintf("unknown outcome %q", req.Outcome)}
	}

	decision := decisionFor(req.Outcome)
	if req.Decision != "" {
		if req.Decision != model.AppealStatusApproved && req.Decision != model.AppealStatusRejected {
			return nil, &ValidationError{Field: "decision", Message: "must be approved or rejected"}
		}
		decision = req.Decision
	}

	return s.transition(ctx, appealID, req.ReviewerID, decision, ActionReviewAppeal,
		func(appeal *model.AppealModel, now time.Time) (*repository.AppealUpdate, string, error) {
			reviewedAt := now
			return &repository.AppealUpdate{
				Status:      decision,
				ReviewerID:  req.ReviewerID,
				ReviewedAt:  &reviewedAt,
				ReviewNotes: req.Notes,
				Outcome:     req.Outcome,
				UpdatedAt:   now,
			}, req.Notes, nil
		})
}

// WithdrawAppeal 申诉人撤回申诉
func (s *appealService) WithdrawAppeal(ctx context.Context, appealID, requesterID string) (*model.AppealModel, error) {
	if requesterID == "" {
		return nil, &ValidationError{Field: "requester_id", Message: "is required"}
	}

	return s.transition(ctx, appealID, requesterID, model.AppealStatusWithdrawn, ActionWithdrawAppeal,
		func(appeal *model.AppealModel, now time.Time) (*repository.AppealUpdate, string, error) {
			if appeal.AppellantEmployeeID != requesterID {
				return nil, "", &StateError{
					Resource: ResourceAppeal,
					ID:       appeal.ID,
					From:     string(appeal.Status),
					To:       string(model.AppealStatusWithdrawn),
					Message:  "only the appellant can withdraw an appeal",
				}
			}
			return &repository.AppealUpdate{
				Status:    model.AppealStatusWithdrawn,
				UpdatedAt: now,
			}, "withdrawn by appellant", nil
		})
}

// prepareFunc 根据读取到的申诉生成更新内容和历史备注
type prepareFunc func(appeal *model.AppealModel, now time.Time) (*repository.AppealUpdate, string, error)

// transition 在一个事务内完成状态检查、条件更新、状态历史和审计日志
func (s *appealService) transition(
	ctx context.Context,
	appealID string,
	operatorID string,
	to model.AppealStatus,
	action string,
	prepare prepareFunc,
) (*model.AppealModel, error) {
	if appealID == "" {
		return nil, &ValidationError{Field: "appeal_id", Message: "is required"}
	}

	var (
		updated *model.AppealModel
		from    model.AppealStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		appealRepo := s.appealRepo.WithTx(tx)

		appeal, err := appealRepo.FindByID(ctx, appealID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAppealNotFound
			}
			return fmt.Errorf("failed to get appeal: %w", err)
		}
		from = appeal.Status

		if !CanTransition(from, to) {
			return &StateError{
				Resource: ResourceAppeal,
				ID:       appealID,
				From:     string(from),
				To:       string(to),
				Message:  "transition not allowed",
			}
		}

		now := s.clock.Now()
		update, note, err := prepare(appeal, now)
		if err != nil {
			return err
		}

		ok, err := appealRepo.CompareAndSwap(ctx, appealID, from, update)
		if err != nil {
			return fmt.Errorf("failed to update appeal: %w", err)
		}
		if !ok {
			return &StateError{
				Resource: ResourceAppeal,
				ID:       appealID,
				From:     string(from),
				To:       string(to),
				Conflict: true,
				Message:  "appeal status changed since it was read",
			}
		}

		if err := s.recordTransition(ctx, tx, appealID, from, to, operatorID, note); err != nil {
			return err
		}
		if err := s.audit.WithTx(tx).RecordAction(ctx, operatorID, action, ResourceAppeal, appealID, map[string]interface{}{
			"from":    from,
			"to":      to,
			"outcome": update.Outcome,
			"notes":   update.ReviewNotes,
		}); err != nil {
			return fmt.Errorf("failed to record audit log: %w", err)
		}

		updated, err = appealRepo.FindByID(ctx, appealID)
		if err != nil {
			return fmt.Errorf("failed to reload appeal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"appeal_id": appealID,
		"from":      from,
		"to":        to,
		"operator":  operatorID,
	}).Info("appeal status changed")

	if IsTerminal(to) {
		metrics.RecordAppealResolved(string(to))
		publish(ctx, s.publisher, s.logger, s.clock, model.EventAppealResolved, appealID, map[string]interface{}{
			"appeal_id":   appealID,
			"campaign_id": updated.CampaignID,
			"status":      updated.Status,
			"outcome":     updated.Outcome,
		})
	}

	return updated, nil
}

func (s *appealService) recordTransition(ctx context.Context, tx *gorm.DB, appealID string, from, to model.AppealStatus, operator, reason string) error {
	history := &model.StateHistoryModel{
		ID:        uuid.New().String(),
		AppealID:  appealID,
		FromState: from,
		ToState:   to,
		Reason:    reason,
		Operator:  operator,
		CreatedAt: s.clock.Now(),
	}
	if err := s.historyRepo.WithTx(tx).Save(ctx, history); err != nil {
		return fmt.Errorf("failed to save state history: %w", err)
	}
	return nil
}

// IsOverdue 申诉是否超过处理时限仍未处理
func (s *appealService) IsOverdue(appeal *model.AppealModel) bool {
	return appeal.IsOverdue(s.clock.Now())
}

// GetAppeal 获取申诉
func (s *appealService) GetAppeal(ctx context.Context, appealID string) (*model.AppealModel, error) {
	appeal, err := s.appealRepo.FindByID(ctx, appealID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAppealNotFound
		}
		return nil, fmt.Errorf("failed to get appeal: %w", err)
	}
	return appeal, nil
}

// History 获取申诉状态变更历史
func (s *appealService) History(ctx context.Context, appealID string) ([]*model.StateHistoryModel, error) {
	if _, err := s.GetAppeal(ctx, appealID); err != nil {
		return nil, err
	}
	histories, err := s.historyRepo.FindByAppealID(ctx, appealID)
	if err != nil {
		return nil, fmt.Errorf("failed to get appeal history: %w", err)
	}
	return histories, nil
}

// PendingQueue 待处理申诉队列
func (s *appealService) PendingQueue(ctx context.Context) ([]*model.AppealModel, error) {
	appeals, err := s.appealRepo.FindOpenQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending appeals: %w", err)
	}
	return appeals, nil
}

// EmployeeHistory 员工提交过的全部申诉
func (s *appealService) EmployeeHistory(ctx context.Context, employeeID string) ([]*model.AppealModel, error) {
	if employeeID == "" {
		return nil, &ValidationError{Field: "employee_id", Message: "is required"}
	}
	appeals, err := s.appealRepo.FindByFilter(ctx, &repository.AppealFilter{AppellantID: &employeeID})
	if err != nil {
		return nil, fmt.Errorf("failed to get employee appeals: %w", err)
	}
	return appeals, nil
}

// OverdueAppeals 超过处理时限的申诉
func (s *appealService) OverdueAppeals(ctx context.Context) ([]*model.AppealModel, error) {
	appeals, err := s.appealRepo.FindOverdue(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to get overdue appeals: %w", err)
	}
	return appeals, nil
}

// ReviewContext 申诉及其活动当前的完整性报告
func (s *appealService) ReviewContext(ctx context.Context, appealID string) (*AppealReviewContext, error) {
	appeal, err := s.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	report, err := s.integrity.ValidateIntegrity(ctx, appeal.CampaignID)
	if err != nil {
		return nil, err
	}
	return &AppealReviewContext{
		Appeal:    appeal,
		Integrity: report,
		Overdue:   s.IsOverdue(appeal),
	}, nil
}

func validateSubmitAppeal(req *SubmitAppealRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "is required"}
	}
	if err := requireFields(map[string]string{
		"campaign_id":           req.CampaignID,
		"appellant_employee_id": req.AppellantEmployeeID,
	}); err != nil {
		return err
	}
	if !req.AppealType.Valid() {
		return &ValidationError{Field: "appeal_type", Message: fmt.Sprintf("unknown appeal type %q", req.AppealType)}
	}
	if req.Reason == "" {
		return &ValidationError{Field: "reason", Message: "is required"}
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return &ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", req.Priority)}
	}
	return nil
}
