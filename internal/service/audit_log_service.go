package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/repository"
	"gorm.io/gorm"
)

// 审计动作
const (
	ActionSubmitAppeal   = "submit"
	ActionStartReview    = "start_review"
	ActionReviewAppeal   = "review"
	ActionWithdrawAppeal = "withdraw"
	ActionInvalidateVote = "invalidate"
)

// 审计资源类型
const (
	ResourceAppeal = "appeal"
	ResourceVote   = "vote"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	WithTx(tx *gorm.DB) AuditLogService
	RecordAction(ctx context.Context, userID string, action string, resourceType string, resourceID string, details interface{}) error
	FindByResource(ctx context.Context, resourceType string, resourceID string) ([]*model.AuditLogModel, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
	clock     Clock
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository, clock Clock) AuditLogService {
	if clock == nil {
		clock = SystemClock()
	}
	return &auditLogService{
		auditRepo: auditRepo,
		clock:     clock,
	}
}

// WithTx 绑定事务,审计记录与业务写入一起提交
func (s *auditLogService) WithTx(tx *gorm.DB) AuditLogService {
	return &auditLogService{
		auditRepo: s.auditRepo.WithTx(tx),
		clock:     s.clock,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	userID string,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    RequestIDFromContext(ctx),
		Details:      detailsJSON,
		CreatedAt:    s.clock.Now(),
	}

	return s.auditRepo.Save(ctx, auditLog)
}

// FindByResource 查询资源的审计记录
func (s *auditLogService) FindByResource(ctx context.Context, resourceType string, resourceID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByResource(ctx, resourceType, resourceID)
}
