package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mautops/promotion-vote/internal/metrics"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// IntegrityService 投票完整性审计服务
type IntegrityService interface {
	ValidateIntegrity(ctx context.Context, campaignID string) (*IntegrityReport, error)
	AuditIntegrity(ctx context.Context, campaignID, operatorID string) (*IntegrityReport, error)
	InvalidateVote(ctx context.Context, voteID, operatorID, reason string) (*model.VoteModel, error)
	RemediateDuplicates(ctx context.Context, campaignID, operatorID string) (int, error)
}

// IntegrityReport 完整性检查结果,仅作参考,不阻止投票
type IntegrityReport struct {
	CampaignID            string    `json:"campaign_id"`
	DuplicateFingerprints int64     `json:"duplicate_fingerprints"`
	TemporalAnomalies     int64     `json:"temporal_anomalies"`
	IsClean               bool      `json:"is_clean"`
	CheckedAt             time.Time `json:"checked_at"`
}

// integrityService 完整性审计服务实现
type integrityService struct {
	db        *gorm.DB
	voteRepo  repository.VoteRepository
	campaigns CampaignRegistry
	audit     AuditLogService
	publisher EventPublisher
	clock     Clock
	logger    *logrus.Logger
}

// NewIntegrityService 创建完整性审计服务
func NewIntegrityService(
	db *gorm.DB,
	voteRepo repository.VoteRepository,
	campaigns CampaignRegistry,
	audit AuditLogService,
	publisher EventPublisher,
	clock Clock,
	logger *logrus.Logger,
) IntegrityService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &integrityService{
		db:        db,
		voteRepo:  voteRepo,
		campaigns: campaigns,
		audit:     audit,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// ValidateIntegrity 检查重复指纹与投票时间异常,不产生副作用
func (s *integrityService) ValidateIntegrity(ctx context.Context, campaignID string) (*IntegrityReport, error) {
	if campaignID == "" {
		return nil, &ValidationError{Field: "campaign_id", Message: "is required"}
	}
	campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	duplicated := s.validVotes(ctx, campaignID).
		Select("voter_fingerprint").
		Group("voter_fingerprint").
		Having("COUNT(*) > 1")

	var duplicates int64
	if err := s.db.WithContext(ctx).Table("(?) AS dup", duplicated).Count(&duplicates).Error; err != nil {
		return nil, fmt.Errorf("failed to count duplicate fingerprints: %w", err)
	}

	var anomalies int64
	err = s.validVotes(ctx, campaignID).
		Where("(voted_at < ? OR voted_at > ?)", campaign.StartDate, campaign.EndDate).
		Count(&anomalies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count temporal anomalies: %w", err)
	}

	return &IntegrityReport{
		CampaignID:            campaignID,
		DuplicateFingerprints: duplicates,
		TemporalAnomalies:     anomalies,
		IsClean:               duplicates == 0 && anomalies == 0,
		CheckedAt:             s.clock.Now(),
	}, nil
}

// AuditIntegrity 执行一次审计: 检查完整性,有异常时记录指标并发出 IntegrityFlagged
func (s *integrityService) AuditIntegrity(ctx context.Context, campaignID, operatorID string) (*IntegrityReport, error) {
	if operatorID == "" {
		return nil, &ValidationError{Field: "operator_id", Message: "is required"}
	}

	report, err := s.ValidateIntegrity(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if report.IsClean {
		return report, nil
	}

	metrics.RecordIntegrityFlags("duplicate", int(report.DuplicateFingerprints))
	metrics.RecordIntegrityFlags("temporal", int(report.TemporalAnomalies))
	s.logger.WithFields(logrus.Fields{
		"campaign_id":            campaignID,
		"duplicate_fingerprints": report.DuplicateFingerprints,
		"temporal_anomalies":     report.TemporalAnomalies,
		"operator":               operatorID,
	}).Warn("vote integrity check failed")

	publish(ctx, s.publisher, s.logger, s.clock, model.EventIntegrityFlagged, campaignID, map[string]interface{}{
		"campaign_id":            campaignID,
		"duplicate_fingerprints": report.DuplicateFingerprints,
		"temporal_anomalies":     report.TemporalAnomalies,
	})

	return report, nil
}

// InvalidateVote 作废一张有效选票并记录审计日志
func (s *integrityService) InvalidateVote(ctx context.Context, voteID, operatorID, reason string) (*model.VoteModel, error) {
	if voteID == "" {
		return nil, &ValidationError{Field: "vote_id", Message: "is required"}
	}
	if operatorID == "" {
		return nil, &ValidationError{Field: "operator_id", Message: "is required"}
	}
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "is required"}
	}

	var invalidated *model.VoteModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vote, err := s.invalidate(ctx, tx, voteID, operatorID, reason)
		if err != nil {
			return err
		}
		invalidated = vote
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"campaign_id": invalidated.CampaignID,
		"vote_id":     invalidated.ID,
		"operator":    operatorID,
	}).Info("vote invalidated")

	return invalidated, nil
}

// RemediateDuplicates 每个重复指纹保留最早的一张有效票,其余作废,返回作废数量
func (s *integrityService) RemediateDuplicates(ctx context.Context, campaignID, operatorID string) (int, error) {
	if campaignID == "" {
		return 0, &ValidationError{Field: "campaign_id", Message: "is required"}
	}
	if operatorID == "" {
		return 0, &ValidationError{Field: "operator_id", Message: "is required"}
	}
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return 0, err
	}

	invalidated := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		votes, err := s.voteRepo.WithTx(tx).FindValidByCampaign(ctx, campaignID)
		if err != nil {
			return fmt.Errorf("failed to get votes: %w", err)
		}

		// 选票已按投票时间升序,每个指纹第一次出现的即为保留票
		kept := make(map[string]bool, len(votes))
		for _, vote := range votes {
			if !kept[vote.VoterFingerprint] {
				kept[vote.VoterFingerprint] = true
				continue
			}
			if _, err := s.invalidate(ctx, tx, vote.ID, operatorID, "duplicate fingerprint"); err != nil {
				return err
			}
			invalidated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if invalidated > 0 {
		s.logger.WithFields(logrus.Fields{
			"campaign_id": campaignID,
			"invalidated": invalidated,
			"operator":    operatorID,
		}).Warn("duplicate votes remediated")
	}

	return invalidated, nil
}

func (s *integrityService) invalidate(ctx context.Context, tx *gorm.DB, voteID, operatorID, reason string) (*model.VoteModel, error) {
	voteRepo := s.voteRepo.WithTx(tx)

	vote, err := voteRepo.FindByID(ctx, voteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	if !vote.IsValid {
		return nil, &StateError{Resource: ResourceVote, ID: voteID, Message: "vote is already invalid"}
	}

	now := s.clock.Now()
	ok, err := voteRepo.Invalidate(ctx, voteID, reason, now)
	if err != nil {
		return nil, fmt.Errorf("failed to invalidate vote: %w", err)
	}
	if !ok {
		return nil, &StateError{Resource: ResourceVote, ID: voteID, Conflict: true, Message: "vote was invalidated by another request"}
	}

	// 审计记录只包含选票与活动,不涉及投票人
	if err := s.audit.WithTx(tx).RecordAction(ctx, operatorID, ActionInvalidateVote, ResourceVote, voteID, map[string]interface{}{
		"campaign_id": vote.CampaignID,
		"reason":      reason,
	}); err != nil {
		return nil, fmt.Errorf("failed to record audit log: %w", err)
	}

	vote.IsValid = false
	vote.CanStillModify = false
	vote.InvalidatedAt = &now
	vote.InvalidationReason = reason
	vote.UpdatedAt = now
	return vote, nil
}

func (s *integrityService) validVotes(ctx context.Context, campaignID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.VoteModel{}).
		Where("campaign_id = ? AND is_valid = ?", campaignID, true)
}
