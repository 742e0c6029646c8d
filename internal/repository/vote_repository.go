package repository

import (
	"context"
	"time"

	"github.com/mautops/promotion-vote/internal/model"
	"gorm.io/gorm"
)

// VoteRepository 投票仓储接口
type VoteRepository interface {
	WithTx(tx *gorm.DB) VoteRepository
	Create(ctx context.Context, vote *model.VoteModel) error
	FindByID(ctx context.Context, id string) (*model.VoteModel, error)
	FindByToken(ctx context.Context, token string) (*model.VoteModel, error)
	FindValidByFingerprint(ctx context.Context, campaignID, fingerprint string) (*model.VoteModel, error)
	ExistsAny(ctx context.Context, campaignID, fingerprint string) (bool, error)
	FindValidByCampaign(ctx context.Context, campaignID string) ([]*model.VoteModel, error)
	UpdateDecision(ctx context.Context, change *DecisionChange) (bool, error)
	Invalidate(ctx context.Context, id string, reason string, at time.Time) (bool, error)
}

// DecisionChange 选票修改,仅当修改次数仍为 ExpectedCount 时生效
type DecisionChange struct {
	VoteID         string
	ExpectedCount  int
	CandidateID    string
	Reason         string
	CanStillModify bool
	UpdatedAt      time.Time
}

// voteRepository 投票仓储实现
type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository 创建投票仓储
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// WithTx 绑定事务
func (r *voteRepository) WithTx(tx *gorm.DB) VoteRepository {
	return &voteRepository{db: tx}
}

// Create 写入选票,唯一约束冲突翻译为 ErrDuplicate
func (r *voteRepository) Create(ctx context.Context, vote *model.VoteModel) error {
	return translate(r.db.WithContext(ctx).Create(vote).Error)
}

// FindByID 根据 ID 查找选票
func (r *voteRepository) FindByID(ctx context.Context, id string) (*model.VoteModel, error) {
	var vote model.VoteModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&vote).Error; err != nil {
		return nil, translate(err)
	}
	return &vote, nil
}

// FindByToken 根据回执令牌查找选票
func (r *voteRepository) FindByToken(ctx context.Context, token string) (*model.VoteModel, error) {
	var vote model.VoteModel
	if err := r.db.WithContext(ctx).Where("voter_token = ?", token).First(&vote).Error; err != nil {
		return nil, translate(err)
	}
	return &vote, nil
}

// FindValidByFingerprint 查找指纹对应的有效选票
func (r *voteRepository) FindValidByFingerprint(ctx context.Context, campaignID, fingerprint string) (*model.VoteModel, error) {
	var vote model.VoteModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND voter_fingerprint = ? AND is_valid = ?", campaignID, fingerprint, true).
		First(&vote).Error
	if err != nil {
		return nil, translate(err)
	}
	return &vote, nil
}

// ExistsAny 指纹在活动中是否有过选票,已作废的也算
func (r *voteRepository) ExistsAny(ctx context.Context, campaignID, fingerprint string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.VoteModel{}).
		Where("campaign_id = ? AND voter_fingerprint = ?", campaignID, fingerprint).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

// FindValidByCampaign 查找活动的全部有效选票,按投票时间升序
func (r *voteRepository) FindValidByCampaign(ctx context.Context, campaignID string) ([]*model.VoteModel, error) {
	var votes []*model.VoteModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND is_valid = ?", campaignID, true).
		Order("voted_at ASC, id ASC").
		Find(&votes).Error
	return votes, err
}

// UpdateDecision 条件更新选票决定
func (r *voteRepository) UpdateDecision(ctx context.Context, change *DecisionChange) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.VoteModel{}).
		Where("id = ? AND is_valid = ? AND modification_count = ?", change.VoteID, true, change.ExpectedCount).
		Updates(map[string]interface{}{
			"candidate_id":       change.CandidateID,
			"current_decision":   change.CandidateID,
			"reason":             change.Reason,
			"modification_count": change.ExpectedCount + 1,
			"can_still_modify":   change.CanStillModify,
			"updated_at":         change.UpdatedAt,
		})
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Invalidate 作废选票,只对仍有效的选票生效
func (r *voteRepository) Invalidate(ctx context.Context, id string, reason string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.VoteModel{}).
		Where("id = ? AND is_valid = ?", id, true).
		Updates(map[string]interface{}{
			"is_valid":            false,
			"can_still_modify":    false,
			"invalidated_at":      at,
			"invalidation_reason": reason,
			"updated_at":          at,
		})
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}
