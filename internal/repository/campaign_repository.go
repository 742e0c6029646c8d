package repository

import (
	"context"

	"github.com/mautops/promotion-vote/internal/model"
	"gorm.io/gorm"
)

// CampaignRepository 活动与候选人只读仓储
// 活动数据归属外部活动管理模块,这里不提供任何写方法
type CampaignRepository interface {
	FindByID(ctx context.Context, id string) (*model.CampaignModel, error)
	CandidateExists(ctx context.Context, campaignID, candidateID string) (bool, error)
}

// campaignRepository 活动仓储实现
type campaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository 创建活动仓储
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

// FindByID 根据 ID 查找活动
func (r *campaignRepository) FindByID(ctx context.Context, id string) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error; err != nil {
		return nil, translate(err)
	}
	return &campaign, nil
}

// CandidateExists 候选人是否属于该活动
func (r *campaignRepository) CandidateExists(ctx context.Context, campaignID, candidateID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CandidateModel{}).
		Where("campaign_id = ? AND id = ?", campaignID, candidateID).
		Count(&count).Error
	return count > 0, err
}
