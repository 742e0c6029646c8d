package repository

import (
	"context"

	"github.com/mautops/promotion-vote/internal/model"
	"gorm.io/gorm"
)

// StateHistoryRepository 申诉状态历史仓储接口
type StateHistoryRepository interface {
	WithTx(tx *gorm.DB) StateHistoryRepository
	Save(ctx context.Context, history *model.StateHistoryModel) error
	FindByAppealID(ctx context.Context, appealID string) ([]*model.StateHistoryModel, error)
}

// stateHistoryRepository 状态历史仓储实现
type stateHistoryRepository struct {
	db *gorm.DB
}

// NewStateHistoryRepository 创建状态历史仓储
func NewStateHistoryRepository(db *gorm.DB) StateHistoryRepository {
	return &stateHistoryRepository{db: db}
}

// WithTx 绑定事务
func (r *stateHistoryRepository) WithTx(tx *gorm.DB) StateHistoryRepository {
	return &stateHistoryRepository{db: tx}
}

// Save 保存状态历史
func (r *stateHistoryRepository) Save(ctx context.Context, history *model.StateHistoryModel) error {
	if err := history.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(history).Error
}

// FindByAppealID 根据申诉 ID 查找状态历史
func (r *stateHistoryRepository) FindByAppealID(ctx context.Context, appealID string) ([]*model.StateHistoryModel, error) {
	var histories []*model.StateHistoryModel
	err := r.db.WithContext(ctx).Where("appeal_id = ?", appealID).Order("created_at ASC, id ASC").Find(&histories).Error
	return histories, err
}
