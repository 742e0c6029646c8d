package repository

import (
	"context"
	"time"

	"github.com/mautops/promotion-vote/internal/model"
	"gorm.io/gorm"
)

// EventRepository 领域事件仓储接口
type EventRepository interface {
	Save(ctx context.Context, event *model.EventModel) error
	UpdateStatus(ctx context.Context, id string, status string, retryCount int) error
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*model.EventModel, error)
	FindPending(ctx context.Context) ([]*model.EventModel, error)
}

// eventRepository 事件仓储实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Save 保存事件
func (r *eventRepository) Save(ctx context.Context, event *model.EventModel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(event).Error
}

// UpdateStatus 更新投递状态
func (r *eventRepository) UpdateStatus(ctx context.Context, id string, status string, retryCount int) error {
	return r.db.WithContext(ctx).Model(&model.EventModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"retry_count": retryCount,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// FindByAggregateID 根据聚合 ID 查找事件
func (r *eventRepository) FindByAggregateID(ctx context.Context, aggregateID string) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.WithContext(ctx).Where("aggregate_id = ?", aggregateID).Order("created_at ASC").Find(&events).Error
	return events, err
}

// FindPending 查找待投递的事件
func (r *eventRepository) FindPending(ctx context.Context) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.WithContext(ctx).Where("status = ?", "pending").Order("created_at ASC").Find(&events).Error
	return events, err
}
