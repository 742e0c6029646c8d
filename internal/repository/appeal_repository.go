package repository

import (
	"context"
	"time"

	"github.com/mautops/promotion-vote/internal/model"
	"gorm.io/gorm"
)

// AppealRepository 申诉仓储接口
type AppealRepository interface {
	WithTx(tx *gorm.DB) AppealRepository
	Create(ctx context.Context, appeal *model.AppealModel) error
	FindByID(ctx context.Context, id string) (*model.AppealModel, error)
	ExistsForType(ctx context.Context, appellantID, campaignID string, appealType model.AppealType) (bool, error)
	CountSubmittedSince(ctx context.Context, appellantID string, since time.Time) (int64, error)
	CompareAndSwap(ctx context.Context, id string, expected model.AppealStatus, updates *AppealUpdate) (bool, error)
	FindByFilter(ctx context.Context, filter *AppealFilter) ([]*model.AppealModel, error)
	FindOpenQueue(ctx context.Context) ([]*model.AppealModel, error)
	FindOverdue(ctx context.Context, now time.Time) ([]*model.AppealModel, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[model.AppealStatus]int64, error)
}

// AppealUpdate 状态转换时写入的字段
type AppealUpdate struct {
	Status      model.AppealStatus
	ReviewerID  string
	ReviewedAt  *time.Time
	ReviewNotes string
	Outcome     model.AppealOutcome
	UpdatedAt   time.Time
}

// AppealFilter 申诉查询过滤器
type AppealFilter struct {
	AppellantID *string
	CampaignID  *string
	Status      *model.AppealStatus
	StartTime   *time.Time
	EndTime     *time.Time
}

// priorityOrder 优先级排序表达式: urgent > high > medium > low
const priorityOrder = "CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END"

// appealRepository 申诉仓储实现
type appealRepository struct {
	db *gorm.DB
}

// NewAppealRepository 创建申诉仓储
func NewAppealRepository(db *gorm.DB) AppealRepository {
	return &appealRepository{db: db}
}

// WithTx 绑定事务
func (r *appealRepository) WithTx(tx *gorm.DB) AppealRepository {
	return &appealRepository{db: tx}
}

// Create 创建申诉
func (r *appealRepository) Create(ctx context.Context, appeal *model.AppealModel) error {
	return translate(r.db.WithContext(ctx).Create(appeal).Error)
}

// FindByID 根据 ID 查找申诉
func (r *appealRepository) FindByID(ctx context.Context, id string) (*model.AppealModel, error) {
	var appeal model.AppealModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&appeal).Error; err != nil {
		return nil, translate(err)
	}
	return &appeal, nil
}

// ExistsForType 申诉人是否已就该活动提交过同类型申诉(任意状态)
func (r *appealRepository) ExistsForType(ctx context.Context, appellantID, campaignID string, appealType model.AppealType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AppealModel{}).
		Where("appellant_employee_id = ? AND campaign_id = ? AND appeal_type = ?", appellantID, campaignID, appealType).
		Count(&count).Error
	return count > 0, err
}

// CountSubmittedSince 统计申诉人自 since 起提交的申诉数(任意类型与活动)
func (r *appealRepository) CountSubmittedSince(ctx context.Context, appellantID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AppealModel{}).
		Where("appellant_employee_id = ? AND submitted_at >= ?", appellantID, since).
		Count(&count).Error
	return count, err
}

// CompareAndSwap 仅当当前状态仍为 expected 时更新,返回是否更新成功
func (r *appealRepository) CompareAndSwap(ctx context.Context, id string, expected model.AppealStatus, updates *AppealUpdate) (bool, error) {
	fields := map[string]interface{}{
		"status":     updates.Status,
		"updated_at": updates.UpdatedAt,
	}
	if updates.ReviewerID != "" {
		fields["reviewer_id"] = updates.ReviewerID
	}
	if updates.ReviewedAt != nil {
		fields["reviewed_at"] = *updates.ReviewedAt
	}
	if updates.ReviewNotes != "" {
		fields["review_notes"] = updates.ReviewNotes
	}
	if updates.Outcome != "" {
		fields["outcome"] = updates.Outcome
	}

	result := r.db.WithContext(ctx).Model(&model.AppealModel{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(fields)
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// FindByFilter 根据过滤器查找申诉,按提交时间倒序
func (r *appealRepository) FindByFilter(ctx context.Context, filter *AppealFilter) ([]*model.AppealModel, error) {
	var appeals []*model.AppealModel
	query := r.db.WithContext(ctx).Model(&model.AppealModel{})

	if filter != nil {
		if filter.AppellantID != nil {
			query = query.Where("appellant_employee_id = ?", *filter.AppellantID)
		}
		if filter.CampaignID != nil {
			query = query.Where("campaign_id = ?", *filter.CampaignID)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.StartTime != nil {
			query = query.Where("submitted_at >= ?", *filter.StartTime)
		}
		if filter.EndTime != nil {
			query = query.Where("submitted_at <= ?", *filter.EndTime)
		}
	}

	err := query.Order("submitted_at DESC").Find(&appeals).Error
	return appeals, err
}

// FindOpenQueue 待处理队列: 按优先级、提交时间升序
func (r *appealRepository) FindOpenQueue(ctx context.Context) ([]*model.AppealModel, error) {
	var appeals []*model.AppealModel
	err := r.db.WithContext(ctx).
		Where("status IN ?", []model.AppealStatus{model.AppealStatusPending, model.AppealStatusUnderReview}).
		Order(priorityOrder).
		Order("submitted_at ASC").
		Find(&appeals).Error
	return appeals, err
}

// FindOverdue 超过处理时限仍未处理的申诉
func (r *appealRepository) FindOverdue(ctx context.Context, now time.Time) ([]*model.AppealModel, error) {
	var appeals []*model.AppealModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND resolution_time_limit < ?",
			[]model.AppealStatus{model.AppealStatusPending, model.AppealStatusUnderReview}, now).
		Order("resolution_time_limit ASC").
		Find(&appeals).Error
	return appeals, err
}

// CountOverdue 统计超时未处理的申诉
func (r *appealRepository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AppealModel{}).
		Where("status IN ? AND resolution_time_limit < ?",
			[]model.AppealStatus{model.AppealStatusPending, model.AppealStatusUnderReview}, now).
		Count(&count).Error
	return count, err
}

// CountByStatus 按状态统计申诉数
func (r *appealRepository) CountByStatus(ctx context.Context) (map[model.AppealStatus]int64, error) {
	var rows []struct {
		Status model.AppealStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&model.AppealModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.AppealStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
