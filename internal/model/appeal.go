package model

import (
	"errors"
	"time"
)

// AppealModel 投票申诉数据模型
type AppealModel struct {
	ID                  string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CampaignID          string         `gorm:"type:varchar(64);not null;index" json:"campaign_id"`
	AppellantEmployeeID string         `gorm:"type:varchar(64);not null;index" json:"appellant_employee_id"`
	TargetEmployeeID    string         `gorm:"type:varchar(64)" json:"target_employee_id,omitempty"`
	AppealType          AppealType     `gorm:"type:varchar(32);not null" json:"appeal_type"`
	Reason              string         `gorm:"type:text;not null" json:"reason"`
	Status              AppealStatus   `gorm:"type:varchar(32);not null;index" json:"status"`
	Priority            AppealPriority `gorm:"type:varchar(16);not null;default:'medium'" json:"priority"`
	Evidence            []string       `gorm:"type:text;serializer:json" json:"evidence"`
	Supporters          []string       `gorm:"type:text;serializer:json" json:"supporters"`
	SubmittedAt         time.Time      `gorm:"not null;index" json:"submitted_at"`
	AppealDeadline      time.Time      `gorm:"not null" json:"appeal_deadline"`
	ResolutionTimeLimit time.Time      `gorm:"not null;index" json:"resolution_time_limit"`
	ReviewerID          string         `gorm:"type:varchar(64)" json:"reviewer_id,omitempty"`
	ReviewedAt          *time.Time     `json:"reviewed_at,omitempty"`
	ReviewNotes         string         `gorm:"type:text" json:"review_notes,omitempty"`
	Outcome             AppealOutcome  `gorm:"type:varchar(32)" json:"outcome,omitempty"`
	CreatedAt           time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (AppealModel) TableName() string {
	return "vote_appeals"
}

// Validate 验证申诉模型
func (am *AppealModel) Validate() error {
	if am.ID == "" {
		return errors.New("appeal ID is required")
	}
	if am.CampaignID == "" {
		return errors.New("campaign ID is required")
	}
	if am.AppellantEmployeeID == "" {
		return errors.New("appellant employee ID is required")
	}
	if !am.AppealType.Valid() {
		return errors.New("appeal type is invalid")
	}
	if am.Status == "" {
		return errors.New("appeal status is required")
	}
	return nil
}

// IsOverdue 超过处理时限且仍未处理
func (am *AppealModel) IsOverdue(now time.Time) bool {
	return now.After(am.ResolutionTimeLimit) && am.Status.Open()
}

// ProcessingTime 从提交到审核完成的耗时,未审核返回 false
func (am *AppealModel) ProcessingTime() (time.Duration, bool) {
	if am.ReviewedAt == nil {
		return 0, false
	}
	return am.ReviewedAt.Sub(am.SubmittedAt), true
}
