package model

import "time"

// CampaignModel 投票活动(由外部活动管理模块维护,本服务只读)
type CampaignModel struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title     string         `gorm:"type:varchar(255)" json:"title"`
	StartDate time.Time      `gorm:"not null" json:"start_date"`
	EndDate   time.Time      `gorm:"not null" json:"end_date"`
	Status    CampaignStatus `gorm:"type:varchar(32);not null;index" json:"status"`
}

// TableName 指定表名
func (CampaignModel) TableName() string {
	return "campaigns"
}

// CandidateModel 活动候选人(只读)
type CandidateModel struct {
	ID         string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CampaignID string `gorm:"primaryKey;type:varchar(64)" json:"campaign_id"`
	EmployeeID string `gorm:"type:varchar(64)" json:"employee_id"`
}

// TableName 指定表名
func (CandidateModel) TableName() string {
	return "campaign_candidates"
}
