package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// VoteModel 投票数据模型
// 不保存员工 ID,只保存由其派生的指纹和回执令牌
type VoteModel struct {
	ID                 string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CampaignID         string          `gorm:"type:varchar(64);not null;index" json:"campaign_id"`
	CandidateID        string          `gorm:"type:varchar(64);not null;index" json:"candidate_id"`
	VoterToken         string          `gorm:"type:varchar(64);not null;index" json:"voter_token"`
	VoterFingerprint   string          `gorm:"type:varchar(64);not null" json:"-"`
	Ranking            *int            `gorm:"type:int" json:"ranking,omitempty"`
	Weight             decimal.Decimal `gorm:"type:decimal(6,2);not null;default:1" json:"weight"`
	Reason             string          `gorm:"type:text" json:"reason,omitempty"`
	IPHash             string          `gorm:"type:varchar(64)" json:"-"`
	UAHash             string          `gorm:"type:varchar(64)" json:"-"`
	SessionID          string          `gorm:"type:varchar(128)" json:"-"`
	VotedAt            time.Time       `gorm:"not null;index" json:"voted_at"`
	IsValid            bool            `gorm:"not null;default:true;index" json:"is_valid"`
	OriginalDecision   string          `gorm:"type:varchar(64);not null" json:"original_decision"`
	CurrentDecision    string          `gorm:"type:varchar(64);not null" json:"current_decision"`
	ModificationCount  int             `gorm:"type:int;not null;default:0" json:"modification_count"`
	CanStillModify     bool            `gorm:"not null;default:true" json:"can_still_modify"`
	InvalidatedAt      *time.Time      `json:"invalidated_at,omitempty"`
	InvalidationReason string          `gorm:"type:text" json:"invalidation_reason,omitempty"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (VoteModel) TableName() string {
	return "votes"
}

// Validate 验证投票模型
func (vm *VoteModel) Validate() error {
	if vm.ID == "" {
		return errors.New("vote ID is required")
	}
	if vm.CampaignID == "" {
		return errors.New("campaign ID is required")
	}
	if vm.CandidateID == "" {
		return errors.New("candidate ID is required")
	}
	if vm.VoterFingerprint == "" {
		return errors.New("voter fingerprint is required")
	}
	if vm.VoterToken == "" {
		return errors.New("voter token is required")
	}
	if vm.VoterToken == vm.VoterFingerprint {
		return errors.New("voter token must not equal voter fingerprint")
	}
	return nil
}
