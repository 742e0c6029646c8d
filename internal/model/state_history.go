package model

import (
	"errors"
	"time"
)

// StateHistoryModel 申诉状态变更历史数据模型
type StateHistoryModel struct {
	ID        string       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	AppealID  string       `gorm:"type:varchar(64);not null;index" json:"appeal_id"`
	FromState AppealStatus `gorm:"type:varchar(32)" json:"from_state"`
	ToState   AppealStatus `gorm:"type:varchar(32);not null" json:"to_state"`
	Reason    string       `gorm:"type:text" json:"reason,omitempty"`
	Operator  string       `gorm:"type:varchar(64);not null" json:"operator"`
	CreatedAt time.Time    `gorm:"not null;index" json:"created_at"`
}

// TableName 指定表名
func (StateHistoryModel) TableName() string {
	return "appeal_state_history"
}

// Validate 验证状态历史模型
func (shm *StateHistoryModel) Validate() error {
	if shm.ID == "" {
		return errors.New("history ID is required")
	}
	if shm.AppealID == "" {
		return errors.New("appeal ID is required")
	}
	if shm.ToState == "" {
		return errors.New("to state is required")
	}
	if shm.Operator == "" {
		return errors.New("operator is required")
	}
	return nil
}
