package model

import (
	"errors"
	"time"
)

// EventType 领域事件类型
type EventType string

const (
	EventVoteCast         EventType = "VoteCast"
	EventIntegrityFlagged EventType = "IntegrityFlagged"
	EventAppealSubmitted  EventType = "AppealSubmitted"
	EventAppealResolved   EventType = "AppealResolved"
)

// EventModel 领域事件数据模型(发件箱)
type EventModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	AggregateID string    `gorm:"type:varchar(64);not null;index"` // 活动 ID 或申诉 ID
	Type        EventType `gorm:"type:varchar(32);not null;index"`
	Data        []byte    `gorm:"type:text;not null"`                          // 序列化后的事件数据
	Status      string    `gorm:"type:varchar(32);not null;default:'pending'"` // pending/success/failed
	RetryCount  int       `gorm:"type:int;default:0"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName 指定表名
func (EventModel) TableName() string {
	return "events"
}

// Validate 验证事件模型
func (em *EventModel) Validate() error {
	if em.ID == "" {
		return errors.New("event ID is required")
	}
	if em.AggregateID == "" {
		return errors.New("aggregate ID is required")
	}
	if em.Type == "" {
		return errors.New("event type is required")
	}
	if len(em.Data) == 0 {
		return errors.New("event data is required")
	}
	if em.Status == "" {
		em.Status = "pending"
	}
	return nil
}

// DomainEvent 对外发布的领域事件
// 载荷中不得出现员工 ID 与选票之间的关联
type DomainEvent struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}
