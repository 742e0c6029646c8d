package model

import "time"

// CampaignStatus 投票活动状态
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusClosed    CampaignStatus = "closed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// AppealType 申诉类型
type AppealType string

const (
	AppealTypePromotionResult  AppealType = "promotion_result"
	AppealTypeDemotionResult   AppealType = "demotion_result"
	AppealTypeVoteManipulation AppealType = "vote_manipulation"
	AppealTypeUnfairProcess    AppealType = "unfair_process"
)

// AppealTypes 全部申诉类型
var AppealTypes = []AppealType{
	AppealTypePromotionResult,
	AppealTypeDemotionResult,
	AppealTypeVoteManipulation,
	AppealTypeUnfairProcess,
}

// Valid 判断是否为已知申诉类型
func (t AppealType) Valid() bool {
	switch t {
	case AppealTypePromotionResult, AppealTypeDemotionResult, AppealTypeVoteManipulation, AppealTypeUnfairProcess:
		return true
	}
	return false
}

// ResolutionSLA 返回该类型申诉的处理时限,未知类型按 3 天处理
func (t AppealType) ResolutionSLA() time.Duration {
	switch t {
	case AppealTypeVoteManipulation:
		return 24 * time.Hour
	case AppealTypeDemotionResult:
		return 2 * 24 * time.Hour
	case AppealTypePromotionResult:
		return 3 * 24 * time.Hour
	case AppealTypeUnfairProcess:
		return 5 * 24 * time.Hour
	default:
		return 3 * 24 * time.Hour
	}
}

// AppealStatus 申诉状态
type AppealStatus string

const (
	AppealStatusPending     AppealStatus = "pending"
	AppealStatusUnderReview AppealStatus = "under_review"
	AppealStatusApproved    AppealStatus = "approved"
	AppealStatusRejected    AppealStatus = "rejected"
	AppealStatusWithdrawn   AppealStatus = "withdrawn"
)

// AppealStatuses 全部申诉状态
var AppealStatuses = []AppealStatus{
	AppealStatusPending,
	AppealStatusUnderReview,
	AppealStatusApproved,
	AppealStatusRejected,
	AppealStatusWithdrawn,
}

// Open 申诉是否仍待处理
func (s AppealStatus) Open() bool {
	return s == AppealStatusPending || s == AppealStatusUnderReview
}

// AppealOutcome 申诉处理结果
type AppealOutcome string

const (
	AppealOutcomeMaintainResult   AppealOutcome = "maintain_result"
	AppealOutcomeRevote           AppealOutcome = "revote"
	AppealOutcomeDirectOverride   AppealOutcome = "direct_override"
	AppealOutcomePositionRestored AppealOutcome = "position_restored"
)

// Valid 判断是否为已知处理结果
func (o AppealOutcome) Valid() bool {
	switch o {
	case AppealOutcomeMaintainResult, AppealOutcomeRevote, AppealOutcomeDirectOverride, AppealOutcomePositionRestored:
		return true
	}
	return false
}

// AppealPriority 申诉优先级
type AppealPriority string

const (
	AppealPriorityLow    AppealPriority = "low"
	AppealPriorityMedium AppealPriority = "medium"
	AppealPriorityHigh   AppealPriority = "high"
	AppealPriorityUrgent AppealPriority = "urgent"
)

// Valid 判断是否为已知优先级
func (p AppealPriority) Valid() bool {
	switch p {
	case AppealPriorityLow, AppealPriorityMedium, AppealPriorityHigh, AppealPriorityUrgent:
		return true
	}
	return false
}

// Rank 排序权重,数值越小越优先
func (p AppealPriority) Rank() int {
	switch p {
	case AppealPriorityUrgent:
		return 0
	case AppealPriorityHigh:
		return 1
	case AppealPriorityMedium:
		return 2
	default:
		return 3
	}
}
