package service

import (
	"errors"
	"fmt"

	"github.com/mautops/promotion-vote/internal/model"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrAppealNotFound   = errors.New("appeal not found")
	ErrVoteNotFound     = errors.New("vote not found")
)

// ValidationError 输入缺失或格式错误,未做任何持久化
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// CampaignStateError 活动状态不允许当前操作(投票要求进行中,申诉要求已结束)
type CampaignStateError struct {
	CampaignID string
	Status     model.CampaignStatus
	Message    string
}

func (e *CampaignStateError) Error() string {
	return fmt.Sprintf("campaign %s is %s: %s", e.CampaignID, e.Status, e.Message)
}

// DuplicateVoteError 该员工已在活动中投过有效票
type DuplicateVoteError struct {
	CampaignID string
}

func (e *DuplicateVoteError) Error() string {
	return fmt.Sprintf("already voted in campaign %s", e.CampaignID)
}

// EligibilityRule 申诉资格规则
type EligibilityRule string

const (
	RuleCampaignNotClosed EligibilityRule = "campaign not closed"
	RuleDeadlinePassed    EligibilityRule = "deadline passed"
	RuleDuplicateType     EligibilityRule = "duplicate appeal type"
	RuleRateLimit         EligibilityRule = "rate limit exceeded"
)

// EligibilityError 申诉未通过资格检查,Rule 为第一条失败的规则
type EligibilityError struct {
	Rule   EligibilityRule
	Reason string
	cause  error
}

func (e *EligibilityError) Error() string {
	if e.Reason == "" || e.Reason == string(e.Rule) {
		return fmt.Sprintf("appeal not eligible: %s", e.Rule)
	}
	return fmt.Sprintf("appeal not eligible: %s (%s)", e.Rule, e.Reason)
}

// Unwrap 活动未结束时可通过 errors.As 取到 CampaignStateError
func (e *EligibilityError) Unwrap() error {
	return e.cause
}

// StateError 非法状态转换,或并发审核导致的条件更新失败
type StateError struct {
	Resource string // appeal, vote
	ID       string
	From     string
	To       string
	Conflict bool
	Message  string
}

func (e *StateError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("%s %s was modified concurrently: %s", e.Resource, e.ID, e.Message)
	}
	if e.From != "" && e.To != "" {
		return fmt.Sprintf("%s %s cannot transition from %s to %s: %s", e.Resource, e.ID, e.From, e.To, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Resource, e.ID, e.Message)
}

// IsConflict 是否为并发冲突
func IsConflict(err error) bool {
	var stateErr *StateError
	return errors.As(err, &stateErr) && stateErr.Conflict
}
