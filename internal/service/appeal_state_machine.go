package service

import "github.com/mautops/promotion-vote/internal/model"

// CanTransition 判断申诉状态能否从 from 转换到 to
//
//	pending      -> under_review | approved | rejected | withdrawn
//	under_review -> approved | rejected | withdrawn
//	approved, rejected, withdrawn 为终态
func CanTransition(from, to model.AppealStatus) bool {
	switch from {
	case model.AppealStatusPending:
		switch to {
		case model.AppealStatusUnderReview, model.AppealStatusApproved, model.AppealStatusRejected, model.AppealStatusWithdrawn:
			return true
		}
		return false
	case model.AppealStatusUnderReview:
		switch to {
		case model.AppealStatusApproved, model.AppealStatusRejected, model.AppealStatusWithdrawn:
			return true
		}
		return false
	case model.AppealStatusApproved, model.AppealStatusRejected, model.AppealStatusWithdrawn:
		return false
	}
	return false
}

// IsTerminal 是否为终态
func IsTerminal(status model.AppealStatus) bool {
	switch status {
	case model.AppealStatusApproved, model.AppealStatusRejected, model.AppealStatusWithdrawn:
		return true
	}
	return false
}

// NextStatuses 返回 from 可转换到的全部状态
func NextStatuses(from model.AppealStatus) []model.AppealStatus {
	next := make([]model.AppealStatus, 0, len(model.AppealStatuses))
	for _, to := range model.AppealStatuses {
		if CanTransition(from, to) {
			next = append(next, to)
		}
	}
	return next
}

// decisionFor 由处理结果推导审核决定: 维持原结果即驳回,其余为通过
func decisionFor(outcome model.AppealOutcome) model.AppealStatus {
	if outcome == model.AppealOutcomeMaintainResult {
		return model.AppealStatusRejected
	}
	return model.AppealStatusApproved
}
