package service_test

import (
	"testing"

	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/service"
	"github.com/stretchr/testify/assert"
)

// TestCanTransition 测试完整的状态转换表
func TestCanTransition(t *testing.T) {
	allowed := map[model.AppealStatus][]model.AppealStatus{
		model.AppealStatusPending: {
			model.AppealStatusUnderReview,
			model.AppealStatusApproved,
			model.AppealStatusRejected,
			model.AppealStatusWithdrawn,
		},
		model.AppealStatusUnderReview: {
			model.AppealStatusApproved,
			model.AppealStatusRejected,
			model.AppealStatusWithdrawn,
		},
	}

	for _, from := range model.AppealStatuses {
		for _, to := range model.AppealStatuses {
			expected := false
			for _, s := range allowed[from] {
				if s == to {
					expected = true
				}
			}
			assert.Equal(t, expected, service.CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	assert.False(t, service.CanTransition("unknown", model.AppealStatusApproved))
}

// TestIsTerminal 测试终态判断
func TestIsTerminal(t *testing.T) {
	assert.False(t, service.IsTerminal(model.AppealStatusPending))
	assert.False(t, service.IsTerminal(model.AppealStatusUnderReview))
	assert.True(t, service.IsTerminal(model.AppealStatusApproved))
	assert.True(t, service.IsTerminal(model.AppealStatusRejected))
	assert.True(t, service.IsTerminal(model.AppealStatusWithdrawn))

	assert.Empty(t, service.NextStatuses(model.AppealStatusWithdrawn))
	assert.Len(t, service.NextStatuses(model.AppealStatusPending), 4)
}
