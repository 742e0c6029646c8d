package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mautops/promotion-vote/internal/anonymizer"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/repository"
	"github.com/mautops/promotion-vote/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var day = testutil.Date(2024, 1, 5)

func newVote(id, campaignID, employeeID, candidateID string) *model.VoteModel {
	return &model.VoteModel{
		ID:               id,
		CampaignID:       campaignID,
		CandidateID:      candidateID,
		VoterToken:       anonymizer.Token(employeeID, campaignID, "salt", day),
		VoterFingerprint: anonymizer.Fingerprint(employeeID, campaignID),
		Weight:           decimal.NewFromInt(1),
		VotedAt:          day,
		IsValid:          true,
		OriginalDecision: candidateID,
		CurrentDecision:  candidateID,
		CanStillModify:   true,
		CreatedAt:        day,
		UpdatedAt:        day,
	}
}

func newAppeal(id, appellant string, appealType model.AppealType, priority model.AppealPriority, submittedAt time.Time) *model.AppealModel {
	return &model.AppealModel{
		ID:                  id,
		CampaignID:          "c1",
		AppellantEmployeeID: appellant,
		AppealType:          appealType,
		Reason:              "reason",
		Status:              model.AppealStatusPending,
		Priority:            priority,
		SubmittedAt:         submittedAt,
		AppealDeadline:      submittedAt.AddDate(0, 0, 7),
		ResolutionTimeLimit: submittedAt.AddDate(0, 0, 3),
		CreatedAt:           submittedAt,
		UpdatedAt:           submittedAt,
	}
}

// TestVoteRepository_UniqueFingerprint 同一活动同一指纹只能有一张有效票
func TestVoteRepository_UniqueFingerprint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewVoteRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newVote("v1", "c1", "E1", "A")))

	err := repo.Create(ctx, newVote("v2", "c1", "E1", "B"))
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	// 其他活动不受影响
	require.NoError(t, repo.Create(ctx, newVote("v3", "c2", "E1", "A")))

	// 唯一索引只约束有效票,作废的行不占用索引
	ok, err := repo.Invalidate(ctx, "v1", "coercion", day)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, repo.Create(ctx, newVote("v4", "c1", "E1", "B")))

	exists, err := repo.ExistsAny(ctx, "c1", anonymizer.Fingerprint("E1", "c1"))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsAny(ctx, "c3", anonymizer.Fingerprint("E1", "c3"))
	require.NoError(t, err)
	assert.False(t, exists)

	valid, err := repo.FindValidByFingerprint(ctx, "c1", anonymizer.Fingerprint("E1", "c1"))
	require.NoError(t, err)
	assert.Equal(t, "v4", valid.ID)
}

// TestVoteRepository_ExistsAnyIncludesInvalidated 作废的选票仍计为已投票
func TestVoteRepository_ExistsAnyIncludesInvalidated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewVoteRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newVote("v1", "c1", "E1", "A")))
	ok, err := repo.Invalidate(ctx, "v1", "coercion", day)
	require.NoError(t, err)
	require.True(t, ok)

	exists, err := repo.ExistsAny(ctx, "c1", anonymizer.Fingerprint("E1", "c1"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestVoteRepository_Invalidate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewVoteRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newVote("v1", "c1", "E1", "A")))

	ok, err := repo.Invalidate(ctx, "v1", "duplicate fingerprint", day)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Invalidate(ctx, "v1", "again", day)
	require.NoError(t, err)
	assert.False(t, ok)

	vote, err := repo.FindByID(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, vote.IsValid)
	assert.False(t, vote.CanStillModify)
	assert.Equal(t, "duplicate fingerprint", vote.InvalidationReason)
	require.NotNil(t, vote.InvalidatedAt)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// TestVoteRepository_UpdateDecision 修改次数不一致时不更新
func TestVoteRepository_UpdateDecision(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewVoteRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newVote("v1", "c1", "E1", "A")))

	ok, err := repo.UpdateDecision(ctx, &repository.DecisionChange{
		VoteID:         "v1",
		ExpectedCount:  0,
		CandidateID:    "B",
		CanStillModify: true,
		UpdatedAt:      day.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// 过期的修改次数
	ok, err = repo.UpdateDecision(ctx, &repository.DecisionChange{
		VoteID:        "v1",
		ExpectedCount: 0,
		CandidateID:   "A",
		UpdatedAt:     day.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	vote, err := repo.FindByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "A", vote.OriginalDecision)
	assert.Equal(t, "B", vote.CurrentDecision)
	assert.Equal(t, "B", vote.CandidateID)
	assert.Equal(t, 1, vote.ModificationCount)
}

func TestAppealRepository_Eligibility(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAppealRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newAppeal("a1", "E1", model.AppealTypePromotionResult, model.AppealPriorityMedium, day)))

	exists, err := repo.ExistsForType(ctx, "E1", "c1", model.AppealTypePromotionResult)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsForType(ctx, "E1", "c1", model.AppealTypeUnfairProcess)
	require.NoError(t, err)
	assert.False(t, exists)

	// 唯一索引兜底
	err = repo.Create(ctx, newAppeal("a2", "E1", model.AppealTypePromotionResult, model.AppealPriorityMedium, day))
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	count, err := repo.CountSubmittedSince(ctx, "E1", day.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountSubmittedSince(ctx, "E1", day.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestAppealRepository_CompareAndSwap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAppealRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newAppeal("a1", "E1", model.AppealTypePromotionResult, model.AppealPriorityMedium, day)))

	reviewedAt := day.Add(time.Hour)
	ok, err := repo.CompareAndSwap(ctx, "a1", model.AppealStatusPending, &repository.AppealUpdate{
		Status:      model.AppealStatusApproved,
		ReviewerID:  "R1",
		ReviewedAt:  &reviewedAt,
		ReviewNotes: "ok",
		Outcome:     model.AppealOutcomeRevote,
		UpdatedAt:   reviewedAt,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSwap(ctx, "a1", model.AppealStatusPending, &repository.AppealUpdate{
		Status:    model.AppealStatusRejected,
		UpdatedAt: reviewedAt,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	appeal, err := repo.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AppealStatusApproved, appeal.Status)
	assert.Equal(t, "R1", appeal.ReviewerID)
	assert.Equal(t, model.AppealOutcomeRevote, appeal.Outcome)
}

func TestAppealRepository_QueueAndOverdue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAppealRepository(db)
	ctx := context.Background()

	priorities := []model.AppealPriority{
		model.AppealPriorityLow,
		model.AppealPriorityUrgent,
		model.AppealPriorityMedium,
		model.AppealPriorityUrgent,
	}
	for i, priority := range priorities {
		appeal := newAppeal(fmt.Sprintf("a%d", i), fmt.Sprintf("E%d", i), model.AppealTypePromotionResult, priority, day.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.Create(ctx, appeal))
	}

	queue, err := repo.FindOpenQueue(ctx)
	require.NoError(t, err)
	var ids []string
	for _, appeal := range queue {
		ids = append(ids, appeal.ID)
	}
	assert.Equal(t, []string{"a1", "a3", "a2", "a0"}, ids)

	// 处理时限为提交后 3 天
	overdue, err := repo.CountOverdue(ctx, day.AddDate(0, 0, 3).Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), overdue)

	byStatus, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), byStatus[model.AppealStatusPending])
}

func TestEventRepository_PendingAndStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEventRepository(db)
	ctx := context.Background()

	for i, eventType := range []model.EventType{model.EventVoteCast, model.EventAppealSubmitted} {
		require.NoError(t, repo.Save(ctx, &model.EventModel{
			ID:          fmt.Sprintf("evt-%d", i),
			AggregateID: "c1",
			Type:        eventType,
			Data:        []byte(`{}`),
			Status:      "pending",
			CreatedAt:   day.Add(time.Duration(i) * time.Minute),
			UpdatedAt:   day,
		}))
	}

	require.NoError(t, repo.UpdateStatus(ctx, "evt-0", "success", 1))

	pending, err := repo.FindPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "evt-1", pending[0].ID)

	events, err := repo.FindByAggregateID(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm", gorm.ErrDuplicatedKey, true},
		{"postgres", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite", errors.New("UNIQUE constraint failed: votes.campaign_id, votes.voter_fingerprint"), true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repository.IsUniqueViolation(tt.err))
		})
	}
}
