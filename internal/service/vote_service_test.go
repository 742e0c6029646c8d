package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/mautops/promotion-vote/internal/anonymizer"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/repository"
	"github.com/mautops/promotion-vote/internal/service"
	"github.com/mautops/promotion-vote/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCastVote_Success 测试投票成功并生成匿名字段
func TestCastVote_Success(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")

	ranking := 1
	weight := decimal.NewFromFloat(1.5)
	vote, err := f.votes.CastVote(context.Background(), &service.CastVoteRequest{
		CampaignID:  "C1",
		EmployeeID:  "E1",
		CandidateID: "A",
		Ranking:     &ranking,
		Weight:      &weight,
		Reason:      "表现突出",
		IPAddress:   "10.0.0.1",
	})
	require.NoError(t, err)

	assert.Equal(t, anonymizer.Fingerprint("E1", "C1"), vote.VoterFingerprint)
	assert.NotEqual(t, vote.VoterFingerprint, vote.VoterToken)
	assert.Equal(t, anonymizer.HashAttribute("10.0.0.1"), vote.IPHash)
	assert.Equal(t, anonymizer.HashAttribute(""), vote.UAHash)
	assert.True(t, vote.IsValid)
	assert.Equal(t, "A", vote.OriginalDecision)
	assert.Equal(t, "A", vote.CurrentDecision)
	assert.True(t, vote.CanStillModify)
	assert.True(t, weight.Equal(vote.Weight))
	assert.Equal(t, testutil.Date(2024, 1, 5), vote.VotedAt)

	var saved model.VoteModel
	require.NoError(t, f.db.Where("id = ?", vote.ID).First(&saved).Error)
	assert.True(t, decimal.NewFromFloat(1.5).Equal(saved.Weight))
	require.NotNil(t, saved.Ranking)
	assert.Equal(t, 1, *saved.Ranking)
}

// TestCastVote_DefaultWeight 测试权重默认为 1
func TestCastVote_DefaultWeight(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")

	vote := f.castAt(t, testutil.Date(2024, 1, 5), "C1", "E1", "A")
	assert.True(t, decimal.NewFromInt(1).Equal(vote.Weight))
}

// TestCastVote_NoEmployeeIDStored 测试选票记录中不出现员工 ID
func TestCastVote_NoEmployeeIDStored(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")
	vote := f.castAt(t, testutil.Date(2024, 1, 5), "C1", "employee-42", "A")

	row := map[string]interface{}{}
	require.NoError(t, f.db.Table("votes").Where("id = ?", vote.ID).Take(&row).Error)
	for column, value := range row {
		if s, ok := value.(string); ok {
			assert.NotContains(t, s, "employee-42", "column %s leaks employee id", column)
		}
	}
}

// TestCastVote_Duplicate 测试同一员工重复投票被拒绝
func TestCastVote_Duplicate(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")
	f.castAt(t, testutil.Date(2024, 1, 5), "C1", "E1", "A")

	_, err := f.votes.CastVote(context.Background(), &service.CastVoteRequest{
		CampaignID:  "C1",
		EmployeeID:  "E1",
		CandidateID: "B",
	})
	var dupErr *service.DuplicateVoteError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "C1", dupErr.CampaignID)

	var count int64
	require.NoError(t, f.db.Model(&model.VoteModel{}).Where("campaign_id = ?", "C1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// TestCastVote_SameEmployeeDifferentCampaigns 测试不同活动互不影响
func TestCastVote_SameEmployeeDifferentCampaigns(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")
	seedActiveCampaign(t, f.db, "C2")

	v1 := f.castAt(t, testutil.Date(2024, 1, 5), "C1", "E1", "A")
	v2 := f.castAt(t, testutil.Date(2024, 1, 5), "C2", "E1", "A")
	assert.NotEqual(t, v1.VoterFingerprint, v2.VoterFingerprint)
}

// TestCastVote_Concurrent 测试并发投票只有一张票生效
func TestCastVote_Concurrent(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")

	const attempts = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
		others     []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.votes.CastVote(context.Background(), &service.CastVoteRequest{
				CampaignID:  "C1",
				EmployeeID:  "E1",
				CandidateID: "A",
			})
			mu.Lock()
			defer mu.Unlock()
			var dupErr *service.DuplicateVoteError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &dupErr):
				duplicates++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, duplicates)

	var count int64
	require.NoError(t, f.db.Model(&model.VoteModel{}).Where("campaign_id = ? AND is_valid = ?", "C1", true).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// racingVoteRepository 预检查总是看不到已有选票,模拟两个请求同时通过预检查
type racingVoteRepository struct {
	repository.VoteRepository
}

func (r *racingVoteRepository) ExistsAny(context.Context, string, string) (bool, error) {
	return false, nil
}

// TestCastVote_UniqueIndexDecidesRace 测试预检查通过后由唯一索引拒绝重复投票
func TestCastVote_UniqueIndexDecidesRace(t *testing.T) {
	f := newFixture(t, withVoteRepository(func(inner repository.VoteRepository) repository.VoteRepository {
		return &racingVoteRepository{VoteRepository: inner}
	}))
	seedActiveCampaign(t, f.db, "C1")

	f.castAt(t, testutil.Date(2024, 1, 5), "C1", "E1", "A")

	_, err := f.votes.CastVote(context.Background(), &service.CastVoteRequest{
		CampaignID:  "C1",
		EmployeeID:  "E1",
		CandidateID: "B",
	})
	var dupErr *service.DuplicateVoteError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "C1", dupErr.CampaignID)

	var rows int64
	require.NoError(t, f.db.Model(&model.VoteModel{}).Where("campaign_id = ?", "C1").Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
	assert.Len(t, f.publisher.ofType(model.EventVoteCast), 1)
}

// TestCastVote_Validation 测试投票参数校验
func TestCastVote_Validation(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")

	zero := decimal.Zero
	tooHeavy := decimal.NewFromInt(101)
	badRanking := 0

	tests := []struct {
		name  string
		req   *service.CastVoteRequest
		field string
	}{
		{"missing campaign", &service.CastVoteRequest{EmployeeID: "E1", CandidateID: "A"}, "campaign_id"},
		{"missing employee", &service.CastVoteRequest{CampaignID: "C1", CandidateID: "A"}, "employee_id"},
		{"missing candidate", &service.CastVoteRequest{CampaignID: "C1", EmployeeID: "E1"}, "candidate_id"},
		{"zero weight", &service.CastVoteRequest{CampaignID: "C1", EmployeeID: "E1", CandidateID: "A", Weight: &zero}, "weight"},
		{"weight over limit", &service.CastVoteRequest{CampaignID: "C1", EmployeeID: "E1", CandidateID: "A", Weight: &tooHeavy}, "weight"},
		{"ranking below one", &service.CastVoteRequest{CampaignID: "C1", EmployeeID: "E1", CandidateID: "A", Ranking: &badRanking}, "ranking"},
		{"reason too long", &service.CastVoteRequest{CampaignID: "C1", EmployeeID: "E1", CandidateID: "A", Reason: strings.Repeat("理", 1001)}, "reason"},
		{"unknown candidate", &service.CastVoteRequest{CampaignID: "C1", EmployeeID: "E1", CandidateID: "Z"}, "candidate_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.votes.CastVote(context.Background(), tt.req)
			var validationErr *service.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

// TestCastVote_CampaignState 测试活动状态校验
func TestCastVote_CampaignState(t *testing.T) {
	f := newFixture(t)
	seedClosedCampaign(t, f.db, "C1")
	testutil.CreateCampaign(t, f.db, "C2", testutil.Date(2024, 2, 1), testutil.Date(2024, 2, 10), model.CampaignStatusDraft, "A")

	for _, campaignID := range []string{"C1", "C2"} {
		_, err := f.votes.CastVote(context.Background(), &service.CastVoteRequest{
			CampaignID:  campaignID,
			EmployeeID:  "E1",
			CandidateID: "A",
		})
		var stateErr *service.CampaignStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, campaignID, stateErr.CampaignID)
	}

	_, err := f.votes.CastVote(context.Background(), &service.CastVoteRequest{
		CampaignID:  "missing",
		EmployeeID:  "E1",
		CandidateID: "A",
	})
	assert.ErrorIs(t, err, service.ErrCampaignNotFound)
}

// TestCastVote_PublishesEvent 测试投票事件不包含指纹
func TestCastVote_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")
	vote := f.castAt(t, testutil.Date(2024, 1, 5), "C1", "E1", "A")

	events := f.publisher.ofType(model.EventVoteCast)
	require.Len(t, events, 1)
	assert.Equal(t, "C1", events[0].AggregateID)
	assert.Equal(t, "A", events[0].Payload["candidate_id"])
	assert.Equal(t, vote.VoterToken, events[0].Payload["voter_token"])
	for _, value := range events[0].Payload {
		assert.NotEqual(t, vote.VoterFingerprint, value)
	}
}

// TestHasVoted 测试是否已投票
func TestHasVoted(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")

	voted, err := f.votes.HasVoted(context.Background(), "C1", "E1")
	require.NoError(t, err)
	assert.False(t, voted)

	f.castAt(t, testutil.Date(2024, 1, 5), "C1", "E1", "A")

	voted, err = f.votes.HasVoted(context.Background(), "C1", "E1")
	require.NoError(t, err)
	assert.True(t, voted)

	voted, err = f.votes.HasVoted(context.Background(), "C1", "E2")
	require.NoError(t, err)
	assert.False(t, voted)
}

// TestHasVoted_AfterInvalidation 测试作废后不能重新投票
func TestHasVoted_AfterInvalidation(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")
	vote := f.castAt(t, testutil.Date(2024, 1, 5), "C1", "E1", "A")

	_, err := f.integrity.InvalidateVote(context.Background(), vote.ID, "auditor", "误投")
	require.NoError(t, err)

	voted, err := f.votes.HasVoted(context.Background(), "C1", "E1")
	require.NoError(t, err)
	assert.True(t, voted)

	f.clock.Set(testutil.Date(2024, 1, 6))
	_, err = f.votes.CastVote(context.Background(), &service.CastVoteRequest{
		CampaignID:  "C1",
		EmployeeID:  "E1",
		CandidateID: "B",
	})
	var dupErr *service.DuplicateVoteError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "C1", dupErr.CampaignID)

	var rows int64
	require.NoError(t, f.db.Model(&model.VoteModel{}).
		Where("campaign_id = ? AND voter_fingerprint = ?", "C1", anonymizer.Fingerprint("E1", "C1")).
		Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

// TestAmendVote 测试改票次数限制
func TestAmendVote(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")
	original := f.castAt(t, testutil.Date(2024, 1, 5), "C1", "E1", "A")
	ctx := context.Background()

	amended, err := f.votes.AmendVote(ctx, &service.AmendVoteRequest{CampaignID: "C1", EmployeeID: "E1", CandidateID: "B", Reason: "重新考虑"})
	require.NoError(t, err)
	assert.Equal(t, original.ID, amended.ID)
	assert.Equal(t, "A", amended.OriginalDecision)
	assert.Equal(t, "B", amended.CurrentDecision)
	assert.Equal(t, "B", amended.CandidateID)
	assert.Equal(t, 1, amended.ModificationCount)
	assert.True(t, amended.CanStillModify)
	assert.Equal(t, original.VoterToken, amended.VoterToken)

	amended, err = f.votes.AmendVote(ctx, &service.AmendVoteRequest{CampaignID: "C1", EmployeeID: "E1", CandidateID: "A"})
	require.NoError(t, err)
	assert.Equal(t, 2, amended.ModificationCount)
	assert.False(t, amended.CanStillModify)

	_, err = f.votes.AmendVote(ctx, &service.AmendVoteRequest{CampaignID: "C1", EmployeeID: "E1", CandidateID: "B"})
	var stateErr *service.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.False(t, stateErr.Conflict)
}

// TestAmendVote_Rejections 测试改票的各种拒绝情形
func TestAmendVote_Rejections(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")
	f.castAt(t, testutil.Date(2024, 1, 5), "C1", "E1", "A")
	ctx := context.Background()

	_, err := f.votes.AmendVote(ctx, &service.AmendVoteRequest{CampaignID: "C1", EmployeeID: "E1", CandidateID: "A"})
	var validationErr *service.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "candidate_id", validationErr.Field)

	_, err = f.votes.AmendVote(ctx, &service.AmendVoteRequest{CampaignID: "C1", EmployeeID: "E2", CandidateID: "B"})
	assert.ErrorIs(t, err, service.ErrVoteNotFound)

	f.clock.Set(testutil.Date(2024, 1, 11))
	_, err = f.votes.AmendVote(ctx, &service.AmendVoteRequest{CampaignID: "C1", EmployeeID: "E1", CandidateID: "B"})
	var campaignErr *service.CampaignStateError
	require.ErrorAs(t, err, &campaignErr)
}

// TestReceipt 测试回执查询
func TestReceipt(t *testing.T) {
	f := newFixture(t)
	seedActiveCampaign(t, f.db, "C1")
	vote := f.castAt(t, testutil.Date(2024, 1, 5), "C1", "E1", "A")

	receipt, err := f.votes.Receipt(context.Background(), vote.VoterToken)
	require.NoError(t, err)
	assert.Equal(t, "C1", receipt.CampaignID)
	assert.Equal(t, "A", receipt.CandidateID)
	assert.True(t, receipt.IsValid)
	assert.True(t, testutil.Date(2024, 1, 5).Equal(receipt.VotedAt))

	_, err = f.votes.Receipt(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, service.ErrVoteNotFound)

	_, err = f.votes.Receipt(context.Background(), "")
	var validationErr *service.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}
