package service_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mautops/promotion-vote/internal/anonymizer"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/repository"
	"github.com/mautops/promotion-vote/internal/service"
	"github.com/mautops/promotion-vote/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSalt = "test-salt"

// recordingPublisher 记录发布的领域事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt *model.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) ofType(eventType model.EventType) []*model.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []*model.DomainEvent
	for _, evt := range p.events {
		if evt.Type == eventType {
			matched = append(matched, evt)
		}
	}
	return matched
}

// fixture 组装好的服务集合
type fixture struct {
	db        *gorm.DB
	clock     *testutil.FixedClock
	publisher *recordingPublisher
	audit     service.AuditLogService
	votes     service.VoteService
	stats     service.StatisticsService
	integrity service.IntegrityService
	appeals   service.AppealService
}

type fixtureOption func(*fixtureDeps)

type fixtureDeps struct {
	voteRepo   repository.VoteRepository
	appealRepo repository.AppealRepository
}

// withVoteRepository 替换选票仓储,用于模拟并发写入
func withVoteRepository(wrap func(repository.VoteRepository) repository.VoteRepository) fixtureOption {
	return func(d *fixtureDeps) {
		d.voteRepo = wrap(d.voteRepo)
	}
}

// withAppealRepository 替换申诉仓储,用于模拟并发读取
func withAppealRepository(wrap func(repository.AppealRepository) repository.AppealRepository) fixtureOption {
	return func(d *fixtureDeps) {
		d.appealRepo = wrap(d.appealRepo)
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	clock := testutil.NewFixedClock(testutil.Date(2024, 1, 5))
	publisher := &recordingPublisher{}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	deps := &fixtureDeps{
		voteRepo:   repository.NewVoteRepository(db),
		appealRepo: repository.NewAppealRepository(db),
	}
	for _, opt := range opts {
		opt(deps)
	}

	voteRepo := deps.voteRepo
	registry := service.NewRegistry(repository.NewCampaignRepository(db))
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), clock)

	integrity := service.NewIntegrityService(db, voteRepo, registry, audit, publisher, clock, logger)

	return &fixture{
		db:        db,
		clock:     clock,
		publisher: publisher,
		audit:     audit,
		votes: service.NewVoteService(voteRepo, registry, registry, publisher, clock, service.VoteConfig{
			TokenSalt:     testSalt,
			MaxAmendments: 2,
		}, logger),
		stats:     service.NewStatisticsService(db, voteRepo, deps.appealRepo, registry, clock),
		integrity: integrity,
		appeals: service.NewAppealService(db, deps.appealRepo, repository.NewStateHistoryRepository(db),
			audit, registry, integrity, publisher, clock, service.DefaultAppealConfig(), logger),
	}
}

// castAt 在指定时间投票
func (f *fixture) castAt(t *testing.T, at time.Time, campaignID, employeeID, candidateID string) *model.VoteModel {
	t.Helper()
	f.clock.Set(at)
	vote, err := f.votes.CastVote(context.Background(), &service.CastVoteRequest{
		CampaignID:  campaignID,
		EmployeeID:  employeeID,
		CandidateID: candidateID,
	})
	require.NoError(t, err)
	return vote
}

// insertRawVote 绕过服务直接写入选票,用于构造历史脏数据
func insertRawVote(t *testing.T, db *gorm.DB, campaignID, employeeID, candidateID string, votedAt time.Time) *model.VoteModel {
	t.Helper()
	vote := &model.VoteModel{
		ID:               "raw-" + employeeID + "-" + votedAt.Format("20060102150405"),
		CampaignID:       campaignID,
		CandidateID:      candidateID,
		VoterToken:       anonymizer.Token(employeeID, campaignID, testSalt, votedAt),
		VoterFingerprint: anonymizer.Fingerprint(employeeID, campaignID),
		Weight:           decimal.NewFromInt(1),
		VotedAt:          votedAt,
		IsValid:          true,
		OriginalDecision: candidateID,
		CurrentDecision:  candidateID,
		CanStillModify:   true,
		CreatedAt:        votedAt,
		UpdatedAt:        votedAt,
	}
	require.NoError(t, db.Create(vote).Error)
	return vote
}

// seedClosedCampaign 创建 2024-01-01 至 2024-01-10 的已结束活动
func seedClosedCampaign(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	testutil.CreateCampaign(t, db, id, testutil.Date(2024, 1, 1), testutil.Date(2024, 1, 10), model.CampaignStatusClosed, "A", "B")
}

// seedActiveCampaign 创建 2024-01-01 至 2024-01-10 的进行中活动
func seedActiveCampaign(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	testutil.CreateCampaign(t, db, id, testutil.Date(2024, 1, 1), testutil.Date(2024, 1, 10), model.CampaignStatusActive, "A", "B")
}
