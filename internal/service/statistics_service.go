package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	CampaignStats(ctx context.Context, campaignID string) (*CampaignStatistics, error)
	VoteTimeline(ctx context.Context, campaignID string) ([]*VoteTimelinePoint, error)
	AppealStatistics(ctx context.Context, from, to time.Time) (*AppealStatistics, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
}

// CampaignStatistics 活动投票统计,只计有效票
type CampaignStatistics struct {
	CampaignID   string            `json:"campaign_id"`
	TotalVotes   int64             `json:"total_votes"`
	UniqueVoters int64             `json:"unique_voters"`
	PerCandidate []*CandidateStats `json:"per_candidate"`
}

// CandidateStats 候选人得票统计
type CandidateStats struct {
	CandidateID string  `json:"candidate_id"`
	VoteCount   int64   `json:"vote_count"`
	AvgWeight   float64 `json:"avg_weight"`
	Percentage  float64 `json:"percentage"`
}

// VoteTimelinePoint 按天统计的有效票数
type VoteTimelinePoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// AppealStatistics 申诉统计
type AppealStatistics struct {
	Total                 int64                        `json:"total"`
	ByStatus              map[model.AppealStatus]int64 `json:"by_status"`
	ByType                map[model.AppealType]int64   `json:"by_type"`
	ApprovalRate          float64                      `json:"approval_rate"`  // 百分比
	RejectionRate         float64                      `json:"rejection_rate"` // 百分比
	AverageProcessingHour float64                      `json:"average_processing_hours"`
	AverageProcessingDay  float64                      `json:"average_processing_days"`
	OverdueCount          int64                        `json:"overdue_count"`
}

// statisticsService 统计服务实现
type statisticsService struct {
	db         *gorm.DB
	voteRepo   repository.VoteRepository
	appealRepo repository.AppealRepository
	campaigns  CampaignRegistry
	clock      Clock
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(
	db *gorm.DB,
	voteRepo repository.VoteRepository,
	appealRepo repository.AppealRepository,
	campaigns CampaignRegistry,
	clock Clock,
) StatisticsService {
	if clock == nil {
		clock = SystemClock()
	}
	return &statisticsService{
		db:         db,
		voteRepo:   voteRepo,
		appealRepo: appealRepo,
		campaigns:  campaigns,
		clock:      clock,
	}
}

// CampaignStats 统计活动各候选人得票
func (s *statisticsService) CampaignStats(ctx context.Context, campaignID string) (*CampaignStatistics, error) {
	if campaignID == "" {
		return nil, &ValidationError{Field: "campaign_id", Message: "is required"}
	}
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	var results []struct {
		CandidateID string
		VoteCount   int64
		AvgWeight   decimal.Decimal
	}
	err := s.validVotes(ctx, campaignID).
		Select("candidate_id, COUNT(*) AS vote_count, AVG(weight) AS avg_weight").
		Group("candidate_id").
		Order("vote_count DESC, candidate_id ASC").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign statistics: %w", err)
	}

	var uniqueVoters int64
	err = s.validVotes(ctx, campaignID).
		Distinct("voter_fingerprint").
		Count(&uniqueVoters).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count unique voters: %w", err)
	}

	stats := &CampaignStatistics{
		CampaignID:   campaignID,
		UniqueVoters: uniqueVoters,
		PerCandidate: make([]*CandidateStats, 0, len(results)),
	}
	for _, r := range results {
		stats.TotalVotes += r.VoteCount
	}
	for _, r := range results {
		stats.PerCandidate = append(stats.PerCandidate, &CandidateStats{
			CandidateID: r.CandidateID,
			VoteCount:   r.VoteCount,
			AvgWeight:   r.AvgWeight.Round(2).InexactFloat64(),
			Percentage:  percentage(r.VoteCount, stats.TotalVotes),
		})
	}

	return stats, nil
}

// VoteTimeline 按天(UTC)统计活动有效票数
func (s *statisticsService) VoteTimeline(ctx context.Context, campaignID string) ([]*VoteTimelinePoint, error) {
	if campaignID == "" {
		return nil, &ValidationError{Field: "campaign_id", Message: "is required"}
	}
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	votes, err := s.voteRepo.FindValidByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get votes: %w", err)
	}

	counts := make(map[string]int64)
	for _, vote := range votes {
		counts[vote.VotedAt.UTC().Format("2006-01-02")]++
	}

	points := make([]*VoteTimelinePoint, 0, len(counts))
	for date, count := range counts {
		points = append(points, &VoteTimelinePoint{Date: date, Count: count})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})

	return points, nil
}

// AppealStatistics 统计 [from, to] 内提交的申诉,零值时间表示不限
func (s *statisticsService) AppealStatistics(ctx context.Context, from, to time.Time) (*AppealStatistics, error) {
	filter := &repository.AppealFilter{}
	if !from.IsZero() {
		filter.StartTime = &from
	}
	if !to.IsZero() {
		filter.EndTime = &to
	}

	appeals, err := s.appealRepo.FindByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get appeals: %w", err)
	}

	stats := &AppealStatistics{
		Total:    int64(len(appeals)),
		ByStatus: make(map[model.AppealStatus]int64, len(model.AppealStatuses)),
		ByType:   make(map[model.AppealType]int64, len(model.AppealTypes)),
	}
	for _, status := range model.AppealStatuses {
		stats.ByStatus[status] = 0
	}
	for _, appealType := range model.AppealTypes {
		stats.ByType[appealType] = 0
	}

	now := s.clock.Now()
	var processed time.Duration
	var reviewed int64
	for _, appeal := range appeals {
		stats.ByStatus[appeal.Status]++
		stats.ByType[appeal.AppealType]++
		if appeal.IsOverdue(now) {
			stats.OverdueCount++
		}
		if d, ok := appeal.ProcessingTime(); ok {
			processed += d
			reviewed++
		}
	}

	stats.ApprovalRate = percentage(stats.ByStatus[model.AppealStatusApproved], stats.Total)
	stats.RejectionRate = percentage(stats.ByStatus[model.AppealStatusRejected], stats.Total)
	if reviewed > 0 {
		mean := processed / time.Duration(reviewed)
		stats.AverageProcessingHour = round2(mean.Hours())
		stats.AverageProcessingDay = round2(mean.Hours() / 24)
	}

	return stats, nil
}

// CountByStatus 按状态统计全部申诉
func (s *statisticsService) CountByStatus(ctx context.Context) (map[string]int64, error) {
	counts, err := s.appealRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count appeals: %w", err)
	}

	result := make(map[string]int64, len(model.AppealStatuses))
	for _, status := range model.AppealStatuses {
		result[string(status)] = counts[status]
	}
	return result, nil
}

// CountOverdue 统计超时未处理的申诉
func (s *statisticsService) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.appealRepo.CountOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue appeals: %w", err)
	}
	return count, nil
}

func (s *statisticsService) validVotes(ctx context.Context, campaignID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.VoteModel{}).
		Where("campaign_id = ? AND is_valid = ?", campaignID, true)
}

// percentage count*100/total 保留两位小数,total 为 0 时返回 0
func percentage(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(count * 100).
		DivRound(decimal.NewFromInt(total), 2).
		InexactFloat64()
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
