package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/repository"
)

// Campaign 外部活动注册表返回的只读视图
type Campaign struct {
	ID        string
	StartDate time.Time
	EndDate   time.Time
	Status    model.CampaignStatus
}

// CampaignRegistry 活动注册表(只读)
type CampaignRegistry interface {
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
}

// CandidateRegistry 候选人注册表(只读)
type CandidateRegistry interface {
	CandidateExists(ctx context.Context, campaignID, candidateID string) (bool, error)
}

// EventPublisher 领域事件发布者,投递由订阅方负责
type EventPublisher interface {
	Publish(ctx context.Context, evt *model.DomainEvent) error
}

// Clock 时间来源
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock 返回系统 UTC 时钟
func SystemClock() Clock {
	return systemClock{}
}

// Registry 基于数据库只读表的活动与候选人注册表
type Registry struct {
	repo repository.CampaignRepository
}

var (
	_ CampaignRegistry  = (*Registry)(nil)
	_ CandidateRegistry = (*Registry)(nil)
)

// NewRegistry 创建基于 campaigns / campaign_candidates 表的注册表
func NewRegistry(repo repository.CampaignRepository) *Registry {
	return &Registry{repo: repo}
}

// GetCampaign 获取活动
func (r *Registry) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	campaign, err := r.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &Campaign{
		ID:        campaign.ID,
		StartDate: campaign.StartDate.UTC(),
		EndDate:   campaign.EndDate.UTC(),
		Status:    campaign.Status,
	}, nil
}

// CandidateExists 候选人是否属于活动
func (r *Registry) CandidateExists(ctx context.Context, campaignID, candidateID string) (bool, error) {
	exists, err := r.repo.CandidateExists(ctx, campaignID, candidateID)
	if err != nil {
		return false, fmt.Errorf("failed to check candidate: %w", err)
	}
	return exists, nil
}
