// Package testutil 提供各包测试共用的 SQLite 数据库与种子数据。
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mautops/promotion-vote/internal/config"
	"github.com/mautops/promotion-vote/internal/database"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB 创建一个已迁移的临时 SQLite 数据库
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { database.Close(db) })
	return db
}

// Date 构造 UTC 日期
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateCampaign 写入一个活动及其候选人
func CreateCampaign(t *testing.T, db *gorm.DB, id string, start, end time.Time, status model.CampaignStatus, candidates ...string) *model.CampaignModel {
	t.Helper()

	campaign := &model.CampaignModel{
		ID:        id,
		Title:     "晋升评选 " + id,
		StartDate: start,
		EndDate:   end,
		Status:    status,
	}
	require.NoError(t, db.Create(campaign).Error)

	for _, candidateID := range candidates {
		require.NoError(t, db.Create(&model.CandidateModel{
			ID:         candidateID,
			CampaignID: id,
			EmployeeID: "emp-" + candidateID,
		}).Error)
	}
	return campaign
}

// SetCampaignStatus 修改活动状态
func SetCampaignStatus(t *testing.T, db *gorm.DB, id string, status model.CampaignStatus) {
	t.Helper()
	require.NoError(t, db.Model(&model.CampaignModel{}).Where("id = ?", id).Update("status", status).Error)
}

// FixedClock 返回固定时间的时钟,可通过 Set 推进
type FixedClock struct {
	now time.Time
}

// NewFixedClock 创建固定时钟
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

// Now 当前时间
func (c *FixedClock) Now() time.Time {
	return c.now
}

// Set 设置当前时间
func (c *FixedClock) Set(now time.Time) {
	c.now = now
}
