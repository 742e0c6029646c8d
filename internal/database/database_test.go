package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mautops/promotion-vote/internal/config"
	"github.com/mautops/promotion-vote/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn := database.BuildDSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "vote",
		Password: "secret",
		DBName:   "promotion_vote",
		SSLMode:  "disable",
	})
	assert.Equal(t, "host=db port=5432 user=vote password=secret dbname=promotion_vote sslmode=disable", dsn)
}

func TestGetPoolConfig(t *testing.T) {
	pool := database.GetPoolConfig(config.DatabaseConfig{Driver: "postgres"})
	assert.Equal(t, 10, pool.MaxIdleConns)
	assert.Equal(t, 100, pool.MaxOpenConns)

	pool = database.GetPoolConfig(config.DatabaseConfig{Driver: "sqlite", MaxOpenConns: 50})
	assert.Equal(t, 1, pool.MaxOpenConns)
	assert.Equal(t, 1, pool.MaxIdleConns)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := database.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "migrate.db"),
	})
	require.NoError(t, err)
	defer database.Close(db)

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Migrate(db))

	for _, table := range []string{"campaigns", "campaign_candidates", "votes", "vote_appeals", "appeal_state_history", "events", "audit_logs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("votes", database.UniqueVoteIndex))

	assert.NoError(t, database.CheckHealth(context.Background(), db))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := database.Open(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
