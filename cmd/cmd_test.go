package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mautops/promotion-vote/internal/config"
	"github.com/mautops/promotion-vote/internal/database"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig 写入使用临时 SQLite 的配置文件
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")
	cfgPath := filepath.Join(dir, "config.yaml")

	content := fmt.Sprintf(`
database:
  driver: sqlite
  path: %s
log:
  level: error
vote:
  token_salt: cli-salt
`, dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath, dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := GetRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"server", "migrate", "audit", "appeals"} {
		assert.True(t, names[name], "missing command %s", name)
	}
}

func TestMigrateAuditAndOverdue(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)

	out, err := run(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations completed")

	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: dbPath})
	require.NoError(t, err)
	testutil.CreateCampaign(t, db, "c1", testutil.Date(2024, 1, 1), testutil.Date(2024, 1, 10), model.CampaignStatusClosed, "A")
	database.Close(db)

	out, err = run(t, "--config", cfgPath, "audit", "c1", "--remediate")
	require.NoError(t, err)

	var result struct {
		Report struct {
			CampaignID string `json:"campaign_id"`
			IsClean    bool   `json:"is_clean"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "c1", result.Report.CampaignID)
	assert.True(t, result.Report.IsClean)

	_, err = run(t, "--config", cfgPath, "audit", "missing")
	assert.Error(t, err)

	out, err = run(t, "--config", cfgPath, "appeals", "overdue")
	require.NoError(t, err)
	var appeals []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &appeals))
	assert.Empty(t, appeals)
}

func TestAuditRequiresCampaignID(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := run(t, "--config", cfgPath, "audit")
	assert.Error(t, err)
}

func TestEnvFileOverridesConfig(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	envPath := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("APP_DATABASE_DRIVER=mysql\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("APP_DATABASE_DRIVER") })

	_, err := run(t, "--config", cfgPath, "--env-file", envPath, "migrate")
	assert.ErrorContains(t, err, "unsupported database driver")

	os.Unsetenv("APP_DATABASE_DRIVER")
	_, err = run(t, "--config", cfgPath, "--env-file", filepath.Join(t.TempDir(), "absent.env"), "migrate")
	assert.NoError(t, err)
}
