package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/apiclient"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/batch"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/config"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/reconcile"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/trigger"
)

func TestRuntimeConfigFromDefaults(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Platform.TargetCommunityID = 42
	cfg.Mappings.File = "/etc/rolesync/mappings.json"
	cfg.Mappings.Watch = true

	rc := runtimeConfig(cfg)

	assert.Equal(t, uint64(42), rc.TargetCommunity)
	assert.True(t, rc.AutoSyncDefault)
	assert.Equal(t, reconcile.DefaultSourceConcurrency, rc.Reconcile.SourceConcurrency)
	assert.Equal(t, trigger.DefaultDebounceDelay, rc.Debounce.Delay)
	assert.Equal(t, trigger.DefaultDrainInterval, rc.Debounce.DrainInterval)
	assert.True(t, rc.Batch.Enabled)
	assert.Equal(t, batch.DefaultFlushThreshold, rc.Batch.FlushThreshold)
	assert.Equal(t, "/etc/rolesync/mappings.json", rc.MappingFile)
	assert.True(t, rc.WatchMappings)
	assert.Equal(t, cfg.ShutdownTimeout, rc.ShutdownTimeout)
}

func TestRuntimeConfigBatchDisabled(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Sync.BatchEnabled = false
	assert.False(t, runtimeConfig(cfg).Batch.Enabled)
}

func TestGetConfigSource(t *testing.T) {
	assert.Equal(t, "/tmp/x.yaml", getConfigSource("/tmp/x.yaml"))

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.Equal(t, "defaults", getConfigSource(""))
}

func TestRootCommandTree(t *testing.T) {
	root := GetRootCmd()
	for _, name := range []string{
		"start", "token", "login", "logout", "status", "reconcile", "sessions",
		"sweep", "queue", "auto-sync", "stats", "config", "mapping", "version", "completion",
	} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestResultPairsDryRunLabels(t *testing.T) {
	res := &apiclient.SyncResult{DryRun: true}
	labels := map[string]bool{}
	for _, p := range resultPairs(res) {
		labels[p[0]] = true
	}
	assert.True(t, labels["Would add"])
	assert.True(t, labels["Would remove"])
}
