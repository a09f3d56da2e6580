package mapping

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

const sampleFile = `{
  "mappings": [
    {
      "id": "vip",
      "source_server_id": "1001",
      "source_role_id": "11",
      "target_server_id": "9000",
      "target_role_id": 501,
      "description": "VIP on the partner server",
      "enabled": true
    },
    {
      "id": "staff",
      "source_server_id": "1002",
      "source_role_id": "21",
      "target_server_id": "9000",
      "target_role_id": "502",
      "enabled": false
    }
  ]
}`

func TestParse(t *testing.T) {
	got, err := Parse([]byte(sampleFile))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "vip", got[0].ID)
	assert.Equal(t, uint64(1001), got[0].SourceCommunityID)
	assert.Equal(t, uint64(501), got[0].TargetRoleID)
	assert.True(t, got[0].Enabled)
	assert.False(t, got[1].Enabled)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  error
	}{
		{"duplicate id", `{"mappings":[
			{"id":"a","source_server_id":"1","source_role_id":"2","target_server_id":"3","target_role_id":"4","enabled":true},
			{"id":"a","source_server_id":"5","source_role_id":"6","target_server_id":"3","target_role_id":"7","enabled":true}]}`,
			models.ErrDuplicateMapping},
		{"missing role", `{"mappings":[{"id":"a","source_server_id":"1","source_role_id":"0","target_server_id":"3","target_role_id":"4"}]}`,
			models.ErrInvalidMapping},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := Parse([]byte(`{"mappings":[{"id":"a","source_server_id":"abc"}]}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"mappings":[{"id":"a","source_server_id":"9223372036854775808"}]}`))
	assert.ErrorContains(t, err, "invalid snowflake", "ids above the signed 64-bit range do not fit a bigint column")
}

func TestEncodeWritesStringIDs(t *testing.T) {
	data, err := Encode([]*models.RoleMapping{mapping("m1", srcA, 11, 501)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source_server_id": "1001"`)
	assert.Contains(t, string(data), `"target_role_id": "501"`)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(501), back[0].TargetRoleID)
}

func TestWriteExampleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "mappings.json")
	require.NoError(t, WriteExampleFile(path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Enabled, "example mapping ships disabled")
}

func TestFileWatcherReimports(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mappings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mappings":[]}`), 0644))

	s := NewStore(nil)
	w := NewFileWatcher(path, s, 20*time.Millisecond)
	w.reloaded = make(chan error, 4)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0644))

	select {
	case err := <-w.reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload the mapping file")
	}

	assert.True(t, s.IsTargetRole(501))
	assert.False(t, s.IsTargetRole(502))
	assert.Len(t, s.List(), 2)
}

func TestFileWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	w := NewFileWatcher(path, NewStore(nil), 0)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
