package mapping

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/apiclient"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
)

func newUpdateFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "update"}
	f := cmd.Flags()
	f.String("source-community", "", "")
	f.String("source-role", "", "")
	f.String("target-community", "", "")
	f.String("target-role", "", "")
	f.String("description", "", "")
	require.NoError(t, f.Parse(args))
	return cmd
}

func TestBuildUpdate(t *testing.T) {
	t.Run("OnlyChangedFields", func(t *testing.T) {
		upd, err := buildUpdate(newUpdateFlags(t, "--target-role", "444", "--description", ""))
		require.NoError(t, err)

		require.NotNil(t, upd.TargetRoleID)
		assert.Equal(t, uint64(444), *upd.TargetRoleID)
		require.NotNil(t, upd.Description)
		assert.Empty(t, *upd.Description)
		assert.Nil(t, upd.SourceCommunityID)
		assert.Nil(t, upd.SourceRoleID)
		assert.Nil(t, upd.TargetCommunityID)
		assert.Nil(t, upd.Enabled)
	})

	t.Run("NothingChanged", func(t *testing.T) {
		_, err := buildUpdate(newUpdateFlags(t))
		assert.Error(t, err)
	})

	t.Run("InvalidID", func(t *testing.T) {
		_, err := buildUpdate(newUpdateFlags(t, "--source-role", "abc"))
		assert.Error(t, err)
	})
}

func TestMappingList(t *testing.T) {
	l := mappingList{
		{ID: "a", SourceCommunityID: 1, SourceRoleID: 2, TargetRoleID: 3, Enabled: true},
		{ID: "b", SourceCommunityID: 1, SourceRoleID: 4, TargetRoleID: 5, Description: "officer"},
	}
	assert.Len(t, l.Headers(), 6)

	rows := l.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "1", "2", "3", "yes", "-"}, rows[0])
	assert.Equal(t, []string{"b", "1", "4", "5", "no", "officer"}, rows[1])
}

func TestMappingPairs(t *testing.T) {
	m := &apiclient.Mapping{ID: "a", TargetCommunityID: 9, CreatedAt: time.Now()}
	pairs := mappingPairs(m)
	assert.Equal(t, [2]string{"ID", "a"}, pairs[0])
	assert.Equal(t, [2]string{"Target community", "9"}, pairs[3])
}

func TestStatsPairs(t *testing.T) {
	pairs := statsPairs(&mapping.Stats{Total: 3, Enabled: 2, Disabled: 1})
	assert.Equal(t, [2]string{"Total", "3"}, pairs[0])
	assert.Equal(t, [2]string{"Disabled", "1"}, pairs[2])
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range Cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"list", "get", "add", "update", "remove", "enable", "disable", "import", "stats"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
