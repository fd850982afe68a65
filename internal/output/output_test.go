package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/patrolkit/patrolkit"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat(" JSON ")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestPlayersTable(t *testing.T) {
	rendered := PlayersTable([]patrolkit.Player{
		{Player: "Alice:1", Permission: "Server Owner", Team: "Police", Callsign: "1A-01"},
		{Player: "Bob:2", Permission: "Normal", Team: "Civilian"},
	})
	require.Contains(t, rendered, "Alice")
	require.Contains(t, rendered, "1A-01")
	require.Contains(t, rendered, "2 ONLINE")
}

func TestBansTableSortsByName(t *testing.T) {
	rendered := BansTable(map[string]string{"2": "Zed", "1": "Amy"})
	require.Less(t, strings.Index(rendered, "Amy"), strings.Index(rendered, "Zed"))
}

func TestStatusTable(t *testing.T) {
	rendered := StatusTable(&patrolkit.ServerStatus{
		Name:           "Liberty One",
		OwnerID:        11,
		CoOwnerIDs:     []int64{12, 13},
		CurrentPlayers: 2,
		MaxPlayers:     40,
		JoinKey:        "LbOne",
	})
	require.Contains(t, rendered, "Liberty One")
	require.Contains(t, rendered, "2/40")
	require.Contains(t, rendered, "12, 13")

	require.Empty(t, StatusTable(nil))
}

func TestJoinLogTable(t *testing.T) {
	rendered := JoinLogTable([]patrolkit.JoinEntry{
		{Join: true, Timestamp: 1700000000, Player: "Bob:2"},
		{Join: false, Timestamp: 1700000100, Player: "Bob:2"},
	})
	require.Contains(t, rendered, "joined")
	require.Contains(t, rendered, "left")
	require.Contains(t, rendered, "2023-11-14")
}

func TestRenderJSON(t *testing.T) {
	rendered, err := RenderJSON(map[string]int{"a": 1})
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, rendered)
}
