package output

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/patrolkit/patrolkit"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

// StatusTable renders the server metadata snapshot.
func StatusTable(status *patrolkit.ServerStatus) string {
	if status == nil {
		return ""
	}

	t := newTable()
	t.AppendRow(table.Row{"Name", status.Name})
	t.AppendRow(table.Row{"Join Key", status.JoinKey})
	t.AppendRow(table.Row{"Players", fmt.Sprintf("%d/%d", status.CurrentPlayers, status.MaxPlayers)})
	t.AppendRow(table.Row{"Owner", strconv.FormatInt(status.OwnerID, 10)})
	t.AppendRow(table.Row{"Co-Owners", formatIDs(status.CoOwnerIDs)})
	t.AppendRow(table.Row{"Verified Accounts", status.AccVerifiedReq})
	t.AppendRow(table.Row{"Team Balance", strconv.FormatBool(status.TeamBalance)})
	return t.Render()
}

// PlayersTable renders the in-server roster.
func PlayersTable(players []patrolkit.Player) string {
	t := newTable()
	t.AppendHeader(table.Row{"Name", "ID", "Team", "Callsign", "Permission"})
	for _, p := range players {
		t.AppendRow(table.Row{p.Name(), p.ID(), p.Team, p.Callsign, p.Permission})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d online", len(players))})
	return t.Render()
}

// QueueTable renders the join queue.
func QueueTable(ids []int64) string {
	t := newTable()
	t.AppendHeader(table.Row{"#", "Player ID"})
	for i, id := range ids {
		t.AppendRow(table.Row{i + 1, id})
	}
	return t.Render()
}

// BansTable renders the ban list sorted by player name.
func BansTable(bans map[string]string) string {
	type ban struct{ id, name string }
	sorted := make([]ban, 0, len(bans))
	for id, name := range bans {
		sorted = append(sorted, ban{id, name})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })

	t := newTable()
	t.AppendHeader(table.Row{"Name", "Player ID"})
	for _, b := range sorted {
		t.AppendRow(table.Row{b.name, b.id})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d banned", len(bans))})
	return t.Render()
}

// StaffTable renders the staff roster grouped by role.
func StaffTable(roster *patrolkit.StaffRoster) string {
	if roster == nil {
		return ""
	}

	t := newTable()
	t.AppendHeader(table.Row{"Role", "Name", "Player ID"})
	for _, id := range roster.CoOwners {
		t.AppendRow(table.Row{"Co-Owner", "", id})
	}
	appendRoleRows(t, "Admin", roster.Admins)
	appendRoleRows(t, "Moderator", roster.Mods)
	return t.Render()
}

func appendRoleRows(t table.Writer, role string, members map[string]string) {
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		t.AppendRow(table.Row{role, members[id], id})
	}
}

// VehiclesTable renders spawned vehicles.
func VehiclesTable(vehicles []patrolkit.Vehicle) string {
	t := newTable()
	t.AppendHeader(table.Row{"Vehicle", "Owner", "Livery"})
	for _, v := range vehicles {
		t.AppendRow(table.Row{v.Name, v.Owner, v.Texture})
	}
	return t.Render()
}

// JoinLogTable renders join/leave records.
func JoinLogTable(entries []patrolkit.JoinEntry) string {
	t := newTable()
	t.AppendHeader(table.Row{"Time", "Player", "Action"})
	for _, e := range entries {
		action := "left"
		if e.Join {
			action = "joined"
		}
		t.AppendRow(table.Row{formatTimestamp(e.Timestamp), e.Player, action})
	}
	return t.Render()
}

// KillLogTable renders kill records.
func KillLogTable(entries []patrolkit.KillEntry) string {
	t := newTable()
	t.AppendHeader(table.Row{"Time", "Killer", "Killed"})
	for _, e := range entries {
		t.AppendRow(table.Row{formatTimestamp(e.Timestamp), e.Killer, e.Killed})
	}
	return t.Render()
}

// CommandLogTable renders executed-command records.
func CommandLogTable(entries []patrolkit.CommandEntry) string {
	t := newTable()
	t.AppendHeader(table.Row{"Time", "Player", "Command"})
	for _, e := range entries {
		t.AppendRow(table.Row{formatTimestamp(e.Timestamp), e.Player, e.Command})
	}
	return t.Render()
}

// ModCallTable renders moderator-call records.
func ModCallTable(entries []patrolkit.ModCallEntry) string {
	t := newTable()
	t.AppendHeader(table.Row{"Time", "Caller", "Moderator"})
	for _, e := range entries {
		moderator := e.Moderator
		if moderator == "" {
			moderator = "(unanswered)"
		}
		t.AppendRow(table.Row{formatTimestamp(e.Timestamp), e.Caller, moderator})
	}
	return t.Render()
}

func formatTimestamp(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04:05")
}

func formatIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += strconv.FormatInt(id, 10)
	}
	return out
}
