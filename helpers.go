package patrolkit

import (
	"fmt"
	"strings"
)

// Team names as the API reports them.
const (
	TeamCivilian = "Civilian"
	TeamPolice   = "Police"
	TeamSheriff  = "Sheriff"
	TeamFire     = "Fire"
	TeamDOT      = "DOT"
	TeamJail     = "Jail"
)

// FindPlayerByName returns the first player whose display name matches,
// case-insensitively.
func FindPlayerByName(players []Player, name string) (Player, bool) {
	for _, p := range players {
		if strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return Player{}, false
}

// FindPlayerByID returns the player with the given user id.
func FindPlayerByID(players []Player, id int64) (Player, bool) {
	for _, p := range players {
		if p.ID() == id {
			return p, true
		}
	}
	return Player{}, false
}

// FilterByTeam returns the players on one team, case-insensitively.
func FilterByTeam(players []Player, team string) []Player {
	var out []Player
	for _, p := range players {
		if strings.EqualFold(p.Team, team) {
			out = append(out, p)
		}
	}
	return out
}

// StaffOnline returns the players whose permission level is above Normal.
func StaffOnline(players []Player) []Player {
	var out []Player
	for _, p := range players {
		if p.Permission != "" && !strings.EqualFold(p.Permission, "Normal") {
			out = append(out, p)
		}
	}
	return out
}

// Command-string builders for RunCommand. They only format; validation is
// the server's job.

// HintCommand shows a hint banner to everyone.
func HintCommand(message string) string { return ":h " + message }

// AnnounceCommand sends a message popup to everyone.
func AnnounceCommand(message string) string { return ":m " + message }

// PMCommand sends a private message to one player.
func PMCommand(player, message string) string {
	return fmt.Sprintf(":pm %s %s", player, message)
}

// KickCommand removes a player from the server.
func KickCommand(player string) string { return ":kick " + player }

// BanCommand bans a player from the server.
func BanCommand(player string) string { return ":ban " + player }

// UnbanCommand lifts a ban.
func UnbanCommand(player string) string { return ":unban " + player }

// WeatherCommand sets the weather, e.g. "clear", "rain", "fog".
func WeatherCommand(weather string) string { return ":weather " + weather }

// TimeCommand sets the in-game hour (0-23).
func TimeCommand(hour int) string { return fmt.Sprintf(":time %d", hour) }
