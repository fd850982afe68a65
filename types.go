package patrolkit

import (
	"strconv"
	"strings"
)

// Player is one member of the server, as reported by /server/players. The
// Player field is the combined "Name:Id" tag the API uses everywhere.
type Player struct {
	Player     string `json:"Player"`
	Permission string `json:"Permission"`
	Callsign   string `json:"Callsign,omitempty"`
	Team       string `json:"Team"`
}

// Name is the display-name half of the combined player tag.
func (p Player) Name() string {
	name, _ := SplitPlayerTag(p.Player)
	return name
}

// ID is the numeric half of the combined player tag, 0 when absent.
func (p Player) ID() int64 {
	_, id := SplitPlayerTag(p.Player)
	return id
}

// JoinEntry is one join/leave record from /server/joinlogs, newest first.
type JoinEntry struct {
	Join      bool   `json:"Join"`
	Timestamp int64  `json:"Timestamp"`
	Player    string `json:"Player"`
}

// KillEntry is one kill record from /server/killlogs.
type KillEntry struct {
	Killed    string `json:"Killed"`
	Timestamp int64  `json:"Timestamp"`
	Killer    string `json:"Killer"`
}

// CommandEntry is one executed command from /server/commandlogs.
type CommandEntry struct {
	Player    string `json:"Player"`
	Timestamp int64  `json:"Timestamp"`
	Command   string `json:"Command"`
}

// ModCallEntry is one moderator call from /server/modcalls. Moderator is
// empty while the call is unanswered.
type ModCallEntry struct {
	Caller    string `json:"Caller"`
	Moderator string `json:"Moderator,omitempty"`
	Timestamp int64  `json:"Timestamp"`
}

// Vehicle is one spawned vehicle from /server/vehicles.
type Vehicle struct {
	Texture string `json:"Texture,omitempty"`
	Name    string `json:"Name"`
	Owner   string `json:"Owner"`
}

// ServerStatus is the /server metadata snapshot.
type ServerStatus struct {
	Name           string  `json:"Name"`
	OwnerID        int64   `json:"OwnerId"`
	CoOwnerIDs     []int64 `json:"CoOwnerIds"`
	CurrentPlayers int     `json:"CurrentPlayers"`
	MaxPlayers     int     `json:"MaxPlayers"`
	JoinKey        string  `json:"JoinKey"`
	AccVerifiedReq string  `json:"AccVerifiedReq"`
	TeamBalance    bool    `json:"TeamBalance"`
}

// StaffRoster is the /server/staff response. Admins and Mods map user ids
// (as decimal strings) to display names.
type StaffRoster struct {
	CoOwners []int64           `json:"CoOwners"`
	Admins   map[string]string `json:"Admins"`
	Mods     map[string]string `json:"Mods"`
}

// SplitPlayerTag splits the API's combined "Name:Id" form. The id is 0 when
// missing or malformed.
func SplitPlayerTag(tag string) (string, int64) {
	name, idText, found := strings.Cut(tag, ":")
	if !found {
		return tag, 0
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return name, 0
	}
	return name, id
}
