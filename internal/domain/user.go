// Package domain contains entities without logic, just meta-data.
package domain

type (
	UserID    int64
	ServerID  int64
	ChannelID int64
)

// Status is the presence state a user advertises to friends.
type Status string

const (
	StatusOnline    Status = "online"
	StatusIdle      Status = "idle"
	StatusDND       Status = "dnd"
	StatusInvisible Status = "invisible"
	StatusOffline   Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDND, StatusInvisible, StatusOffline:
		return true
	}
	return false
}

// Wire maps a status to what friends are allowed to see.
// Invisible users look offline on the wire, always.
func (s Status) Wire() Status {
	if s == StatusInvisible {
		return StatusOffline
	}
	return s
}

type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"displayName"`
}
