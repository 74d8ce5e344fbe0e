package domain

// VoiceMember is a user's presence record inside one voice channel.
// Value type: flag changes replace the whole record, identity is UserID.
type VoiceMember struct {
	UserID      UserID `json:"userId"`
	DisplayName string `json:"displayName"`
	HasCamera   bool   `json:"hasCamera"`
	IsMuted     bool   `json:"isMuted"`
}

// NewVoiceMember avoids raw literals in adapters and keeps construction obvious.
func NewVoiceMember(user User) VoiceMember {
	return VoiceMember{UserID: user.ID, DisplayName: user.DisplayName}
}

func (m VoiceMember) WithCamera(enabled bool) VoiceMember {
	m.HasCamera = enabled
	return m
}

func (m VoiceMember) WithMuted(muted bool) VoiceMember {
	m.IsMuted = muted
	return m
}
