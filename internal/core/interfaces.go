// Package core defines the seams between the gateway's state components and
// the outside world: the transport connection and the backend collaborators.
package core

import (
	"context"

	"github.com/voxhall/gateway/internal/domain"
)

// Frame is an encoded wire payload (one JSON event).
type Frame []byte

// ConnID identifies one transport connection. A user may reconnect and get a
// new ConnID while stale state still references the old one.
type ConnID string

// SignalConnection abstracts the client-facing messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PersistenceService is the CRUD backend that owns servers, channels, and
// friendships. The gateway only reads membership facts from it.
type PersistenceService interface {
	// FriendsOf returns the user IDs adjacent to userID in the friend graph.
	FriendsOf(ctx context.Context, userID domain.UserID) ([]domain.UserID, error)
	// IsServerMember reports whether userID belongs to serverID.
	IsServerMember(ctx context.Context, userID domain.UserID, serverID domain.ServerID) (bool, error)
	// ServerOfChannel resolves a channel to its parent server.
	// Returns *domain.NotFoundError if the channel no longer exists.
	ServerOfChannel(ctx context.Context, channelID domain.ChannelID) (domain.ServerID, error)
}

// AuthService verifies bearer tokens at connect time.
type AuthService interface {
	VerifyToken(ctx context.Context, token string) (domain.User, error)
}
