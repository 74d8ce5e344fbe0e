package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/core"
	"github.com/voxhall/gateway/internal/domain"
	"github.com/voxhall/gateway/internal/gateway"
)

// Presence fans status changes out to a user's online friends. It owns no
// state: friendships come from the persistence service, delivery targets from
// the registry. Callers can only announce their own status; there is no way
// to name another user here, which is the whole authorization model.
type Presence struct {
	Registry *Registry
	Store    core.PersistenceService
}

// BroadcastStatus sends one friend-presence event per online friend of
// userID. Invisible is mapped to offline before anything touches the wire.
func (p *Presence) BroadcastStatus(ctx context.Context, userID domain.UserID, status domain.Status) error {
	friends, err := p.Store.FriendsOf(ctx, userID)
	if err != nil {
		return fmt.Errorf("presence: resolve friends of %d: %w", userID, err)
	}

	frame := gateway.Encode(gateway.FriendPresence{
		Type:   gateway.EvFriendPresence,
		UserID: userID,
		Status: status.Wire(),
	})

	sent := 0
	for _, friendID := range friends {
		sess, ok := p.Registry.Lookup(friendID)
		if !ok {
			continue
		}
		if err := sess.Conn.TrySend(frame); err == nil {
			sent++
		}
	}
	log.Debug().Str("module", "app.presence").Int64("user", int64(userID)).
		Str("status", string(status.Wire())).Int("sent", sent).Msg("presence fanout")
	return nil
}
