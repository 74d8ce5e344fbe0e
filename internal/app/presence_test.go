package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/gateway/internal/domain"
)

func TestPresenceFanoutToOnlineFriends(t *testing.T) {
	reg := NewRegistry()
	store := newFakeStore()
	store.friends[1] = []domain.UserID{2, 3, 4}

	bob := &fakeConn{}
	reg.Register(domain.User{ID: 2}, "c2", bob)
	// Users 3 and 4 are offline; user 9 is online but not a friend.
	stranger := &fakeConn{}
	reg.Register(domain.User{ID: 9}, "c9", stranger)

	p := &Presence{Registry: reg, Store: store}
	require.NoError(t, p.BroadcastStatus(context.Background(), 1, domain.StatusOnline))

	evs := bob.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, "friend-presence", evs[0]["type"])
	assert.Equal(t, float64(1), evs[0]["userId"])
	assert.Equal(t, "online", evs[0]["status"])

	assert.Empty(t, stranger.events(t))
}

func TestPresenceInvisibleNeverOnTheWire(t *testing.T) {
	reg := NewRegistry()
	store := newFakeStore()
	store.friends[1] = []domain.UserID{2}

	bob := &fakeConn{}
	reg.Register(domain.User{ID: 2}, "c2", bob)

	p := &Presence{Registry: reg, Store: store}
	require.NoError(t, p.BroadcastStatus(context.Background(), 1, domain.StatusInvisible))

	evs := bob.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, "offline", evs[0]["status"])
}

func TestPresenceStoreFailurePropagates(t *testing.T) {
	reg := NewRegistry()
	store := newFakeStore()
	store.err = errors.New("backend down")

	p := &Presence{Registry: reg, Store: store}
	assert.Error(t, p.BroadcastStatus(context.Background(), 1, domain.StatusOnline))
}
