package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxhall/gateway/internal/core"
	"github.com/voxhall/gateway/internal/domain"
)

// fakeConn captures every frame sent to it.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// events decodes every captured frame into a generic map.
func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) eventTypes(t *testing.T) []string {
	t.Helper()
	evs := c.events(t)
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev["type"].(string))
	}
	return out
}

// fakeStore is an in-memory persistence collaborator.
type fakeStore struct {
	friends  map[domain.UserID][]domain.UserID
	members  map[domain.ServerID]map[domain.UserID]bool
	channels map[domain.ChannelID]domain.ServerID
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		friends:  make(map[domain.UserID][]domain.UserID),
		members:  make(map[domain.ServerID]map[domain.UserID]bool),
		channels: make(map[domain.ChannelID]domain.ServerID),
	}
}

func (s *fakeStore) FriendsOf(_ context.Context, userID domain.UserID) ([]domain.UserID, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.friends[userID], nil
}

func (s *fakeStore) IsServerMember(_ context.Context, userID domain.UserID, serverID domain.ServerID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.members[serverID][userID], nil
}

func (s *fakeStore) ServerOfChannel(_ context.Context, channelID domain.ChannelID) (domain.ServerID, error) {
	if s.err != nil {
		return 0, s.err
	}
	serverID, ok := s.channels[channelID]
	if !ok {
		return 0, &domain.NotFoundError{Resource: "channel", ID: int64(channelID)}
	}
	return serverID, nil
}
