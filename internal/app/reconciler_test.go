package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/gateway/internal/core"
	"github.com/voxhall/gateway/internal/domain"
)

type reconcilerFixture struct {
	reg   *Registry
	hub   *Hub
	voice *VoiceState
	rec   *Reconciler
}

func newReconcilerFixture() *reconcilerFixture {
	reg := NewRegistry()
	hub := NewHub()
	voice := NewVoiceState()
	presence := &Presence{Registry: reg, Store: newFakeStore()}
	return &reconcilerFixture{
		reg:   reg,
		hub:   hub,
		voice: voice,
		rec:   NewReconciler(reg, hub, voice, presence, time.Second, time.Minute),
	}
}

// connect registers a live user and subscribes them to a voice channel the
// way the orchestrator would.
func (f *reconcilerFixture) connect(u domain.UserID, connID core.ConnID, ch domain.ChannelID) *fakeConn {
	conn := &fakeConn{}
	f.reg.Register(domain.User{ID: u}, connID, conn)
	f.voice.Join(member(u), ch)
	f.hub.Join(VoiceGroup(ch), connID, conn)
	return conn
}

func TestReconcilerNeverRemovesLiveMembers(t *testing.T) {
	f := newReconcilerFixture()
	f.connect(1, "c1", 7)
	f.connect(2, "c2", 7)

	for i := 0; i < 3; i++ {
		f.rec.Sweep(context.Background())
	}

	assert.Equal(t, 2, f.voice.MemberCount(7))
	assert.True(t, f.hub.Contains(VoiceGroup(7), "c1"))
	assert.True(t, f.hub.Contains(VoiceGroup(7), "c2"))
}

func TestReconcilerPurgesDeadMemberAfterOneMissedCycle(t *testing.T) {
	f := newReconcilerFixture()
	observer := f.connect(1, "c1", 7)

	// User 2 is tracked in voice state but has no session at all.
	f.voice.Join(member(2), 7)

	f.rec.Sweep(context.Background())
	// First observation: still within grace.
	assert.Equal(t, 2, f.voice.MemberCount(7))
	assert.NotContains(t, observer.eventTypes(t), "voice-user-left")

	f.rec.Sweep(context.Background())
	assert.Equal(t, 1, f.voice.MemberCount(7))

	evs := observer.events(t)
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, "voice-user-left", last["type"])
	assert.Equal(t, float64(2), last["userId"])
	assert.Equal(t, false, last["graceful"])
}

func TestReconcilerRestoresLiveMemberFromTransportGroup(t *testing.T) {
	f := newReconcilerFixture()
	conn := &fakeConn{}
	f.reg.Register(domain.User{ID: 1, DisplayName: "ada"}, "c1", conn)

	// Present in the broadcast group, absent from tracked state: the live
	// transport membership is the truth.
	f.connect(2, "c2", 7)
	f.hub.Join(VoiceGroup(7), "c1", conn)

	f.rec.Sweep(context.Background())

	ch, ok := f.voice.ChannelOf(1)
	require.True(t, ok)
	assert.Equal(t, domain.ChannelID(7), ch)
	m, ok := f.voice.Member(1, 7)
	require.True(t, ok)
	assert.Equal(t, "ada", m.DisplayName)
}

func TestReconcilerPurgesStaleConnsFromGroup(t *testing.T) {
	f := newReconcilerFixture()
	f.connect(1, "c1", 7)

	// A connection nobody owns anymore lingers in the voice group.
	f.hub.Join(VoiceGroup(7), "dead-conn", &fakeConn{})

	f.rec.Sweep(context.Background())
	assert.False(t, f.hub.Contains(VoiceGroup(7), "dead-conn"))
	assert.True(t, f.hub.Contains(VoiceGroup(7), "c1"))
}

func TestReconcilerMergesPhantomDuplicate(t *testing.T) {
	f := newReconcilerFixture()
	conn := f.connect(1, "c1", 7)
	f.connect(2, "c2", 9)

	// User 1's connection also lingers in channel 9's group.
	f.hub.Join(VoiceGroup(9), "c1", conn)

	f.rec.Sweep(context.Background())

	assert.False(t, f.hub.Contains(VoiceGroup(9), "c1"))
	ch, _ := f.voice.ChannelOf(1)
	assert.Equal(t, domain.ChannelID(7), ch)
}

func TestReconcilerRestoresMissingSubscription(t *testing.T) {
	f := newReconcilerFixture()
	conn := &fakeConn{}
	f.reg.Register(domain.User{ID: 1}, "c1", conn)
	f.voice.Join(member(1), 7)
	// Subscription never made it to the hub (crashed mid-join).

	f.rec.Sweep(context.Background())
	assert.True(t, f.hub.Contains(VoiceGroup(7), "c1"))
	assert.Equal(t, 1, f.voice.MemberCount(7))
}

func TestReconcilerFlushesSilentDeparture(t *testing.T) {
	f := newReconcilerFixture()
	observer := f.connect(1, "c1", 7)
	f.connect(2, "c2", 7)

	// User 2 drops without a leave: silent cleanup, no broadcast yet.
	f.reg.Evict(2, "c2")
	f.hub.LeaveAll("c2")
	f.voice.Depart(2)
	assert.NotContains(t, observer.eventTypes(t), "voice-user-left")

	f.rec.Sweep(context.Background())
	assert.NotContains(t, observer.eventTypes(t), "voice-user-left")

	f.rec.Sweep(context.Background())
	types := observer.eventTypes(t)
	assert.Contains(t, types, "voice-user-left")
	assert.Empty(t, f.voice.SilentDepartures())
}

func TestReconcilerExpiresIdleSessions(t *testing.T) {
	f := newReconcilerFixture()
	observer := f.connect(1, "c1", 7)
	conn := f.connect(2, "c2", 7)

	f.reg.mu.Lock()
	f.reg.byUser[2].LastSeen = time.Now().Add(-2 * time.Minute)
	f.reg.mu.Unlock()

	f.rec.Sweep(context.Background())

	assert.True(t, conn.isClosed())
	_, ok := f.reg.Lookup(2)
	assert.False(t, ok)
	// Voice cleanup is silent, like any network-class disconnect.
	assert.Equal(t, 1, f.voice.MemberCount(7))
	assert.NotContains(t, observer.eventTypes(t), "voice-user-left")
}
