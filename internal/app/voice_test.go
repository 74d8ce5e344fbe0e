package app

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/gateway/internal/domain"
)

func member(id domain.UserID) domain.VoiceMember {
	return domain.VoiceMember{UserID: id, DisplayName: "user"}
}

func TestVoiceJoinIdempotent(t *testing.T) {
	v := NewVoiceState()

	res := v.Join(member(1), 7)
	assert.False(t, res.Already)
	assert.Empty(t, res.Snapshot)

	res = v.Join(member(1), 7)
	assert.True(t, res.Already)
	assert.Empty(t, res.Snapshot)

	assert.Equal(t, 1, v.MemberCount(7))
}

func TestVoiceSingleMembership(t *testing.T) {
	v := NewVoiceState()
	v.Join(member(1), 7)

	res := v.Join(member(1), 9)
	assert.Equal(t, domain.ChannelID(7), res.PrevChannel)
	assert.True(t, res.PrevEmptied)

	ch, ok := v.ChannelOf(1)
	require.True(t, ok)
	assert.Equal(t, domain.ChannelID(9), ch)
	assert.Equal(t, 0, v.MemberCount(7))
	assert.Empty(t, v.Snapshot(7))
}

func TestVoiceSnapshotExcludesJoinerAndSorts(t *testing.T) {
	v := NewVoiceState()
	v.Join(member(5), 7)
	v.Join(member(2), 7)

	res := v.Join(member(3), 7)
	require.Len(t, res.Snapshot, 2)
	assert.Equal(t, domain.UserID(2), res.Snapshot[0].UserID)
	assert.Equal(t, domain.UserID(5), res.Snapshot[1].UserID)
}

func TestVoiceLeaveDeletesEmptyChannel(t *testing.T) {
	v := NewVoiceState()
	v.Join(member(1), 7)
	v.Join(member(2), 7)

	removed, emptied := v.Leave(1, 7)
	assert.True(t, removed)
	assert.False(t, emptied)

	removed, emptied = v.Leave(2, 7)
	assert.True(t, removed)
	assert.True(t, emptied)
	assert.Empty(t, v.Channels())

	// Leaving again is a no-op.
	removed, _ = v.Leave(2, 7)
	assert.False(t, removed)
}

func TestVoiceFlagsReplaceMemberValue(t *testing.T) {
	v := NewVoiceState()
	v.Join(member(1), 7)

	m, ok := v.SetCamera(1, 7, true)
	require.True(t, ok)
	assert.True(t, m.HasCamera)

	m, ok = v.SetMuted(1, 7, true)
	require.True(t, ok)
	assert.True(t, m.IsMuted)
	assert.True(t, m.HasCamera, "mute change must not clear camera flag")
}

func TestVoiceFlagSpoofSilentlyDenied(t *testing.T) {
	v := NewVoiceState()
	v.Join(member(1), 7)

	// Not a member of channel 9: denied without touching state.
	_, ok := v.SetCamera(1, 9, true)
	assert.False(t, ok)
	_, ok = v.SetMuted(2, 7, true)
	assert.False(t, ok)

	m, _ := v.Member(1, 7)
	assert.False(t, m.HasCamera)
	assert.False(t, m.IsMuted)
}

func TestVoiceDepartRecordsSilentDeparture(t *testing.T) {
	v := NewVoiceState()
	v.Join(member(1), 7)
	v.Join(member(2), 7)

	ch, removed, emptied := v.Depart(1)
	assert.Equal(t, domain.ChannelID(7), ch)
	assert.True(t, removed)
	assert.False(t, emptied)
	assert.Equal(t, map[domain.UserID]domain.ChannelID{1: 7}, v.SilentDepartures())

	// Rejoining the same channel inside the window resumes silently.
	res := v.Join(member(1), 7)
	assert.True(t, res.Resumed)
	assert.Empty(t, v.SilentDepartures())
}

func TestVoiceDepartLastMemberLeavesNoDeparture(t *testing.T) {
	v := NewVoiceState()
	v.Join(member(1), 7)

	_, removed, emptied := v.Depart(1)
	assert.True(t, removed)
	assert.True(t, emptied)
	// No observers remained, nothing to keep silent about.
	assert.Empty(t, v.SilentDepartures())
}

func TestVoiceJoinDifferentChannelFlagsStaleDeparture(t *testing.T) {
	v := NewVoiceState()
	v.Join(member(1), 7)
	v.Join(member(2), 7)

	v.Depart(1)
	res := v.Join(member(1), 9)
	assert.False(t, res.Resumed)
	assert.Equal(t, domain.ChannelID(7), res.StaleDeparture)
	assert.Empty(t, v.SilentDepartures())
}

func TestVoiceRebuildIndexRepairsDrift(t *testing.T) {
	v := NewVoiceState()
	v.Join(member(1), 7)
	v.Join(member(2), 9)

	// Corrupt the index directly.
	v.mu.Lock()
	v.index[1] = 9
	delete(v.index, 2)
	v.mu.Unlock()

	assert.Greater(t, v.RebuildIndex(), 0)
	assertVoiceInvariant(t, v)

	ch, ok := v.ChannelOf(1)
	require.True(t, ok)
	assert.Equal(t, domain.ChannelID(7), ch)
	ch, ok = v.ChannelOf(2)
	require.True(t, ok)
	assert.Equal(t, domain.ChannelID(9), ch)
}

func TestVoiceRebuildIndexMergesDuplicateMembership(t *testing.T) {
	v := NewVoiceState()
	v.Join(member(1), 7)

	// Same user smuggled into a second channel set.
	v.mu.Lock()
	v.channels[9] = map[domain.UserID]domain.VoiceMember{1: member(1)}
	v.mu.Unlock()

	assert.Greater(t, v.RebuildIndex(), 0)
	assertVoiceInvariant(t, v)

	// The channel the index claimed wins.
	ch, _ := v.ChannelOf(1)
	assert.Equal(t, domain.ChannelID(7), ch)
	assert.Empty(t, v.Snapshot(9))
}

// assertVoiceInvariant checks index[u] == c iff u is in channels[c], and that
// no empty channel entry survives.
func assertVoiceInvariant(t *testing.T, v *VoiceState) {
	t.Helper()
	v.mu.Lock()
	defer v.mu.Unlock()
	for u, ch := range v.index {
		_, ok := v.channels[ch][u]
		assert.True(t, ok, "index entry %d->%d has no member", u, ch)
	}
	for ch, set := range v.channels {
		assert.NotEmpty(t, set, "channel %d kept empty", ch)
		for u := range set {
			assert.Equal(t, ch, v.index[u], "member %d in %d not indexed", u, ch)
		}
	}
}

func TestVoiceIndexConsistencyUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(555))
	v := NewVoiceState()
	users := []domain.UserID{1, 2, 3, 4, 5}
	channels := []domain.ChannelID{7, 8, 9}

	for i := 0; i < 5000; i++ {
		u := users[rng.Intn(len(users))]
		ch := channels[rng.Intn(len(channels))]
		switch rng.Intn(4) {
		case 0:
			v.Join(member(u), ch)
		case 1:
			v.Leave(u, ch)
		case 2:
			v.Depart(u)
		case 3:
			v.RebuildIndex()
		}
		if i%250 == 0 {
			assertVoiceInvariant(t, v)
		}
	}
	assertVoiceInvariant(t, v)
}
