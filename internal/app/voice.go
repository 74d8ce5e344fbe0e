package app

import (
	"sort"
	"sync"
	"time"

	"github.com/voxhall/gateway/internal/domain"
)

// VoiceState tracks who occupies which voice channel, with an inverse
// user→channel index for O(1) lookups and disconnect cleanup. Channels are
// created lazily on first join and deleted when their member set empties.
//
// The struct is pure state: all broadcasting and authorization lives in the
// orchestrator, which makes the invariants here directly testable.
type VoiceState struct {
	mu       sync.Mutex
	channels map[domain.ChannelID]map[domain.UserID]domain.VoiceMember
	index    map[domain.UserID]domain.ChannelID

	// departures records members removed by a network-class disconnect while
	// other members remained. No member-left is broadcast for them: the
	// missing broadcast is the silent-reconnect grace window. A rejoin
	// cancels the entry; otherwise the reconciler flushes it.
	departures map[domain.UserID]departure
}

type departure struct {
	Channel domain.ChannelID
	Since   time.Time
}

func NewVoiceState() *VoiceState {
	return &VoiceState{
		channels:   make(map[domain.ChannelID]map[domain.UserID]domain.VoiceMember),
		index:      make(map[domain.UserID]domain.ChannelID),
		departures: make(map[domain.UserID]departure),
	}
}

// JoinResult reports what a Join changed, so the caller can order its
// broadcasts correctly.
type JoinResult struct {
	// Already means the user was a member of this exact channel; the join
	// was an idempotent no-op.
	Already bool
	// Resumed means the join landed inside the silent-reconnect window for
	// the same channel: the member-joined broadcast must be suppressed.
	Resumed bool
	// Snapshot is the channel membership before the joiner was added.
	Snapshot []domain.VoiceMember
	// PrevChannel is non-zero when the single-membership rule removed the
	// user from another channel first.
	PrevChannel domain.ChannelID
	PrevEmptied bool
	// StaleDeparture is non-zero when a silent departure for a different
	// channel can no longer resolve into a rejoin and must be announced.
	StaleDeparture domain.ChannelID
}

func (v *VoiceState) Join(m domain.VoiceMember, ch domain.ChannelID) JoinResult {
	v.mu.Lock()
	defer v.mu.Unlock()

	var res JoinResult
	u := m.UserID

	if cur, ok := v.index[u]; ok {
		if cur == ch {
			res.Already = true
			res.Snapshot = v.snapshotLocked(ch, u)
			return res
		}
		res.PrevChannel = cur
		res.PrevEmptied = v.removeLocked(u, cur)
	}

	if dep, ok := v.departures[u]; ok {
		delete(v.departures, u)
		if dep.Channel == ch {
			res.Resumed = true
		} else {
			res.StaleDeparture = dep.Channel
		}
	}

	res.Snapshot = v.snapshotLocked(ch, u)
	set, ok := v.channels[ch]
	if !ok {
		set = make(map[domain.UserID]domain.VoiceMember)
		v.channels[ch] = set
	}
	set[u] = m
	v.index[u] = ch
	return res
}

// Leave removes the user from the given channel. Used for graceful leaves
// and reconciler purges; never records a silent departure.
func (v *VoiceState) Leave(u domain.UserID, ch domain.ChannelID) (removed, emptied bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.index[u] != ch {
		return false, false
	}
	delete(v.departures, u)
	return true, v.removeLocked(u, ch)
}

// Depart removes the user from whatever channel they occupy after a
// network-class disconnect. If observers remain in the channel, the removal
// is recorded as a silent departure.
func (v *VoiceState) Depart(u domain.UserID) (ch domain.ChannelID, removed, emptied bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch, ok := v.index[u]
	if !ok {
		return 0, false, false
	}
	emptied = v.removeLocked(u, ch)
	if !emptied {
		v.departures[u] = departure{Channel: ch, Since: time.Now()}
	}
	return ch, true, emptied
}

func (v *VoiceState) removeLocked(u domain.UserID, ch domain.ChannelID) (emptied bool) {
	if set, ok := v.channels[ch]; ok {
		delete(set, u)
		if len(set) == 0 {
			delete(v.channels, ch)
			emptied = true
		}
	}
	delete(v.index, u)
	return emptied
}

func (v *VoiceState) ChannelOf(u domain.UserID) (domain.ChannelID, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch, ok := v.index[u]
	return ch, ok
}

func (v *VoiceState) IsMemberOf(u domain.UserID, ch domain.ChannelID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.index[u] == ch
}

func (v *VoiceState) Member(u domain.UserID, ch domain.ChannelID) (domain.VoiceMember, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := v.channels[ch][u]
	return m, ok
}

// SetCamera replaces the member value with the camera flag set. Denied when
// the user is not a member of that exact channel: the caller treats a false
// return as a silent no-op, not an error, so state for a foreign channel
// cannot be spoofed.
func (v *VoiceState) SetCamera(u domain.UserID, ch domain.ChannelID, enabled bool) (domain.VoiceMember, bool) {
	return v.replace(u, ch, func(m domain.VoiceMember) domain.VoiceMember { return m.WithCamera(enabled) })
}

// SetMuted replaces the member value with the mute flag set. Same silent
// denial as SetCamera.
func (v *VoiceState) SetMuted(u domain.UserID, ch domain.ChannelID, muted bool) (domain.VoiceMember, bool) {
	return v.replace(u, ch, func(m domain.VoiceMember) domain.VoiceMember { return m.WithMuted(muted) })
}

func (v *VoiceState) replace(u domain.UserID, ch domain.ChannelID, f func(domain.VoiceMember) domain.VoiceMember) (domain.VoiceMember, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.index[u] != ch {
		return domain.VoiceMember{}, false
	}
	m, ok := v.channels[ch][u]
	if !ok {
		return domain.VoiceMember{}, false
	}
	m = f(m)
	v.channels[ch][u] = m
	return m, true
}

// Snapshot returns the channel's members sorted by user ID.
func (v *VoiceState) Snapshot(ch domain.ChannelID) []domain.VoiceMember {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked(ch, 0)
}

func (v *VoiceState) snapshotLocked(ch domain.ChannelID, exclude domain.UserID) []domain.VoiceMember {
	set := v.channels[ch]
	out := make([]domain.VoiceMember, 0, len(set))
	for u, m := range set {
		if u == exclude {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (v *VoiceState) Channels() []domain.ChannelID {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.ChannelID, 0, len(v.channels))
	for ch := range v.channels {
		out = append(out, ch)
	}
	return out
}

func (v *VoiceState) MemberCount(ch domain.ChannelID) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.channels[ch])
}

// InsertMember re-adds a member observed alive in the transport group but
// missing from tracked state. Existing entries keep their flags; a conflicting
// membership in another channel is displaced, transport truth wins.
func (v *VoiceState) InsertMember(m domain.VoiceMember, ch domain.ChannelID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if cur, ok := v.index[m.UserID]; ok {
		if cur == ch {
			return
		}
		v.removeLocked(m.UserID, cur)
	}
	set, ok := v.channels[ch]
	if !ok {
		set = make(map[domain.UserID]domain.VoiceMember)
		v.channels[ch] = set
	}
	set[m.UserID] = m
	v.index[m.UserID] = ch
	delete(v.departures, m.UserID)
}

// SilentDepartures returns a copy of the departures awaiting a rejoin.
func (v *VoiceState) SilentDepartures() map[domain.UserID]domain.ChannelID {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[domain.UserID]domain.ChannelID, len(v.departures))
	for u, dep := range v.departures {
		out[u] = dep.Channel
	}
	return out
}

// ClearDeparture drops the silent departure for a user, reporting which
// channel it referenced.
func (v *VoiceState) ClearDeparture(u domain.UserID) (domain.ChannelID, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	dep, ok := v.departures[u]
	if ok {
		delete(v.departures, u)
	}
	return dep.Channel, ok
}

// RebuildIndex re-derives the user→channel index from the channel sets and
// resolves users tracked in more than one channel, preferring whichever
// membership the index already claimed. Returns the number of corrections.
func (v *VoiceState) RebuildIndex() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	corrections := 0
	fresh := make(map[domain.UserID]domain.ChannelID, len(v.index))
	for ch, set := range v.channels {
		for u := range set {
			prev, dup := fresh[u]
			if !dup {
				fresh[u] = ch
				continue
			}
			keep := prev
			if idx, ok := v.index[u]; ok && (idx == ch || idx == prev) {
				keep = idx
			}
			drop := ch
			if keep == ch {
				drop = prev
			}
			if set := v.channels[drop]; set != nil {
				delete(set, u)
				if len(set) == 0 {
					delete(v.channels, drop)
				}
			}
			fresh[u] = keep
			corrections++
		}
	}

	for u, ch := range fresh {
		if old, ok := v.index[u]; !ok || old != ch {
			corrections++
		}
	}
	for u := range v.index {
		if _, ok := fresh[u]; !ok {
			corrections++
		}
	}
	v.index = fresh
	return corrections
}
