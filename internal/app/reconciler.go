package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/domain"
	"github.com/voxhall/gateway/internal/gateway"
)

// Reconciler is the background sweep that corrects drift between tracked
// state and transport reality. It is the designated recovery mechanism for
// anything handler-level error handling cannot prevent: every repair here is
// idempotent and safe to run concurrently with in-flight joins and leaves.
//
// Tie-break, applied consistently: when a connection is demonstrably alive,
// the transport group membership is the truth and tracked state is repaired
// toward it. Live members are only ever repaired, never removed.
type Reconciler struct {
	Registry *Registry
	Hub      *Hub
	Voice    *VoiceState
	Presence *Presence

	Interval   time.Duration
	SessionTTL time.Duration

	// missing marks voice members with no live session at the previous
	// sweep; a member is purged on the second consecutive observation, which
	// guarantees at least one full interval of grace.
	missing map[domain.UserID]bool
	// lingering marks silent departures the previous sweep already saw.
	lingering map[domain.UserID]bool
}

func NewReconciler(reg *Registry, hub *Hub, voice *VoiceState, presence *Presence, interval, sessionTTL time.Duration) *Reconciler {
	return &Reconciler{
		Registry:   reg,
		Hub:        hub,
		Voice:      voice,
		Presence:   presence,
		Interval:   interval,
		SessionTTL: sessionTTL,
		missing:    make(map[domain.UserID]bool),
		lingering:  make(map[domain.UserID]bool),
	}
}

// Run executes Sweep on a fixed interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	log.Info().Str("module", "app.reconciler").Dur("interval", r.Interval).Msg("reconciler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.reconciler").Msg("reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one full reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) {
	r.expireSessions(ctx)
	r.auditChannels()
	r.flushDepartures()
	if n := r.Voice.RebuildIndex(); n > 0 {
		log.Warn().Str("module", "app.reconciler").Int("corrections", n).Msg("voice index re-derived")
	}
}

// expireSessions enforces the registry's idle TTL. An expiry is handled like
// a network disconnect: silent voice cleanup, friends see offline.
func (r *Reconciler) expireSessions(ctx context.Context) {
	for _, sess := range r.Registry.ExpireIdle(r.SessionTTL) {
		sess.Conn.Close()
		r.Hub.LeaveAll(sess.ConnID)
		if ch, removed, _ := r.Voice.Depart(sess.User.ID); removed {
			log.Warn().Str("module", "app.reconciler").Int64("user", int64(sess.User.ID)).
				Int64("channel", int64(ch)).Msg("expired session removed from voice channel")
		}
		if r.Presence != nil {
			offCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := r.Presence.BroadcastStatus(offCtx, sess.User.ID, domain.StatusOffline); err != nil {
				log.Error().Err(err).Str("module", "app.reconciler").Int64("user", int64(sess.User.ID)).Msg("offline fanout")
			}
			cancel()
		}
	}
}

func (r *Reconciler) auditChannels() {
	for _, ch := range r.Voice.Channels() {
		key := VoiceGroup(ch)

		// Transport side: stale connections are purged from the group; live
		// connections missing from tracked state are restored into it.
		for _, connID := range r.Hub.Members(key) {
			uid, live := r.Registry.UserOfConn(connID)
			if !live {
				r.Hub.Leave(key, connID)
				log.Warn().Str("module", "app.reconciler").Str("conn", string(connID)).
					Int64("channel", int64(ch)).Msg("stale connection purged from voice group")
				continue
			}
			if r.Voice.IsMemberOf(uid, ch) {
				continue
			}
			if other, ok := r.Voice.ChannelOf(uid); ok && other != ch {
				// Same user under two voice groups: the tracked membership
				// elsewhere stands, this subscription is the phantom.
				r.Hub.Leave(key, connID)
				log.Warn().Str("module", "app.reconciler").Int64("user", int64(uid)).
					Int64("channel", int64(ch)).Int64("tracked", int64(other)).Msg("phantom voice subscription merged")
				continue
			}
			sess, ok := r.Registry.Lookup(uid)
			if !ok {
				continue
			}
			r.Voice.InsertMember(domain.NewVoiceMember(sess.User), ch)
			log.Warn().Str("module", "app.reconciler").Int64("user", int64(uid)).
				Int64("channel", int64(ch)).Msg("live member restored from transport group")
		}

		// State side: members without a live session are purged after one
		// missed cycle; live members missing their subscription get it back.
		for _, m := range r.Voice.Snapshot(ch) {
			sess, ok := r.Registry.Lookup(m.UserID)
			if !ok {
				if !r.missing[m.UserID] {
					r.missing[m.UserID] = true
					continue
				}
				delete(r.missing, m.UserID)
				if removed, _ := r.Voice.Leave(m.UserID, ch); removed {
					r.Hub.Broadcast(key, gateway.Encode(gateway.VoiceUserLeft{
						Type:      gateway.EvVoiceUserLeft,
						ChannelID: ch,
						UserID:    m.UserID,
						Graceful:  false,
					}))
					log.Warn().Str("module", "app.reconciler").Int64("user", int64(m.UserID)).
						Int64("channel", int64(ch)).Msg("dead voice member purged")
				}
				continue
			}
			delete(r.missing, m.UserID)
			if !r.Hub.Contains(key, sess.ConnID) {
				r.Hub.Join(key, sess.ConnID, sess.Conn)
				log.Warn().Str("module", "app.reconciler").Int64("user", int64(m.UserID)).
					Int64("channel", int64(ch)).Msg("voice group subscription restored")
			}
		}
	}

	// Forget miss marks for users no longer tracked at all.
	for u := range r.missing {
		if _, ok := r.Voice.ChannelOf(u); !ok {
			delete(r.missing, u)
		}
	}
}

// flushDepartures announces silent departures that outlived their grace
// window: the user neither rejoined nor was restored within a full cycle, so
// the remaining members finally get their member-left.
func (r *Reconciler) flushDepartures() {
	deps := r.Voice.SilentDepartures()
	for u := range deps {
		if !r.lingering[u] {
			r.lingering[u] = true
			continue
		}
		delete(r.lingering, u)
		ch, ok := r.Voice.ClearDeparture(u)
		if !ok {
			continue
		}
		r.Hub.Broadcast(VoiceGroup(ch), gateway.Encode(gateway.VoiceUserLeft{
			Type:      gateway.EvVoiceUserLeft,
			ChannelID: ch,
			UserID:    u,
			Graceful:  false,
		}))
		log.Info().Str("module", "app.reconciler").Int64("user", int64(u)).
			Int64("channel", int64(ch)).Msg("silent departure announced")
	}
	for u := range r.lingering {
		if _, ok := deps[u]; !ok {
			delete(r.lingering, u)
		}
	}
}
