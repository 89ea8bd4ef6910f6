package lab

import (
	"context"
	"sync"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/metrics"
)

// linkState tracks where negotiation with one remote stands. It mirrors the
// signaling state of the underlying connection but is owned by the manager so
// guards stay testable without a real peer.
type linkState int

const (
	linkStable linkState = iota
	linkHaveLocalOffer
	linkHaveRemoteOffer
	linkClosed
)

func (s linkState) String() string {
	switch s {
	case linkStable:
		return "stable"
	case linkHaveLocalOffer:
		return "have-local-offer"
	case linkHaveRemoteOffer:
		return "have-remote-offer"
	case linkClosed:
		return "closed"
	}
	return "unknown"
}

type queuedCandidate struct {
	candidate domain.Candidate
	messageID string
}

type link struct {
	peer      Peer
	state     linkState
	remoteSet bool
	pending   []queuedCandidate
}

// Manager owns at most one live connection per remote participant and runs
// the offer/answer state machine over the room's signaling channel.
//
// Glare is guarded, not resolved: when both sides offer at the same time each
// rejects the other's offer and the call does not establish. There is no
// polite-peer tie break.
type Manager struct {
	channel *Channel
	factory PeerFactory
	self    string
	logger  logging.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	links     map[string]*link
	initiated map[string]bool
	volumes   map[string]float64

	audioActive bool
	localMuted  bool
	forcedMuted bool

	// onNeedAudio fires when an offer arrives before local media started.
	onNeedAudio func()
	// onTeardown fires after a remote's connection is torn down.
	onTeardown func(remote string)
}

type ManagerOptions struct {
	Channel     *Channel
	Factory     PeerFactory
	Self        string
	Logger      logging.Logger
	Metrics     *metrics.Metrics
	OnNeedAudio func()
	OnTeardown  func(remote string)
}

func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		channel:     opts.Channel,
		factory:     opts.Factory,
		self:        opts.Self,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		links:       make(map[string]*link),
		initiated:   make(map[string]bool),
		volumes:     make(map[string]float64),
		onNeedAudio: opts.OnNeedAudio,
		onTeardown:  opts.OnTeardown,
	}
}

// ensureLink returns the link for remote, creating a fresh peer when there is
// none or the previous one is closed. Never returns two live connections for
// the same remote.
func (m *Manager) ensureLink(remote string) (*link, error) {
	l, ok := m.links[remote]
	if ok && l.state != linkClosed {
		return l, nil
	}

	peer, err := m.factory(remote, PeerEvents{
		OnCandidate: func(c domain.Candidate) {
			m.sendCandidate(remote, c)
		},
		OnStateChange: func(state ConnState) {
			m.handleConnState(remote, state)
		},
	})
	if err != nil {
		return nil, err
	}

	l = &link{peer: peer, state: linkStable}
	m.links[remote] = l
	if m.metrics != nil {
		m.metrics.PeerConnections.Inc()
	}

	peer.SetOutgoingEnabled(!m.muted())

	return l, nil
}

// InitiateCall offers to the remote. From have-local-offer or
// have-remote-offer this is a warn-and-noop so an in-flight negotiation is
// never clobbered.
func (m *Manager) InitiateCall(ctx context.Context, remote string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.links[remote]; ok && (l.state == linkHaveLocalOffer || l.state == linkHaveRemoteOffer) {
		m.logger.Warn(logging.Lab, logging.PeerAudio, "initiate ignored: negotiation in flight", map[logging.ExtraKey]any{
			logging.RemotePeer: remote,
			"state":            l.state.String(),
		})
		return nil
	}

	l, err := m.ensureLink(remote)
	if err != nil {
		return err
	}

	sdp, err := l.peer.CreateOffer(ctx)
	if err != nil {
		return err
	}

	l.state = linkHaveLocalOffer
	m.initiated[remote] = true

	return m.channel.Send(ctx, domain.NewOffer(m.channel.roomID, m.self, remote, sdp))
}

// HandleSignal processes one inbound signaling message. The switch is
// exhaustive over the signal kinds; unknown kinds are acked and dropped.
func (m *Manager) HandleSignal(ctx context.Context, sig domain.Signal) {
	if m.metrics != nil {
		m.metrics.SignalsProcessed.WithLabelValues(string(sig.Kind)).Inc()
	}

	switch sig.Kind {
	case domain.SignalOffer:
		m.handleOffer(ctx, sig)
	case domain.SignalAnswer:
		m.handleAnswer(ctx, sig)
	case domain.SignalCandidate:
		m.handleCandidate(ctx, sig)
	default:
		m.logger.Warn(logging.Lab, logging.Signaling, "dropping signal of unknown kind", map[logging.ExtraKey]any{
			logging.RemotePeer: sig.From,
			"kind":             string(sig.Kind),
		})
		m.channel.Ack(ctx, sig.ID)
	}
}

func (m *Manager) handleOffer(ctx context.Context, sig domain.Signal) {
	m.mu.Lock()

	// An offer is also the cue to bring up local media if it isn't yet.
	if !m.audioActive && m.onNeedAudio != nil {
		needAudio := m.onNeedAudio
		m.mu.Unlock()
		needAudio()
		m.mu.Lock()
	}

	l, err := m.ensureLink(sig.From)
	if err != nil {
		m.mu.Unlock()
		m.logger.Error(logging.Lab, logging.PeerAudio, "could not create connection for offer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.RemotePeer:   sig.From,
		})
		m.channel.Ack(ctx, sig.ID)
		return
	}

	if l.state != linkStable {
		// Glare or a stray re-offer. Reject but still consume the message.
		m.logger.Warn(logging.Lab, logging.PeerAudio, "offer rejected: not stable", map[logging.ExtraKey]any{
			logging.RemotePeer: sig.From,
			"state":            l.state.String(),
		})
		m.mu.Unlock()
		m.channel.Ack(ctx, sig.ID)
		return
	}

	l.state = linkHaveRemoteOffer
	answer, err := l.peer.HandleOffer(ctx, sig.SDP)
	if err != nil {
		l.state = linkStable
		m.mu.Unlock()
		m.logger.Error(logging.Lab, logging.PeerAudio, "failed to answer offer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.RemotePeer:   sig.From,
		})
		m.channel.Ack(ctx, sig.ID)
		return
	}

	l.state = linkStable
	l.remoteSet = true
	m.flushCandidatesLocked(ctx, sig.From, l)
	m.mu.Unlock()

	if err := m.channel.Send(ctx, domain.NewAnswer(m.channel.roomID, m.self, sig.From, answer)); err != nil {
		m.logger.Error(logging.Lab, logging.Signaling, "failed to send answer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.RemotePeer:   sig.From,
		})
	}
	m.channel.Ack(ctx, sig.ID)
}

func (m *Manager) handleAnswer(ctx context.Context, sig domain.Signal) {
	m.mu.Lock()

	l, ok := m.links[sig.From]
	if !ok || l.state != linkHaveLocalOffer {
		state := "none"
		if ok {
			state = l.state.String()
		}
		m.logger.Warn(logging.Lab, logging.PeerAudio, "answer ignored: no pending offer", map[logging.ExtraKey]any{
			logging.RemotePeer: sig.From,
			"state":            state,
		})
		m.mu.Unlock()
		m.channel.Ack(ctx, sig.ID)
		return
	}

	if err := l.peer.HandleAnswer(ctx, sig.SDP); err != nil {
		m.mu.Unlock()
		m.logger.Error(logging.Lab, logging.PeerAudio, "failed to apply answer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.RemotePeer:   sig.From,
		})
		m.channel.Ack(ctx, sig.ID)
		return
	}

	l.state = linkStable
	l.remoteSet = true
	m.flushCandidatesLocked(ctx, sig.From, l)
	m.mu.Unlock()

	m.channel.Ack(ctx, sig.ID)
}

func (m *Manager) handleCandidate(ctx context.Context, sig domain.Signal) {
	m.mu.Lock()

	l, ok := m.links[sig.From]
	if !ok || !l.remoteSet {
		// Queue until the remote description lands. The message stays in
		// the mailbox and is deleted when the candidate is applied.
		if !ok {
			var err error
			l, err = m.ensureLink(sig.From)
			if err != nil {
				m.mu.Unlock()
				m.logger.Error(logging.Lab, logging.PeerAudio, "could not create connection for candidate", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
					logging.RemotePeer:   sig.From,
				})
				return
			}
		}
		l.pending = append(l.pending, queuedCandidate{candidate: *sig.Candidate, messageID: sig.ID})
		m.mu.Unlock()
		return
	}

	err := l.peer.AddCandidate(*sig.Candidate)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn(logging.Lab, logging.PeerAudio, "failed to apply candidate", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.RemotePeer:   sig.From,
		})
	}
	m.channel.Ack(ctx, sig.ID)
}

// flushCandidatesLocked applies queued candidates in arrival order, acking
// each message, then clears the queue so every candidate is applied exactly
// once. Called with m.mu held.
func (m *Manager) flushCandidatesLocked(ctx context.Context, remote string, l *link) {
	for _, qc := range l.pending {
		if err := l.peer.AddCandidate(qc.candidate); err != nil {
			m.logger.Warn(logging.Lab, logging.PeerAudio, "failed to apply queued candidate", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
				logging.RemotePeer:   remote,
			})
		}
		m.channel.Ack(ctx, qc.messageID)
	}
	l.pending = nil
}

func (m *Manager) sendCandidate(remote string, c domain.Candidate) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := m.channel.Send(ctx, domain.NewCandidateSignal(m.channel.roomID, m.self, remote, c)); err != nil {
		m.logger.Warn(logging.Lab, logging.Signaling, "failed to send candidate", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.RemotePeer:   remote,
		})
	}
}

// handleConnState reacts to connectivity transitions from the peer itself.
func (m *Manager) handleConnState(remote string, state ConnState) {
	switch state {
	case ConnDisconnected, ConnFailed, ConnClosed:
		m.Teardown(remote)
	}
}

// Teardown closes the remote's connection and forgets everything about it:
// queued candidates, the initiated flag and the volume setting.
func (m *Manager) Teardown(remote string) {
	m.mu.Lock()
	l, ok := m.links[remote]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.links, remote)
	delete(m.initiated, remote)
	delete(m.volumes, remote)
	m.mu.Unlock()

	if l.state != linkClosed {
		l.state = linkClosed
		_ = l.peer.Close()
		if m.metrics != nil {
			m.metrics.PeerConnections.Dec()
		}
	}

	if m.onTeardown != nil {
		m.onTeardown(remote)
	}
}

// CloseAll tears down every connection and clears the initiated set.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	links := m.links
	m.links = make(map[string]*link)
	m.initiated = make(map[string]bool)
	m.volumes = make(map[string]float64)
	m.mu.Unlock()

	for _, l := range links {
		if l.state != linkClosed {
			l.state = linkClosed
			_ = l.peer.Close()
			if m.metrics != nil {
				m.metrics.PeerConnections.Dec()
			}
		}
	}
}

func (m *Manager) SetAudioActive(active bool) {
	m.mu.Lock()
	m.audioActive = active
	m.mu.Unlock()
}

func (m *Manager) AudioActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioActive
}

// Initiated reports whether a call to the remote was already started from
// this side. The presence watcher uses it to keep initiation single-shot.
func (m *Manager) Initiated(remote string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initiated[remote]
}

func (m *Manager) muted() bool {
	return m.localMuted || m.forcedMuted
}

// ToggleMute flips the local mute unless moderation forces the mute on.
// Returns the effective muted state.
func (m *Manager) ToggleMute() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.forcedMuted {
		m.logger.Info(logging.Lab, logging.Moderation, "unmute blocked: muted by room owner", nil)
		return true
	}

	m.localMuted = !m.localMuted
	m.applyMuteLocked()
	return m.muted()
}

// SetForcedMute applies or lifts a moderation mute. Forced mute always wins
// over the local toggle; lifting it does not unmute automatically, the
// previous local choice stays in effect.
func (m *Manager) SetForcedMute(forced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.forcedMuted == forced {
		return
	}
	m.forcedMuted = forced
	m.applyMuteLocked()
}

func (m *Manager) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted()
}

func (m *Manager) applyMuteLocked() {
	enabled := !m.muted()
	for _, l := range m.links {
		if l.state != linkClosed {
			l.peer.SetOutgoingEnabled(enabled)
		}
	}
}

// SetVolume stores the playback volume for one remote. Rendering happens on
// the consuming client; the manager only keeps the setting so teardown can
// drop it.
func (m *Manager) SetVolume(remote string, volume float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[remote]; !ok {
		return
	}
	m.volumes[remote] = volume
}

func (m *Manager) Volume(remote string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.volumes[remote]; ok {
		return v
	}
	return 1.0
}

// ActivePeers lists remotes with a live connection.
func (m *Manager) ActivePeers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	peers := make([]string, 0, len(m.links))
	for remote, l := range m.links {
		if l.state != linkClosed {
			peers = append(peers, remote)
		}
	}
	return peers
}
