package lab

import (
	"context"

	"github.com/pastejet/pastejet/internal/domain"
)

// ConnState is the subset of peer connection states the manager reacts to.
type ConnState int

const (
	ConnNew ConnState = iota
	ConnConnected
	ConnDisconnected
	ConnFailed
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnNew:
		return "new"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailed:
		return "failed"
	case ConnClosed:
		return "closed"
	}
	return "unknown"
}

// PeerEvents are callbacks a Peer fires from its own goroutines. The manager
// serializes them internally.
type PeerEvents struct {
	OnCandidate   func(domain.Candidate)
	OnStateChange func(ConnState)
}

// Peer wraps one peer connection. The production implementation is
// WebRTCPeer; tests use a scripted fake so the negotiation state machine can
// run without networking.
type Peer interface {
	// CreateOffer creates an offer and sets it as the local description.
	CreateOffer(ctx context.Context) (sdp string, err error)

	// HandleOffer sets the remote offer, creates an answer and sets it as
	// the local description.
	HandleOffer(ctx context.Context, sdp string) (answer string, err error)

	// HandleAnswer sets the remote answer.
	HandleAnswer(ctx context.Context, sdp string) error

	AddCandidate(c domain.Candidate) error

	// SetOutgoingEnabled toggles the outgoing audio track.
	SetOutgoingEnabled(enabled bool)

	Close() error
}

// PeerFactory creates the connection for one remote participant.
type PeerFactory func(remote string, events PeerEvents) (Peer, error)
