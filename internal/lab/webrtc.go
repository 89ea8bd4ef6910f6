package lab

import (
	"context"
	"fmt"
	"sync"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pion/webrtc/v4"
)

// No TURN fallback: participants behind symmetric NAT cannot connect.
var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:stun1.l.google.com:19302"}},
}

// WebRTCPeer is the pion-backed Peer used in production.
type WebRTCPeer struct {
	pc     *webrtc.PeerConnection
	sender *webrtc.RTPSender
	track  webrtc.TrackLocal

	mu      sync.Mutex
	enabled bool
}

// NewWebRTCPeerFactory returns a PeerFactory producing pion peer connections
// with an opus audio track attached.
func NewWebRTCPeerFactory() PeerFactory {
	return func(remote string, events PeerEvents) (Peer, error) {
		return newWebRTCPeer(events)
	}
}

func newWebRTCPeer(events PeerEvents) (*WebRTCPeer, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:           defaultICEServers,
		ICECandidatePoolSize: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "pastejet-audio",
	)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	sender, err := pc.AddTrack(track)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add audio track: %w", err)
	}

	p := &WebRTCPeer{
		pc:      pc,
		sender:  sender,
		track:   track,
		enabled: true,
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || events.OnCandidate == nil {
			return
		}
		init := c.ToJSON()
		events.OnCandidate(domain.Candidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if events.OnStateChange == nil {
			return
		}
		events.OnStateChange(translateConnState(state))
	})

	return p, nil
}

func translateConnState(state webrtc.PeerConnectionState) ConnState {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		return ConnConnected
	case webrtc.PeerConnectionStateDisconnected:
		return ConnDisconnected
	case webrtc.PeerConnectionStateFailed:
		return ConnFailed
	case webrtc.PeerConnectionStateClosed:
		return ConnClosed
	default:
		return ConnNew
	}
}

func (p *WebRTCPeer) CreateOffer(ctx context.Context) (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local offer: %w", err)
	}
	return offer.SDP, nil
}

func (p *WebRTCPeer) HandleOffer(ctx context.Context, sdp string) (string, error) {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return "", fmt.Errorf("set remote offer: %w", err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local answer: %w", err)
	}
	return answer.SDP, nil
}

func (p *WebRTCPeer) HandleAnswer(ctx context.Context, sdp string) error {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

func (p *WebRTCPeer) AddCandidate(c domain.Candidate) error {
	return p.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	})
}

func (p *WebRTCPeer) SetOutgoingEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.enabled == enabled {
		return
	}
	p.enabled = enabled

	if enabled {
		_ = p.sender.ReplaceTrack(p.track)
	} else {
		_ = p.sender.ReplaceTrack(nil)
	}
}

func (p *WebRTCPeer) Close() error {
	return p.pc.Close()
}
