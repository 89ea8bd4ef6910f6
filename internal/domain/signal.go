package domain

import (
	"fmt"
	"time"
)

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

// Candidate mirrors the ICE candidate init dictionary carried over signaling.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Signal is the tagged variant exchanged through a room's signaling
// collection. Kind selects which payload field is meaningful: SDP for offers
// and answers, Candidate for ICE candidates.
type Signal struct {
	ID        string     `json:"-"`
	RoomID    string     `json:"room_id"`
	Kind      SignalKind `json:"type"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	SDP       string     `json:"sdp,omitempty"`
	Candidate *Candidate `json:"candidate,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (s *Signal) Validate() error {
	if s.From == "" || s.To == "" {
		return fmt.Errorf("signal requires both from and to")
	}

	switch s.Kind {
	case SignalOffer, SignalAnswer:
		if s.SDP == "" {
			return fmt.Errorf("%s signal requires an SDP", s.Kind)
		}
	case SignalCandidate:
		if s.Candidate == nil {
			return fmt.Errorf("candidate signal requires a candidate")
		}
	default:
		return fmt.Errorf("unknown signal kind %q", s.Kind)
	}

	return nil
}

func NewOffer(roomID, from, to, sdp string) *Signal {
	return &Signal{RoomID: roomID, Kind: SignalOffer, From: from, To: to, SDP: sdp, CreatedAt: time.Now().UTC()}
}

func NewAnswer(roomID, from, to, sdp string) *Signal {
	return &Signal{RoomID: roomID, Kind: SignalAnswer, From: from, To: to, SDP: sdp, CreatedAt: time.Now().UTC()}
}

func NewCandidateSignal(roomID, from, to string, c Candidate) *Signal {
	return &Signal{RoomID: roomID, Kind: SignalCandidate, From: from, To: to, Candidate: &c, CreatedAt: time.Now().UTC()}
}
