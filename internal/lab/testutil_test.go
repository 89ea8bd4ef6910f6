package lab

import (
	"context"
	"fmt"
	"sync"

	"github.com/pastejet/pastejet/internal/domain"
)

// fakePeer records every call so tests can assert on negotiation order
// without a real media stack.
type fakePeer struct {
	mu sync.Mutex

	remote string
	events PeerEvents

	offersCreated  int
	handledOffers  []string
	handledAnswers []string
	candidates     []domain.Candidate
	outgoing       bool
	closed         bool
}

func (p *fakePeer) CreateOffer(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offersCreated++
	return fmt.Sprintf("offer-%d-to-%s", p.offersCreated, p.remote), nil
}

func (p *fakePeer) HandleOffer(ctx context.Context, sdp string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handledOffers = append(p.handledOffers, sdp)
	return "answer-to-" + p.remote, nil
}

func (p *fakePeer) HandleAnswer(ctx context.Context, sdp string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handledAnswers = append(p.handledAnswers, sdp)
	return nil
}

func (p *fakePeer) AddCandidate(c domain.Candidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) SetOutgoingEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outgoing = enabled
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) offerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offersCreated
}

func (p *fakePeer) offersHandled() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.handledOffers...)
}

func (p *fakePeer) answersHandled() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.handledAnswers...)
}

func (p *fakePeer) addedCandidates() []domain.Candidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Candidate(nil), p.candidates...)
}

func (p *fakePeer) outgoingEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outgoing
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeFactory hands out fakePeers and remembers every one it created, in
// order, per remote.
type fakeFactory struct {
	mu    sync.Mutex
	peers map[string][]*fakePeer
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{peers: make(map[string][]*fakePeer)}
}

func (f *fakeFactory) New(remote string, events PeerEvents) (Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &fakePeer{remote: remote, events: events}
	f.peers[remote] = append(f.peers[remote], p)
	return p, nil
}

// peer returns the most recently created peer for remote, or nil.
func (f *fakeFactory) peer(remote string) *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()

	ps := f.peers[remote]
	if len(ps) == 0 {
		return nil
	}
	return ps[len(ps)-1]
}

func (f *fakeFactory) created(remote string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers[remote])
}
