// Package peers tracks responsiveness of remotes serving sync requests.
package peers

import (
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/causalmesh/go-causalmesh/p2p"
)

type data struct {
	id                p2p.Peer
	success, failures int
	failRate          float64
	averageLatency    float64
}

// latency is the expected time to receive 1KiB from the peer.
func (d *data) latency(global float64) float64 {
	switch {
	case d.success+d.failures == 0:
		return 0.9 * global // try out new peers first
	case d.success == 0:
		return 1.1 * global
	}
	return d.averageLatency + d.failRate*global
}

func (d *data) compare(other *data, global float64) int {
	own, theirs := d.latency(global), other.latency(global)
	switch {
	case own < theirs:
		return -1
	case own > theirs:
		return 1
	}
	return strings.Compare(string(d.id), string(other.id))
}

// Peers keeps moving averages of latency and failure rate per peer.
// Peers are tracked from the first event reported about them.
type Peers struct {
	mu    sync.Mutex
	peers map[p2p.Peer]*data

	// globalLatency is the moving average of all successful responses.
	// It is the reference value for peers without history.
	globalLatency float64
}

// New creates an empty tracker.
func New() *Peers {
	return &Peers{peers: map[p2p.Peer]*data{}}
}

func (p *Peers) get(id p2p.Peer) *data {
	d, exist := p.peers[id]
	if !exist {
		d = &data{id: id}
		p.peers[id] = d
	}
	return d
}

// Add starts tracking the peer. Returns false if it was tracked already.
func (p *Peers) Add(id p2p.Peer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exist := p.peers[id]; exist {
		return false
	}
	p.peers[id] = &data{id: id}
	return true
}

// Delete forgets the peer.
func (p *Peers) Delete(id p2p.Peer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.peers, id)
}

// OnFailure records a failed or abandoned request.
func (p *Peers) OnFailure(id p2p.Peer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.get(id)
	d.failures++
	d.failRate = float64(d.failures) / float64(d.success+d.failures)
}

// OnLatency records a successful response of the given size.
// Latency is normalized to the duration of transmitting 1KiB, small
// responses count as 1KiB.
func (p *Peers) OnLatency(id p2p.Peer, size int, latency time.Duration) {
	if size == 0 {
		return
	}
	latency /= time.Duration(max(size/1024, 1))
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.get(id)
	d.success++
	d.failRate = float64(d.failures) / float64(d.success+d.failures)
	if d.averageLatency == 0 {
		d.averageLatency = float64(latency)
	} else {
		d.averageLatency += (float64(latency) - d.averageLatency) / 10
	}
	if p.globalLatency == 0 {
		p.globalLatency = float64(latency)
	} else {
		p.globalLatency += (float64(latency) - p.globalLatency) / 25
	}
}

// Rank returns the ids ordered from the most to the least preferred.
// Untracked ids are ranked as new peers.
func (p *Peers) Rank(ids []p2p.Peer) []p2p.Peer {
	p.mu.Lock()
	defer p.mu.Unlock()
	ranked := make([]*data, 0, len(ids))
	for _, id := range ids {
		d, exist := p.peers[id]
		if !exist {
			d = &data{id: id}
		}
		ranked = append(ranked, d)
	}
	slices.SortFunc(ranked, func(a, b *data) int { return a.compare(b, p.globalLatency) })
	rst := make([]p2p.Peer, len(ranked))
	for i, d := range ranked {
		rst[i] = d.id
	}
	return rst
}

// SelectBestFrom returns the most preferred tracked peer, or p2p.NoPeer.
func (p *Peers) SelectBestFrom(ids []p2p.Peer) p2p.Peer {
	p.mu.Lock()
	defer p.mu.Unlock()
	var best *data
	for _, id := range ids {
		d, exist := p.peers[id]
		if !exist {
			continue
		}
		if best == nil || d.compare(best, p.globalLatency) < 0 {
			best = d
		}
	}
	if best == nil {
		return p2p.NoPeer
	}
	return best.id
}

// SelectBest returns at most n tracked peers ordered by preference.
func (p *Peers) SelectBest(n int) []p2p.Peer {
	p.mu.Lock()
	all := make([]p2p.Peer, 0, len(p.peers))
	for id := range p.peers {
		all = append(all, id)
	}
	p.mu.Unlock()
	ranked := p.Rank(all)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	if len(ranked) == 0 {
		return nil
	}
	return ranked
}

// Total returns the number of tracked peers.
func (p *Peers) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.peers)
}

// Stats returns a snapshot for logging.
func (p *Peers) Stats() Stats {
	best := p.SelectBest(5)
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := Stats{
		Total:                len(p.peers),
		GlobalAverageLatency: p.globalLatency,
	}
	for _, id := range best {
		d, exist := p.peers[id]
		if !exist {
			continue
		}
		stats.BestPeers = append(stats.BestPeers, PeerStats{
			ID:       d.id,
			Success:  d.success,
			Failures: d.failures,
			Latency:  d.averageLatency,
		})
	}
	return stats
}

type Stats struct {
	Total                int
	GlobalAverageLatency float64
	BestPeers            []PeerStats
}

func (s *Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("total", s.Total)
	enc.AddFloat64("global average latency", s.GlobalAverageLatency)
	return enc.AddArray("best peers", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
		for i := range s.BestPeers {
			if err := arr.AppendObject(&s.BestPeers[i]); err != nil {
				return err
			}
		}
		return nil
	}))
}

type PeerStats struct {
	ID       p2p.Peer
	Success  int
	Failures int
	Latency  float64
}

func (p *PeerStats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", p.ID.String())
	enc.AddInt("success", p.Success)
	enc.AddInt("failures", p.Failures)
	enc.AddFloat64("latency per 1024 bytes", p.Latency)
	return nil
}
