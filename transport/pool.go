package transport

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// PoolState is one host connection pool's lifecycle state.
type PoolState int

const (
	PoolInit PoolState = iota
	PoolClosing
	PoolShuttingDown
	PoolShutdown
)

// ErrPoolBusy is returned by Borrow when the chosen connection is
// already at its configured in-flight ceiling.
type ErrPoolBusy struct {
	Host          string
	MaxInflight   int
	Length        int
}

func (e *ErrPoolBusy) Error() string {
	return fmt.Sprintf("transport: pool busy for %s (maxInflight=%d, length=%d)", e.Host, e.MaxInflight, e.Length)
}

// DistanceConfig is the per-HostDistance tuning the pool consults for
// sizing and growth decisions.
type DistanceConfig struct {
	CoreConnections              int
	MaxConnections                int
	MaxInflightPerConnection      int
	MaxInflightThresholdForGrowth int
	HeartbeatInterval             time.Duration
}

// PoolConfig bundles the per-distance configs plus reconnection.
type PoolConfig struct {
	Local, Remote         DistanceConfig
	ReconnectionSchedule  func() ReconnectionSchedule
	GrowthCooldown        time.Duration
	DrainGrace            time.Duration // 2 × readTimeout, capped at 5 min
}

// AllConnectionClosedFunc is invoked when a pool's last connection
// closes while its host is still considered UP, so the owning policy
// can mark the host DOWN.
type AllConnectionClosedFunc func(host string)

// Pool maintains the set of connections to a single host, shard-aware
// when the host advertises sharding, and serves Borrow requests from
// the request pipeline.
type Pool struct {
	host     string
	cfg      PoolConfig
	connCfg  ConnConfig
	distance HostDistance
	logger   Logger
	onAllClosed AllConnectionClosedFunc

	mu          sync.RWMutex
	state       PoolState
	conns       []*Conn // copy-on-write: readers snapshot without locking
	nrShards    int
	canForeground bool
	growing     bool

	openSingleFlight sync.Mutex
	openInFlight     map[int]chan error

	schedule ReconnectionSchedule

	closed chan struct{}
}

func NewPool(host string, connCfg ConnConfig, cfg PoolConfig, distance HostDistance, logger Logger, onAllClosed AllConnectionClosedFunc) *Pool {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Pool{
		host:          host,
		cfg:           cfg,
		connCfg:       connCfg,
		distance:      distance,
		logger:        logger,
		onAllClosed:   onAllClosed,
		state:         PoolInit,
		openInFlight:  make(map[int]chan error),
		canForeground: true,
		closed:        make(chan struct{}),
	}
}

func (p *Pool) distanceConfig() DistanceConfig {
	if p.distance == DistanceLocal {
		return p.cfg.Local
	}
	return p.cfg.Remote
}

// Start brings the pool up to its core connection count, in the
// foreground (synchronously) since Start is only called on host UP or
// an initial distance assignment, both of which set canForeground.
func (p *Pool) Start(ctx context.Context) error {
	dc := p.distanceConfig()
	for i := 0; i < dc.CoreConnections; i++ {
		if err := p.openOne(ctx, i); err != nil {
			p.logger.Warnf("transport: pool %s: failed to open connection %d: %v", p.host, i, err)
			if i == 0 {
				return err // the first connection must succeed
			}
		}
	}
	p.mu.Lock()
	p.canForeground = false
	p.mu.Unlock()
	return nil
}

// openOne opens one connection for shardHint with single-flight
// semantics: concurrent callers asking for the same shardHint await the
// same outcome.
func (p *Pool) openOne(ctx context.Context, shardHint int) error {
	p.openSingleFlight.Lock()
	if ch, ok := p.openInFlight[shardHint]; ok {
		p.openSingleFlight.Unlock()
		return <-ch
	}
	ch := make(chan error, 1)
	p.openInFlight[shardHint] = ch
	p.openSingleFlight.Unlock()

	var conn *Conn
	var err error
	if p.nrShardsKnown() {
		conn, err = OpenOnShard(ctx, p.connCfg, shardHint, p.nrShards)
	} else {
		conn, err = Open(ctx, p.connCfg, shardHint)
	}

	p.openSingleFlight.Lock()
	delete(p.openInFlight, shardHint)
	p.openSingleFlight.Unlock()

	if err != nil {
		ch <- err
		return err
	}

	if conn.Sharding.NrShards > 0 {
		p.mu.Lock()
		p.nrShards = conn.Sharding.NrShards
		p.mu.Unlock()
	}

	p.addConn(conn)
	ch <- nil
	return nil
}

func (p *Pool) nrShardsKnown() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nrShards > 0
}

func (p *Pool) addConn(c *Conn) {
	p.mu.Lock()
	next := make([]*Conn, len(p.conns)+1)
	copy(next, p.conns)
	next[len(p.conns)] = c
	p.conns = next
	p.mu.Unlock()
}

func (p *Pool) removeConn(c *Conn) {
	p.mu.Lock()
	next := make([]*Conn, 0, len(p.conns))
	for _, existing := range p.conns {
		if existing != c {
			next = append(next, existing)
		}
	}
	wasLast := len(next) == 0 && len(p.conns) > 0
	p.conns = next
	state := p.state
	p.mu.Unlock()

	if wasLast && state == PoolInit && p.onAllClosed != nil {
		p.onAllClosed(p.host)
	}
}

// snapshot returns the current connection list without locking out
// concurrent Borrow calls — readers see a consistent point-in-time copy.
func (p *Pool) snapshot() []*Conn {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conns
}

// Borrow implements §4.4's algorithm: resolve a shard, pick the
// least-loaded connection on it (falling back to a global bounded
// sample), fail with ErrPoolBusy if even the best choice is saturated,
// and kick off background growth if the pool is trending busy.
func (p *Pool) Borrow(shardHint int) (*Conn, error) {
	conns := p.snapshot()
	if len(conns) == 0 {
		return nil, fmt.Errorf("transport: pool %s has no connections", p.host)
	}

	dc := p.distanceConfig()
	best := pickLeastLoaded(conns, shardHint, 8, int64(dc.MaxInflightPerConnection))

	if best.InFlight() >= int64(dc.MaxInflightPerConnection) {
		return nil, &ErrPoolBusy{Host: p.host, MaxInflight: dc.MaxInflightPerConnection, Length: len(conns)}
	}

	if best.InFlight() >= int64(dc.MaxInflightThresholdForGrowth) && len(conns) < dc.MaxConnections {
		p.maybeGrow()
	}

	return best, nil
}

// pickLeastLoaded first tries connections pinned to shardHint; if none
// exist or the best one is already saturated (in-flight at or above
// saturated), it falls back to a bounded random sample across the whole
// pool so cost stays O(sample) rather than O(pool size) under contention.
func pickLeastLoaded(conns []*Conn, shardHint int, sampleSize int, saturated int64) *Conn {
	var best *Conn
	if shardHint >= 0 {
		for _, c := range conns {
			if c.IsClosed() || !c.ShardKnown || c.Shard != shardHint {
				continue
			}
			if best == nil || c.InFlight() < best.InFlight() {
				best = c
			}
		}
		if best != nil && best.InFlight() < saturated {
			return best
		}
	}

	indexes := rand.Perm(len(conns))
	if len(indexes) > sampleSize {
		indexes = indexes[:sampleSize]
	}
	for _, i := range indexes {
		c := conns[i]
		if c.IsClosed() {
			continue
		}
		if best == nil || c.InFlight() < best.InFlight() {
			best = c
		}
	}
	if best == nil {
		best = conns[0]
	}
	return best
}

func (p *Pool) maybeGrow() {
	p.mu.Lock()
	if p.growing {
		p.mu.Unlock()
		return
	}
	p.growing = true
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.growing = false
			p.mu.Unlock()
		}()

		shardHint := len(p.snapshot())
		ctx, cancel := context.WithTimeout(context.Background(), p.connCfg.ConnectTimeout)
		defer cancel()
		if err := p.openOne(ctx, shardHint); err != nil {
			p.logger.Warnf("transport: pool %s: background growth failed: %v", p.host, err)
		}
		if p.cfg.GrowthCooldown > 0 {
			time.Sleep(p.cfg.GrowthCooldown)
		}
	}()
}

// Len reports the pool's current connection count.
func (p *Pool) Len() int { return len(p.snapshot()) }

// ShardHint resolves a routing key to the shard that owns it, or -1 if
// the pool hasn't learned nrShards yet (plain Cassandra, or no
// connection has completed its handshake) or routingKey is empty.
func (p *Pool) ShardHint(routingKey []byte) int {
	if len(routingKey) == 0 {
		return -1
	}
	p.mu.RLock()
	nrShards := p.nrShards
	p.mu.RUnlock()
	if nrShards <= 0 {
		return -1
	}
	return ShardForToken(Token(routingKey), nrShards)
}

// SetDistance transitions the pool when the owning policy reassigns
// the host's distance. Moving to Ignored starts the drain sequence;
// moving away from Ignored re-arms foreground creation.
func (p *Pool) SetDistance(d HostDistance) {
	p.mu.Lock()
	old := p.distance
	p.distance = d
	if d != DistanceIgnored && old == DistanceIgnored {
		p.canForeground = true
	}
	p.mu.Unlock()

	if d == DistanceIgnored {
		p.drain()
	}
}

// drain removes every connection from the borrowable set immediately,
// then disposes them after cfg.DrainGrace so in-flight requests have a
// chance to finish or time out on their own.
func (p *Pool) drain() {
	p.mu.Lock()
	p.state = PoolClosing
	toClose := p.conns
	p.conns = nil
	p.mu.Unlock()

	go func() {
		time.Sleep(p.cfg.DrainGrace)
		for _, c := range toClose {
			c.Close(fmt.Errorf("transport: pool %s drained", p.host))
		}
	}()
}

// Shutdown tears every connection down immediately; used for whole-client
// shutdown rather than a single host's distance change.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.state == PoolShutdown {
		p.mu.Unlock()
		return
	}
	p.state = PoolShuttingDown
	conns := p.conns
	p.conns = nil
	p.mu.Unlock()

	for _, c := range conns {
		c.Close(fmt.Errorf("transport: pool %s shut down", p.host))
	}

	p.mu.Lock()
	p.state = PoolShutdown
	p.mu.Unlock()
	close(p.closed)
}

// Reconnect runs the configured reconnection schedule, retrying Start
// until it succeeds or the pool is shut down.
func (p *Pool) Reconnect(ctx context.Context) {
	p.mu.Lock()
	if p.schedule == nil {
		p.schedule = p.cfg.ReconnectionSchedule()
	}
	schedule := p.schedule
	p.mu.Unlock()

	for {
		select {
		case <-p.closed:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := p.Start(ctx); err == nil {
			p.mu.Lock()
			p.schedule = nil
			p.mu.Unlock()
			return
		}

		delay := time.Duration(schedule.NextDelayMs()) * time.Millisecond
		select {
		case <-time.After(delay):
		case <-p.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}
