package transport

import (
	"context"
	"fmt"
	"sync"
)

// ClusterConfig configures the set of hosts a Cluster maintains pools
// for and the policies it delegates host selection and reconnection to.
type ClusterConfig struct {
	Hosts   []string // "host:port" seeds; the cluster does not add or remove hosts
	ConnCfg ConnConfig
	PoolCfg PoolConfig
	Policy  HostSelectionPolicy
}

// Cluster owns one Pool per known host plus the policy that turns a
// routing key into a query plan. It is the thing C7's request pipeline
// asks for "the next host to try."
type Cluster struct {
	cfg    ClusterConfig
	logger Logger

	mu    sync.RWMutex
	hosts map[string]*Host
	pools map[string]*Pool
}

func NewCluster(cfg ClusterConfig, logger Logger) *Cluster {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Cluster{
		cfg:    cfg,
		logger: logger,
		hosts:  make(map[string]*Host),
		pools:  make(map[string]*Pool),
	}
}

// Connect opens pools to every seed host, in the foreground, per
// §4.4's "foreground open is allowed on host UP" rule applied to a
// freshly constructed cluster.
func (c *Cluster) Connect(ctx context.Context) error {
	var firstErr error
	for _, addr := range c.cfg.Hosts {
		h := &Host{Address: addr, Up: true}
		connCfg := c.cfg.ConnCfg
		connCfg.Host, connCfg.Port = splitHostPort(addr)

		distance := c.cfg.Policy.Distance(h)
		pool := NewPool(addr, connCfg, c.cfg.PoolCfg, distance, c.logger, c.onAllConnectionsClosed)

		c.mu.Lock()
		c.hosts[addr] = h
		c.pools[addr] = pool
		c.mu.Unlock()

		if err := pool.Start(ctx); err != nil {
			c.logger.Warnf("transport: cluster: host %s unreachable: %v", addr, err)
			h.Up = false
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
	}

	if len(c.livePools()) == 0 {
		return fmt.Errorf("transport: no seed host reachable: %w", firstErr)
	}
	return nil
}

func (c *Cluster) livePools() []*Pool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Pool, 0, len(c.pools))
	for _, p := range c.pools {
		out = append(out, p)
	}
	return out
}

func (c *Cluster) onAllConnectionsClosed(host string) {
	c.mu.Lock()
	h, ok := c.hosts[host]
	pool := c.pools[host]
	c.mu.Unlock()
	if !ok {
		return
	}
	h.Up = false
	c.logger.Warnf("transport: host %s marked DOWN, all connections closed", host)
	go pool.Reconnect(context.Background())
}

// QueryPlan returns the ordered hosts to try for one request, per the
// configured policy.
func (c *Cluster) QueryPlan(routingKey []byte) []*Host {
	c.mu.RLock()
	hosts := make([]*Host, 0, len(c.hosts))
	for _, h := range c.hosts {
		hosts = append(hosts, h)
	}
	c.mu.RUnlock()
	return c.cfg.Policy.NewQueryPlan(routingKey, hosts)
}

// PoolFor returns the connection pool for a host address, or nil if the
// cluster doesn't know that host.
func (c *Cluster) PoolFor(addr string) *Pool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pools[addr]
}

// AllPools returns every pool the cluster currently owns, used by the
// reprepare coordinator to fan out over existing connections.
func (c *Cluster) AllPools() map[string]*Pool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*Pool, len(c.pools))
	for k, v := range c.pools {
		out[k] = v
	}
	return out
}

// Shutdown tears down every pool.
func (c *Cluster) Shutdown() {
	for _, p := range c.livePools() {
		p.Shutdown()
	}
}

func splitHostPort(addr string) (string, int) {
	host, port := addr, 9042
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			host = addr[:i]
			fmt.Sscanf(addr[i+1:], "%d", &port)
			break
		}
	}
	return host, port
}
