package transport

import "go.uber.org/atomic"

// HostDistance tells the pool how many connections to maintain to a
// host: Local and Remote hosts get real pools, Ignored hosts get none.
type HostDistance int

const (
	DistanceLocal HostDistance = iota
	DistanceRemote
	DistanceIgnored
)

// Host is a cluster member as the load-balancing policy sees it.
type Host struct {
	Address  string
	DC       string
	Rack     string
	Up       bool
	Tokens   []int64 // owned token ranges, for token-aware routing
}

// HostSelectionPolicy produces a query plan: an ordered iterator of
// hosts to try for one request, given its routing key (if any) and the
// current topology.
type HostSelectionPolicy interface {
	NewQueryPlan(routingKey []byte, hosts []*Host) []*Host
	Distance(h *Host) HostDistance
}

// RoundRobinPolicy cycles through every UP host with no locality
// preference, the simplest plan a caller without token metadata can
// still get deterministic coverage from.
type RoundRobinPolicy struct {
	counter atomic.Uint64
}

func NewRoundRobinPolicy() *RoundRobinPolicy { return &RoundRobinPolicy{} }

func (p *RoundRobinPolicy) NewQueryPlan(_ []byte, hosts []*Host) []*Host {
	up := upHosts(hosts)
	if len(up) == 0 {
		return nil
	}
	start := int(p.counter.Add(1)) % len(up)
	plan := make([]*Host, len(up))
	for i := range up {
		plan[i] = up[(start+i)%len(up)]
	}
	return plan
}

func (p *RoundRobinPolicy) Distance(h *Host) HostDistance {
	if !h.Up {
		return DistanceIgnored
	}
	return DistanceLocal
}

// DCAwareRoundRobinPolicy prefers hosts in localDC, falling back to
// remote hosts (up to maxRemote of them) only once local hosts are
// exhausted.
type DCAwareRoundRobinPolicy struct {
	LocalDC   string
	MaxRemote int
	counter   atomic.Uint64
}

func NewDCAwareRoundRobinPolicy(localDC string, maxRemote int) *DCAwareRoundRobinPolicy {
	return &DCAwareRoundRobinPolicy{LocalDC: localDC, MaxRemote: maxRemote}
}

func (p *DCAwareRoundRobinPolicy) NewQueryPlan(_ []byte, hosts []*Host) []*Host {
	var local, remote []*Host
	for _, h := range upHosts(hosts) {
		if h.DC == p.LocalDC {
			local = append(local, h)
		} else {
			remote = append(remote, h)
		}
	}
	start := int(p.counter.Add(1))
	plan := rotate(local, start)
	remotePlan := rotate(remote, start)
	if len(remotePlan) > p.MaxRemote {
		remotePlan = remotePlan[:p.MaxRemote]
	}
	return append(plan, remotePlan...)
}

func (p *DCAwareRoundRobinPolicy) Distance(h *Host) HostDistance {
	if !h.Up {
		return DistanceIgnored
	}
	if h.DC == p.LocalDC {
		return DistanceLocal
	}
	return DistanceRemote
}

// TokenAwarePolicy wraps another policy, moving replicas that own the
// request's routing key token to the front of its plan and deferring to
// the wrapped policy for everything else (and when no routing key was
// supplied at all).
type TokenAwarePolicy struct {
	Fallback HostSelectionPolicy
}

func NewTokenAwarePolicy(fallback HostSelectionPolicy) *TokenAwarePolicy {
	return &TokenAwarePolicy{Fallback: fallback}
}

func (p *TokenAwarePolicy) NewQueryPlan(routingKey []byte, hosts []*Host) []*Host {
	fallbackPlan := p.Fallback.NewQueryPlan(routingKey, hosts)
	if routingKey == nil {
		return fallbackPlan
	}
	token := Token(routingKey)
	replicas := replicasForToken(hosts, token)
	if len(replicas) == 0 {
		return fallbackPlan
	}
	replicaSet := make(map[string]bool, len(replicas))
	for _, h := range replicas {
		replicaSet[h.Address] = true
	}
	plan := append([]*Host{}, replicas...)
	for _, h := range fallbackPlan {
		if !replicaSet[h.Address] {
			plan = append(plan, h)
		}
	}
	return plan
}

func (p *TokenAwarePolicy) Distance(h *Host) HostDistance { return p.Fallback.Distance(h) }

// replicasForToken returns the UP hosts, in input order, that own at
// least one token greater than or equal to token — a simplified
// stand-in for a full vnode-range index, without a separate ring
// structure. Hosts are not ordered by how close their tokens are to the
// requested one.
func replicasForToken(hosts []*Host, token int64) []*Host {
	var owners []*Host
	for _, h := range hosts {
		if !h.Up {
			continue
		}
		for _, t := range h.Tokens {
			if t >= token {
				owners = append(owners, h)
				break
			}
		}
	}
	return owners
}

func upHosts(hosts []*Host) []*Host {
	var out []*Host
	for _, h := range hosts {
		if h.Up {
			out = append(out, h)
		}
	}
	return out
}

func rotate(hosts []*Host, start int) []*Host {
	if len(hosts) == 0 {
		return nil
	}
	start %= len(hosts)
	out := make([]*Host, len(hosts))
	for i := range hosts {
		out[i] = hosts[(start+i)%len(hosts)]
	}
	return out
}
