package transport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testHosts() []*Host {
	return []*Host{
		{Address: "h1", DC: "dc1", Up: true, Tokens: []int64{100, 200}},
		{Address: "h2", DC: "dc1", Up: true, Tokens: []int64{300, 400}},
		{Address: "h3", DC: "dc2", Up: true, Tokens: []int64{500, 600}},
		{Address: "h4", DC: "dc1", Up: false},
	}
}

func TestRoundRobinSkipsDownHosts(t *testing.T) {
	p := NewRoundRobinPolicy()
	plan := p.NewQueryPlan(nil, testHosts())
	assert.Len(t, plan, 3)
	for _, h := range plan {
		assert.True(t, h.Up)
	}
}

func TestDCAwarePrefersLocal(t *testing.T) {
	p := NewDCAwareRoundRobinPolicy("dc1", 1)
	plan := p.NewQueryPlan(nil, testHosts())
	require := assert.New(t)
	require.Len(plan, 3)
	require.Equal("dc1", plan[0].DC)
	require.Equal("dc1", plan[1].DC)
	require.Equal("dc2", plan[2].DC)
}

func TestTokenAwareMovesReplicasFirst(t *testing.T) {
	fallback := NewRoundRobinPolicy()
	p := NewTokenAwarePolicy(fallback)
	// Token("routing-key") is above every token in testHosts, so the only
	// owner is the added host holding the largest possible token.
	hosts := append(testHosts(), &Host{Address: "owner", DC: "dc1", Up: true, Tokens: []int64{math.MaxInt64}})
	plan := p.NewQueryPlan([]byte("routing-key"), hosts)
	assert.NotEmpty(t, plan)
	assert.Len(t, plan, 4)
	assert.Equal(t, "owner", plan[0].Address)
}

func TestTokenAwareFallsBackWithoutRoutingKey(t *testing.T) {
	fallback := NewRoundRobinPolicy()
	p := NewTokenAwarePolicy(fallback)
	plan := p.NewQueryPlan(nil, testHosts())
	assert.Len(t, plan, 3)
}
