package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeRoutingKeyComposite(t *testing.T) {
	key := ComposeRoutingKey([][]byte{[]byte("aValue1"), []byte("bValue1")})
	assert.Equal(t, []byte{
		0x00, 0x07, 0x61, 0x56, 0x61, 0x6C, 0x75, 0x65, 0x31, 0x00,
		0x00, 0x07, 0x62, 0x56, 0x61, 0x6C, 0x75, 0x65, 0x31, 0x00,
	}, key)
}

func TestComposeRoutingKeySingleColumn(t *testing.T) {
	key := ComposeRoutingKey([][]byte{[]byte("onlyValue")})
	assert.Equal(t, []byte("onlyValue"), key)
}

func TestShardForTokenDistribution(t *testing.T) {
	const nrShards = 4
	counts := make([]int, nrShards)
	for i := 0; i < 4000; i++ {
		key := ComposeRoutingKey([][]byte{[]byte{byte(i), byte(i >> 8), byte(i >> 16)}})
		tok := Token(key)
		shard := ShardForToken(tok, nrShards)
		counts[shard]++
	}
	for _, c := range counts {
		assert.InDelta(t, 1000, c, 150)
	}
}
