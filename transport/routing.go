package transport

import (
	"encoding/binary"

	"github.com/nativecql/coredriver/transport/murmur"
)

// ComposeRoutingKey builds the ordered byte sequence a statement's
// bound partition-key columns hash to. A single-column key is just the
// serialized value; a composite key interleaves each component with a
// 2-byte length prefix and a trailing zero byte.
func ComposeRoutingKey(components [][]byte) []byte {
	if len(components) == 1 {
		return components[0]
	}
	var out []byte
	for _, c := range components {
		var length [2]byte
		binary.BigEndian.PutUint16(length[:], uint16(len(c)))
		out = append(out, length[:]...)
		out = append(out, c...)
		out = append(out, 0)
	}
	return out
}

// Token returns the Murmur3 partition token for a routing key, used by
// both the load-balancing policy's token-aware plan and, on Scylla,
// shard selection.
func Token(routingKey []byte) int64 {
	return murmur.Token(routingKey)
}

// ShardForToken maps a token to a Scylla shard index, per Scylla's
// biased sharding function: the token's unsigned high bits are scaled
// into [0, nrShards).
func ShardForToken(token int64, nrShards int) int {
	if nrShards <= 1 {
		return 0
	}
	biased := uint64(token) + (1 << 63)
	shard := (biased >> 32) * uint64(nrShards) >> 32
	return int(shard)
}
