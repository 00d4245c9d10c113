// Package murmur implements the 64-bit Murmur3 hash Cassandra and
// Scylla use as their default token function, matching the reference
// Cassandra implementation's endianness and seed rather than the
// canonical upstream Murmur3 reference code.
package murmur

const (
	c1 = int64(-8663945395140668459) // 0x87c37b91114253d5
	c2 = int64(5545529020109919103)  // 0x4cf5ad432745937f
)

func rotl64(x int64, r uint) int64 {
	return (x << r) | (int64(uint64(x) >> (64 - r)))
}

func fmix(k int64) int64 {
	k ^= int64(uint64(k) >> 33)
	k *= -49064778989728563 // 0xff51afd7ed558ccd
	k ^= int64(uint64(k) >> 33)
	k *= -4265267296055464877 // 0xc4ceb9fe1a85ec53
	k ^= int64(uint64(k) >> 33)
	return k
}

func getBlock(data []byte, blockIndex int) (int64, int64) {
	off := blockIndex * 16
	k1 := getInt64(data, off)
	k2 := getInt64(data, off+8)
	return k1, k2
}

func getInt64(data []byte, off int) int64 {
	var v uint64
	for i := 0; i < 8 && off+i < len(data); i++ {
		v |= uint64(data[off+i]) << (8 * uint(i))
	}
	return int64(v)
}

// Hash128x64 returns the two 64-bit words of Murmur3's 128-bit output
// for the given seed, as Cassandra's token function computes it.
func Hash128x64(data []byte, seed int64) (int64, int64) {
	length := len(data)
	nblocks := length / 16

	h1, h2 := seed, seed

	for i := 0; i < nblocks; i++ {
		k1, k2 := getBlock(data, i)

		k1 *= c1
		k1 = rotl64(k1, 31)
		k1 *= c2
		h1 ^= k1

		h1 = rotl64(h1, 27)
		h1 += h2
		h1 = h1*5 + 0x52dce729

		k2 *= c2
		k2 = rotl64(k2, 33)
		k2 *= c1
		h2 ^= k2

		h2 = rotl64(h2, 31)
		h2 += h1
		h2 = h2*5 + 0x38495ab5
	}

	tail := data[nblocks*16:]
	var k1, k2 int64
	switch len(tail) & 15 {
	case 15:
		k2 ^= int64(tail[14]) << 48
		fallthrough
	case 14:
		k2 ^= int64(tail[13]) << 40
		fallthrough
	case 13:
		k2 ^= int64(tail[12]) << 32
		fallthrough
	case 12:
		k2 ^= int64(tail[11]) << 24
		fallthrough
	case 11:
		k2 ^= int64(tail[10]) << 16
		fallthrough
	case 10:
		k2 ^= int64(tail[9]) << 8
		fallthrough
	case 9:
		k2 ^= int64(tail[8])
		k2 *= c2
		k2 = rotl64(k2, 33)
		k2 *= c1
		h2 ^= k2
		fallthrough
	case 8:
		k1 ^= int64(tail[7]) << 56
		fallthrough
	case 7:
		k1 ^= int64(tail[6]) << 48
		fallthrough
	case 6:
		k1 ^= int64(tail[5]) << 40
		fallthrough
	case 5:
		k1 ^= int64(tail[4]) << 32
		fallthrough
	case 4:
		k1 ^= int64(tail[3]) << 24
		fallthrough
	case 3:
		k1 ^= int64(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= int64(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= int64(tail[0])
		k1 *= c1
		k1 = rotl64(k1, 31)
		k1 *= c2
		h1 ^= k1
	}

	h1 ^= int64(length)
	h2 ^= int64(length)

	h1 += h2
	h2 += h1

	h1 = fmix(h1)
	h2 = fmix(h2)

	h1 += h2
	h2 += h1

	return h1, h2
}

// Token returns Cassandra's signed 64-bit Murmur3 partition token for a
// routing key: the first word of Hash128x64 with seed 0.
func Token(routingKey []byte) int64 {
	h1, _ := Hash128x64(routingKey, 0)
	return h1
}
