package queue

import (
	"encoding/binary"
	"hash/fnv"
)

// shuffleKey is a deterministic 64-bit mixing function of (id, seed):
// a 64-bit hash of id, XORed with seed, then one pass of the Murmur3
// 64-bit finalizer (three xor-shift-by-33 steps separated by two
// multiplies). Bit-exact across platforms by construction (no
// floating point, no map iteration order).
func shuffleKey(id string, seed uint64) uint64 {
	return murmur3Finalize(hashString(id) ^ seed)
}

// shuffleKeyIndex is shuffleKey for a group index rather than a track
// id string (used by GroupShuffle / LikedGroupShuffle).
func shuffleKeyIndex(index int, seed uint64) uint64 {
	return murmur3Finalize(hashUint64(uint64(index)) ^ seed)
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func hashUint64(v uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return hashString(string(buf[:]))
}

func murmur3Finalize(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// nextSeed derives a fresh shuffle seed from the previous one; used by
// State.Reshuffle.
func nextSeed(seed uint64) uint64 {
	return murmur3Finalize(seed + 0x9e3779b97f4a7c15)
}
