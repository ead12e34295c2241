package oracle

import (
	"FlightSurety/internal/event"
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Entropy is the source of unpredictability behind index selection.
// Implementations must be deterministic in their inputs so that replaying
// the call log reproduces the same indices.
type Entropy interface {
	// Draw returns 32 pseudo-random bytes bound to salt, caller and nonce.
	Draw(salt [32]byte, caller event.Address, nonce uint64) [32]byte
}

// KeccakEntropy hashes a secret genesis seed with the call inputs:
// Keccak256(seed || salt || nonce || caller).
type KeccakEntropy struct {
	seed []byte
}

func NewKeccakEntropy(seed []byte) *KeccakEntropy {
	s := make([]byte, len(seed))
	copy(s, seed)
	return &KeccakEntropy{seed: s}
}

func (e *KeccakEntropy) Draw(salt [32]byte, caller event.Address, nonce uint64) [32]byte {
	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)

	return keccak(e.seed, salt[:], nonceBuf[:], caller[:])
}

// StaticEntropy always draws the same bytes. Every oracle then receives the
// same indices and every request uses the first of them.
type StaticEntropy [32]byte

func (s StaticEntropy) Draw([32]byte, event.Address, uint64) [32]byte {
	return s
}

func keccak(parts ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// word returns the i-th big-endian uint64 of a draw.
func word(d [32]byte, i int) uint64 {
	return binary.BigEndian.Uint64(d[i*8 : i*8+8])
}

// pickIndexes selects IndexCount distinct values in [0, domain) from one
// draw, narrowing the remaining choices after each pick.
func pickIndexes(d [32]byte, domain uint8) [IndexCount]uint8 {
	remaining := make([]uint8, domain)
	for i := range remaining {
		remaining[i] = uint8(i)
	}

	var out [IndexCount]uint8
	for i := 0; i < IndexCount; i++ {
		j := word(d, i) % uint64(len(remaining))
		out[i] = remaining[j]
		remaining = append(remaining[:j], remaining[j+1:]...)
	}
	return out
}
