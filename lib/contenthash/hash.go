// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contenthash

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"

	"github.com/zeebo/blake3"
)

// Size is the byte length of a Hash.
const Size = 32

// Hash is a 32-byte BLAKE3 keyed digest of a serialized bucket. Hashes
// are comparable and used directly as map keys. A Hash is never
// mutated after construction.
type Hash [Size]byte

// domainKey is the 32-byte key for BLAKE3 keyed hashing. The bytes are
// the ASCII domain name, zero-padded, so the key is readable in hex
// dumps. Changing it invalidates every hash already written to disk.
var domainKey = [Size]byte{
	'e', 'v', 'e', 'n', 't', 'f', 'l', 'o', 'w', '.', 'b', 'u', 'c', 'k', 'e', 't',
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Sum computes the bucket-domain hash of data. Writers pass the
// uncompressed serialized bucket so identical content hashes
// identically regardless of the compression algorithm chosen.
func Sum(data []byte) Hash {
	// NewKeyed only fails for a key of the wrong length, which the
	// fixed-size array rules out.
	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		panic("contenthash: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// IsZero reports whether h is the zero value, which the wire format
// uses for "no hash recorded".
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex characters, for log lines.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:6])
}

// Mix folds the hash into 32 bits with a seeded mixing function over
// its eight little-endian 4-byte words. Different seeds give
// independent distributions over the same hashes, which is what shard
// selection needs. The result carries no collision guarantee.
func (h Hash) Mix(seed uint32) uint32 {
	const (
		c1 = 0xcc9e2d51
		c2 = 0x1b873593
	)
	state := seed
	for offset := 0; offset < Size; offset += 4 {
		word := binary.LittleEndian.Uint32(h[offset:])
		word *= c1
		word = bits.RotateLeft32(word, 15)
		word *= c2
		state ^= word
		state = bits.RotateLeft32(state, 13)
		state = state*5 + 0xe6546b64
	}
	state ^= Size
	state ^= state >> 16
	state *= 0x85ebca6b
	state ^= state >> 13
	state *= 0xc2b2ae35
	state ^= state >> 16
	return state
}

// Parse parses a 64-character hex string into a Hash.
func Parse(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing content hash: %w", err)
	}
	if len(decoded) != Size {
		return hash, fmt.Errorf("content hash is %d bytes, want %d", len(decoded), Size)
	}
	copy(hash[:], decoded)
	return hash, nil
}

// FromBytes copies a 32-byte slice into a Hash.
func FromBytes(raw []byte) (Hash, error) {
	var hash Hash
	if len(raw) != Size {
		return hash, fmt.Errorf("content hash is %d bytes, want %d", len(raw), Size)
	}
	copy(hash[:], raw)
	return hash, nil
}
