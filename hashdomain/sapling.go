// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hashdomain

import (
	"crypto/sha256"
	"math/big"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/blake2s"
)

// Sapling is the windowed Pedersen-style domain. Depth acts as the domain
// separator: each depth gets its own pair of deterministic generator
// points, and a node is combine(left, right) = BLAKE2s-256(left*Q0(depth) +
// right*Q1(depth)) where Q0/Q1 are derived the same way the confidential
// value generator H is derived in the teacher's commitment scheme
// (SHA-256 of a label, then scalar-base-multiplied onto the curve).
//
// secp256k1 stands in for the real Jubjub curve used by mainnet Sapling;
// see DESIGN.md Open Question 4.
type Sapling struct {
	gens generatorCache
}

// NewSapling constructs a Sapling domain instance.
func NewSapling() *Sapling {
	return &Sapling{}
}

func (s *Sapling) Name() string { return "sapling" }

// saplingUncommitted is Sapling's "no note" leaf commitment: the node
// whose first byte is 0x01 and whose remaining bytes are zero.
var saplingUncommitted = Node{0x01}

func (s *Sapling) Uncommitted() Node { return saplingUncommitted }

func (s *Sapling) EmptyRoots(height uint8) []Node { return computeEmptyRoots(s, height) }

func (s *Sapling) Combine(depth uint8, left, right Node) Node {
	q0 := s.gens.get(depth, 0)
	q1 := s.gens.get(depth, 1)

	lx, ly := btcec.S256().ScalarMult(q0.X(), q0.Y(), left[:])
	rx, ry := btcec.S256().ScalarMult(q1.X(), q1.Y(), right[:])
	sx, sy := btcec.S256().Add(lx, ly, rx, ry)

	sum := make([]byte, 0, 64)
	sum = append(sum, sx.Bytes()...)
	sum = append(sum, sy.Bytes()...)
	digest := blake2s.Sum256(sum)
	return Node(digest)
}

// generatorCache lazily derives and memoises the per-depth, per-channel
// generator points so repeated combines at the same depth (the common
// case, since a batch advances many pairs at the same level) don't
// re-derive the point every call.
type generatorCache struct {
	mu    sync.Mutex
	cache map[[2]uint8]*btcec.PublicKey
}

func (g *generatorCache) get(depth, channel uint8) *btcec.PublicKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cache == nil {
		g.cache = make(map[[2]uint8]*btcec.PublicKey)
	}
	key := [2]uint8{depth, channel}
	if pt, ok := g.cache[key]; ok {
		return pt
	}
	pt := deriveGenerator("Shell Sapling Node Generator v1.0", depth, channel)
	g.cache[key] = pt
	return pt
}

// deriveGenerator derives a deterministic curve point for (label, depth,
// channel) the way the teacher's GetValueGenerator derives H: hash a
// label into a scalar, then scalar-base-multiply.
func deriveGenerator(label string, depth, channel uint8) *btcec.PublicKey {
	h := sha256.New()
	h.Write([]byte(label))
	h.Write([]byte{depth, channel})
	seed := h.Sum(nil)

	scalar := new(big.Int).SetBytes(seed)
	scalar.Mod(scalar, btcec.S256().N)

	hx, hy := btcec.S256().ScalarBaseMult(scalar.Bytes())
	var fx, fy btcec.FieldVal
	fx.SetByteSlice(hx.Bytes())
	fy.SetByteSlice(hy.Bytes())
	return btcec.NewPublicKey(&fx, &fy)
}
