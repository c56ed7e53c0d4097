// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package hashdomain defines the pluggable hash-domain contract shared by
// the commitment tree, the witness, and the block processor: a 32-byte
// Node type plus a depth-keyed, pure combine function. Two concrete
// domains are provided, sapling and orchard, each with its own leaf
// "uncommitted" placeholder and empty-root ladder.
package hashdomain

import "encoding/hex"

// NodeSize is the width in bytes of every commitment-tree node.
const NodeSize = 32

// Node is a single 32-byte hash value. The zero Node is not a valid value
// in any domain; use Domain.Uncommitted for the empty-leaf placeholder.
type Node [NodeSize]byte

// NewNode copies b into a Node. It panics if len(b) != NodeSize, mirroring
// the teacher's fixed-size hash constructors.
func NewNode(b []byte) Node {
	if len(b) != NodeSize {
		panic("hashdomain: wrong node length")
	}
	var n Node
	copy(n[:], b)
	return n
}

// Bytes returns a copy of the node's underlying bytes.
func (n Node) Bytes() []byte {
	out := make([]byte, NodeSize)
	copy(out, n[:])
	return out
}

// String returns the lowercase hex encoding of the node.
func (n Node) String() string {
	return hex.EncodeToString(n[:])
}

// WriteBinary appends the node's binary encoding to dst.
func (n Node) WriteBinary(dst []byte) []byte {
	return append(dst, n[:]...)
}

// ReadBinary reads a Node from the front of src, returning the node and
// the remaining bytes.
func ReadBinary(src []byte) (Node, []byte, error) {
	if len(src) < NodeSize {
		return Node{}, nil, errShortRead
	}
	return NewNode(src[:NodeSize]), src[NodeSize:], nil
}

// Domain parameterises the commitment tree and witness types over one
// concrete hash scheme. Combine MUST be pure, deterministic, and safe to
// call concurrently from independent goroutines (the block processor
// batches it across tree levels).
type Domain interface {
	// Name identifies the domain, used as the persisted ledger table
	// discriminator (§9 "Persisted formats for the two domains are
	// distinct tables").
	Name() string

	// Combine hashes a left/right node pair at the given tree depth
	// (0 = the level directly above the leaves).
	Combine(depth uint8, left, right Node) Node

	// Uncommitted is the domain's placeholder value for an absent leaf.
	Uncommitted() Node

	// EmptyRoots returns empty_roots[0..=height], where
	// empty_roots[0] = Uncommitted() and
	// empty_roots[d] = Combine(d-1, empty_roots[d-1], empty_roots[d-1]).
	EmptyRoots(height uint8) []Node
}

func computeEmptyRoots(d Domain, height uint8) []Node {
	roots := make([]Node, height+1)
	roots[0] = d.Uncommitted()
	for i := uint8(1); i <= height; i++ {
		roots[i] = d.Combine(i-1, roots[i-1], roots[i-1])
	}
	return roots
}
