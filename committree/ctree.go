// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package committree implements the minimal append-only commitment-tree
// frontier described in spec §3/§4.B: left/right leaf slots for the pair
// currently being filled, plus a sparse parent spine of completed
// subtree roots.
package committree

import (
	"encoding/binary"
	"io"

	"github.com/toole-brendan/shellsync/hashdomain"
)

// CTree is the frontier state of an append-only Merkle tree at some leaf
// count n. The zero value is the empty tree (n == 0).
type CTree struct {
	Left    *hashdomain.Node
	Right   *hashdomain.Node
	Parents []*hashdomain.Node
}

// New returns the empty frontier.
func New() CTree {
	return CTree{}
}

// GetPosition returns the number of leaves appended so far: each present
// parents[i] stands for a completed subtree of 2^(i+1) leaves (so
// parents[last] is the most significant), and Left and Right count one
// leaf each (spec §3 invariant ii).
func (t CTree) GetPosition() uint64 {
	var pos uint64
	if t.Left != nil {
		pos++
	}
	if t.Right != nil {
		pos++
	}
	for i, p := range t.Parents {
		if p != nil {
			pos += 1 << uint(i+1)
		}
	}
	return pos
}

// Root reconstructs the tree's root at the given height by combining the
// left/right slots (falling back to uncommitted), then folding in each
// parent as the left sibling (or, when absent, the matching empty root
// as the right sibling), then padding with empty roots up to height.
func (t CTree) Root(height uint8, d hashdomain.Domain) hashdomain.Node {
	empty := d.EmptyRoots(height)

	left := valueOr(t.Left, empty[0])
	right := valueOr(t.Right, empty[0])
	acc := d.Combine(0, left, right)

	for i, p := range t.Parents {
		depth := uint8(i + 1)
		if p != nil {
			acc = d.Combine(depth, *p, acc)
		} else {
			acc = d.Combine(depth, acc, empty[depth])
		}
	}

	for depth := uint8(len(t.Parents) + 1); depth < height; depth++ {
		acc = d.Combine(depth, acc, empty[depth])
	}
	return acc
}

func valueOr(n *hashdomain.Node, fallback hashdomain.Node) hashdomain.Node {
	if n == nil {
		return fallback
	}
	return *n
}

// CloneTrimmed returns a copy of t with Parents truncated to at most d
// entries, additionally dropping a trailing empty (nil) entry. Used by
// the witness cursor construction in §4.D's per-witness finalize step.
func (t CTree) CloneTrimmed(d int) CTree {
	out := CTree{Left: t.Left, Right: t.Right}
	n := d
	if n > len(t.Parents) {
		n = len(t.Parents)
	}
	if n < 0 {
		n = 0
	}
	parents := make([]*hashdomain.Node, n)
	copy(parents, t.Parents[:n])
	if len(parents) > 0 && parents[len(parents)-1] == nil {
		parents = parents[:len(parents)-1]
	}
	out.Parents = parents
	return out
}

// WriteBinary encodes the tree as
// opt(left) || opt(right) || varint(len parents) || [opt(parent_i)]
// per spec §6.
func (t CTree) WriteBinary(w io.Writer) error {
	if err := writeOptNode(w, t.Left); err != nil {
		return err
	}
	if err := writeOptNode(w, t.Right); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(len(t.Parents))); err != nil {
		return err
	}
	for _, p := range t.Parents {
		if err := writeOptNode(w, p); err != nil {
			return err
		}
	}
	return nil
}

// ReadBinary decodes a tree written by WriteBinary.
func ReadBinary(r io.ByteReader) (CTree, error) {
	var t CTree
	var err error
	if t.Left, err = readOptNode(r); err != nil {
		return CTree{}, err
	}
	if t.Right, err = readOptNode(r); err != nil {
		return CTree{}, err
	}
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return CTree{}, err
	}
	t.Parents = make([]*hashdomain.Node, n)
	for i := range t.Parents {
		if t.Parents[i], err = readOptNode(r); err != nil {
			return CTree{}, err
		}
	}
	return t, nil
}

func writeUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func writeOptNode(w io.Writer, n *hashdomain.Node) error {
	if n == nil {
		_, err := w.Write([]byte{0})
		return err
	}
	if _, err := w.Write([]byte{1}); err != nil {
		return err
	}
	_, err := w.Write(n[:])
	return err
}

func readOptNode(r io.ByteReader) (*hashdomain.Node, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	var buf [hashdomain.NodeSize]byte
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	n := hashdomain.Node(buf)
	return &n, nil
}
