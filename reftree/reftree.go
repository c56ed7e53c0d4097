// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package reftree is the "obviously correct" reference oracle for §8's
// tree/witness equivalence property: unlike blockproc.Processor, it
// never tracks a frontier incrementally — every query rebuilds the
// commitment tree from the full leaf set, the same "rehash everything
// from a flat leaf slice" idiom the teacher's
// BuildMerkleTreeStore/CalcMerkleRoot use, except padded level by level
// with the domain's empty_roots ladder (§3 invariant iii) instead of
// self-concatenation, since a shielded tree's missing leaves are
// "uncommitted", not duplicated siblings.
package reftree

import "github.com/toole-brendan/shellsync/hashdomain"

// Tree is a full, non-incremental commitment tree over a fixed leaf set.
type Tree struct {
	domain hashdomain.Domain
	leaves []hashdomain.Node
}

// New builds a reference tree over leaves.
func New(domain hashdomain.Domain, leaves []hashdomain.Node) *Tree {
	out := make([]hashdomain.Node, len(leaves))
	copy(out, leaves)
	return &Tree{domain: domain, leaves: out}
}

// Root recomputes the tree root at the given height, padding absent
// leaves and absent sibling subtrees with the domain's empty roots.
func (t *Tree) Root(height uint8) hashdomain.Node {
	empty := t.domain.EmptyRoots(height)
	level := make([]hashdomain.Node, len(t.leaves))
	copy(level, t.leaves)

	for depth := uint8(0); depth < height; depth++ {
		next := make([]hashdomain.Node, (len(level)+1)/2)
		for i := range next {
			left := empty[depth]
			right := empty[depth]
			if 2*i < len(level) {
				left = level[2*i]
			}
			if 2*i+1 < len(level) {
				right = level[2*i+1]
			}
			next[i] = t.domain.Combine(depth, left, right)
		}
		level = next
	}
	if len(level) == 0 {
		return empty[height]
	}
	return level[0]
}

// AuthPath computes the full authentication path of the leaf at
// position, height values long, by recomputing the sibling at every
// level from the current full leaf set.
func (t *Tree) AuthPath(position uint64, height uint8) []hashdomain.Node {
	empty := t.domain.EmptyRoots(height)
	level := make([]hashdomain.Node, len(t.leaves))
	copy(level, t.leaves)

	path := make([]hashdomain.Node, 0, height)
	pos := position
	for depth := uint8(0); depth < height; depth++ {
		sibIdx := pos ^ 1
		sib := empty[depth]
		if int(sibIdx) < len(level) {
			sib = level[sibIdx]
		}
		path = append(path, sib)

		next := make([]hashdomain.Node, (len(level)+1)/2)
		for i := range next {
			left := empty[depth]
			right := empty[depth]
			if 2*i < len(level) {
				left = level[2*i]
			}
			if 2*i+1 < len(level) {
				right = level[2*i+1]
			}
			next[i] = t.domain.Combine(depth, left, right)
		}
		level = next
		pos /= 2
	}
	return path
}
