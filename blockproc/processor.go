// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockproc advances one commitment-tree frontier and a set of
// per-leaf witnesses in lock-step across batches of newly appended
// leaves, per spec §4.D. It never materialises the full tree: every
// level of the batch is collapsed in place and discarded once its
// parents are known.
package blockproc

import (
	"github.com/toole-brendan/shellsync/committree"
	"github.com/toole-brendan/shellsync/hashdomain"
	"github.com/toole-brendan/shellsync/internal/workerpool"
	"github.com/toole-brendan/shellsync/witness"
)

// Processor owns exactly one CTree and the slice of active Witnesses
// (spec §9 "Ownership"): both are transferred in through New and
// handed back out through Finalize. There is no sharing across
// Processor instances.
type Processor struct {
	domain     hashdomain.Domain
	prevTree   committree.CTree
	witnesses  []witness.Witness
	firstBlock bool
}

// New constructs a Processor that will advance tree and witnesses
// across subsequent AddNodes calls.
func New(domain hashdomain.Domain, tree committree.CTree, witnesses []witness.Witness) *Processor {
	ws := make([]witness.Witness, len(witnesses))
	copy(ws, witnesses)
	return &Processor{
		domain:     domain,
		prevTree:   tree,
		witnesses:  ws,
		firstBlock: true,
	}
}

// AddNodes advances the tree and every tracked witness across leaves,
// a batch of newly appended commitments, additionally beginning
// tracking of newWitnesses (one per note decrypted from this batch).
// An empty leaves slice is a no-op, per §4.D's public surface note.
func (p *Processor) AddNodes(leaves []hashdomain.Node, newWitnesses []witness.Witness) {
	if len(leaves) == 0 {
		return
	}
	p.witnesses = append(p.witnesses, newWitnesses...)
	commitments := make([]hashdomain.Node, len(leaves))
	copy(commitments, leaves)
	tree, ws := advanceTree(p.domain, p.prevTree, p.witnesses, commitments, p.firstBlock)
	p.firstBlock = false
	p.prevTree = tree
	p.witnesses = ws
}

// Finalize flushes any pending level collapses with an empty batch and
// returns the advanced tree and witnesses, transferring ownership back
// to the caller. Calling Finalize without an intervening AddNodes
// returns the inputs unchanged.
func (p *Processor) Finalize() (committree.CTree, []witness.Witness) {
	if p.firstBlock {
		return p.prevTree, p.witnesses
	}
	return advanceTree(p.domain, p.prevTree, p.witnesses, nil, false)
}

// Snapshot returns the tree and witnesses as advanced by every AddNodes
// call so far, without flushing pending level collapses the way
// Finalize does. Unlike Finalize, Snapshot leaves the Processor live
// for further AddNodes calls; callers that need a durable per-batch
// checkpoint (a committed-batch's row in the ledger's blocks table)
// read it this way rather than finalizing mid-sync.
func (p *Processor) Snapshot() (committree.CTree, []witness.Witness) {
	ws := make([]witness.Witness, len(p.witnesses))
	copy(ws, p.witnesses)
	return p.prevTree, ws
}

// advanceTree is the single "advance" algorithm of §4.D: it collects,
// per level, the tail that carries over to the next tree and the
// witness-observable siblings, combines pairs in parallel, and steps up
// a level, repeating until the commitment buffer is empty and the tree
// builder reports finished.
func advanceTree(domain hashdomain.Domain, prevTree committree.CTree, prevWitnesses []witness.Witness, commitments []hashdomain.Node, firstBlock bool) (committree.CTree, []witness.Witness) {
	tb := newTreeBuilder(domain, prevTree, len(commitments), firstBlock)
	wbs := make([]*witnessBuilder, len(prevWitnesses))
	for i, w := range prevWitnesses {
		wbs[i] = newWitnessBuilder(tb, w, len(commitments))
	}

	for len(commitments) > 0 || !tb.finished() {
		n := tb.collect(commitments)
		for _, wb := range wbs {
			wb.collect(commitments, tb)
		}
		nn := combineLevel(domain, commitments, tb.offset, n, tb.depth)
		tb.up()
		for _, wb := range wbs {
			wb.up()
		}
		commitments = commitments[:nn]
	}

	out := make([]witness.Witness, len(wbs))
	for i, wb := range wbs {
		out[i] = wb.finalize(tb)
	}
	return tb.finalize(), out
}

// getAt reads the logical commitment at index, transparently
// substituting the carried-over offset (the prior block's incomplete
// pair tail) at virtual index 0 when one is in play (§4.D step 1).
func getAt(commitments []hashdomain.Node, index int, offset *hashdomain.Node) hashdomain.Node {
	if offset != nil {
		if index > 0 {
			return commitments[index-1]
		}
		return *offset
	}
	return commitments[index]
}

// treeBuilder mirrors the reference CTreeBuilder: it walks the batch
// level by level, producing the next committed frontier.
type treeBuilder struct {
	domain hashdomain.Domain

	left, right *hashdomain.Node
	prevTree    committree.CTree
	nextTree    committree.CTree

	start      uint64
	totalLen   int
	depth      uint8
	offset     *hashdomain.Node
	firstBlock bool
}

func newTreeBuilder(domain hashdomain.Domain, prevTree committree.CTree, length int, firstBlock bool) *treeBuilder {
	return &treeBuilder{
		domain:     domain,
		left:       prevTree.Left,
		right:      prevTree.Right,
		prevTree:   prevTree,
		nextTree:   committree.New(),
		start:      prevTree.GetPosition(),
		totalLen:   length,
		firstBlock: firstBlock,
	}
}

// collect implements §4.D step 1: decide the virtual offset, compute
// m (the logical length including any carried-over tail), and peel off
// the even prefix n, pushing the odd tail into the next tree (as the
// new leaf pair at depth 0, or as a parent entry at depth > 0).
func (tb *treeBuilder) collect(commitments []hashdomain.Node) int {
	var offset *hashdomain.Node
	var m int
	if tb.left != nil && tb.right == nil {
		offset = tb.left
		m = len(commitments) + 1
	} else {
		m = len(commitments)
	}

	n := 0
	if tb.totalLen > 0 {
		if tb.depth == 0 {
			if m%2 == 0 {
				l := getAt(commitments, m-2, offset)
				r := getAt(commitments, m-1, offset)
				tb.nextTree.Left = &l
				tb.nextTree.Right = &r
				n = m - 2
			} else {
				l := getAt(commitments, m-1, offset)
				tb.nextTree.Left = &l
				tb.nextTree.Right = nil
				n = m - 1
			}
		} else {
			if m%2 == 0 {
				tb.nextTree.Parents = append(tb.nextTree.Parents, nil)
				n = m
			} else {
				last := getAt(commitments, m-1, offset)
				tb.nextTree.Parents = append(tb.nextTree.Parents, &last)
				n = m - 1
			}
		}
	}

	tb.offset = offset
	return n
}

// adjustedStart shifts the level's starting absolute index back by one
// when prev (an in-play offset/right carry) is present, since that
// carried node occupies the virtual predecessor slot.
func (tb *treeBuilder) adjustedStart(prev *hashdomain.Node) uint64 {
	if prev != nil {
		return tb.start - 1
	}
	return tb.start
}

// up implements §4.D step 4: derive this level's combined root (if both
// frontier slots were full), pair it against the prior tree's parent at
// this depth, and step to the next level.
func (tb *treeBuilder) up() {
	var h *hashdomain.Node
	if tb.left != nil && tb.right != nil {
		v := tb.domain.Combine(tb.depth, *tb.left, *tb.right)
		h = &v
	}

	var l, r *hashdomain.Node
	if int(tb.depth) < len(tb.prevTree.Parents) && tb.prevTree.Parents[tb.depth] != nil {
		l, r = tb.prevTree.Parents[tb.depth], h
	} else {
		l, r = h, nil
	}

	tb.left, tb.right = l, r
	tb.start /= 2
	tb.depth++
}

// finished reports whether the builder has walked past every completed
// parent level and has no pending frontier slots left to carry.
func (tb *treeBuilder) finished() bool {
	return int(tb.depth) >= len(tb.prevTree.Parents) && tb.left == nil && tb.right == nil
}

// finalize returns the next committed frontier, or the unchanged
// previous tree when this was an empty flush with nothing to advance.
func (tb *treeBuilder) finalize() committree.CTree {
	if tb.totalLen > 0 {
		return tb.nextTree
	}
	return tb.prevTree
}

// combineLevel hashes the n/2 sibling pairs at depth in parallel
// (§4.D step 3, §5 "CPU-parallel batches"), writing the results back
// over the front of commitments and returning the new length.
func combineLevel(domain hashdomain.Domain, commitments []hashdomain.Node, offset *hashdomain.Node, n int, depth uint8) int {
	nn := n / 2
	if nn == 0 {
		return 0
	}
	next := make([]hashdomain.Node, nn)
	workerpool.Run(nn, func(i int) {
		l := getAt(commitments, 2*i, offset)
		r := getAt(commitments, 2*i+1, offset)
		next[i] = domain.Combine(depth, l, r)
	})
	copy(commitments[:nn], next)
	return nn
}

// witnessBuilder mirrors the reference WitnessBuilder: it shadows one
// witness's logical leaf position through the same level-by-level walk
// the treeBuilder performs, recording whatever siblings become visible.
type witnessBuilder struct {
	w      witness.Witness
	p      uint64
	inside bool
}

func newWitnessBuilder(tb *treeBuilder, prev witness.Witness, count int) *witnessBuilder {
	pos := prev.Position
	inside := pos >= tb.start && pos < tb.start+uint64(count)
	return &witnessBuilder{w: prev, p: pos, inside: inside}
}

// collect implements §4.D step 2: when this witness's leaf falls inside
// the batch at the current level, write the sibling into the witness's
// mutable tree snapshot; separately, whenever the witness's successor
// slot becomes visible and the corresponding slot in the immutable
// snapshot is still empty, append the sibling to Filled. This step never
// mutates the commitment buffer.
func (wb *witnessBuilder) collect(commitments []hashdomain.Node, tb *treeBuilder) {
	offset := tb.offset
	depth := tb.depth
	tree := &wb.w.Tree

	if wb.inside {
		rp := wb.p - tb.adjustedStart(offset)
		if depth == 0 {
			if wb.p%2 == 1 {
				l := getAt(commitments, int(rp)-1, offset)
				r := getAt(commitments, int(rp), offset)
				tree.Left = &l
				tree.Right = &r
			} else {
				l := getAt(commitments, int(rp), offset)
				tree.Left = &l
				tree.Right = nil
			}
		} else {
			if wb.p%2 == 1 {
				l := getAt(commitments, int(rp)-1, offset)
				tree.Parents = append(tree.Parents, &l)
			} else if wb.p != 0 {
				tree.Parents = append(tree.Parents, nil)
			}
		}
	}

	var right *hashdomain.Node
	if depth != 0 && !tb.firstBlock {
		right = tb.right
	}

	p1 := wb.p + 1
	hasP1 := p1 >= tb.adjustedStart(right) && p1 < tb.start+uint64(len(commitments))
	if hasP1 {
		v := getAt(commitments, int(p1-tb.adjustedStart(right)), right)
		if depth == 0 {
			if tree.Right == nil {
				wb.w.Filled = append(wb.w.Filled, v)
			}
		} else if int(depth)-1 >= len(tree.Parents) || tree.Parents[depth-1] == nil {
			wb.w.Filled = append(wb.w.Filled, v)
		}
	}
}

func (wb *witnessBuilder) up() {
	wb.p /= 2
}

// finalize implements §4.D's per-witness finalize: on a flush (empty
// batch), construct Cursor from the previous tree trimmed to the depth
// of the first bit, scanning from the MSB after the common prefix with
// the witness's own bit-reversed position, at which the final leaf
// count and this witness's position diverge and the final count has a
// set bit.
func (wb *witnessBuilder) finalize(tb *treeBuilder) witness.Witness {
	if tb.totalLen == 0 {
		wb.w.Cursor = nil

		finalPos := reverseBits32(uint32(tb.prevTree.GetPosition()))
		witnessPos := uint32(wb.w.Tree.GetPosition())
		witnessPos = reverseBits32(witnessPos - 1)

		bit := 31
		for bit >= 0 {
			if finalPos&1 != witnessPos&1 {
				break
			}
			finalPos >>= 1
			witnessPos >>= 1
			bit--
		}
		finalPos >>= 1
		bit--
		for bit >= 0 {
			if finalPos&1 == 1 {
				break
			}
			finalPos >>= 1
			bit--
		}
		if bit >= 0 {
			trimmed := tb.prevTree.CloneTrimmed(bit)
			wb.w.Cursor = &trimmed
		}
	}
	return wb.w
}

// reverseBits32 reverses the bit order of a 32-bit word, used to walk
// leaf-count/position comparisons from the MSB in the cursor-depth scan
// above.
func reverseBits32(v uint32) uint32 {
	var out uint32
	for i := 0; i < 32; i++ {
		out = (out << 1) | (v & 1)
		v >>= 1
	}
	return out
}
