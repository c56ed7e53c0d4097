// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package witness implements the per-leaf authentication-path state
// described in spec §3/§4.C: an immutable snapshot of the frontier at
// insertion time, the sibling values filled in as later leaves complete
// the missing right-sibling subtrees, and a partial "cursor" subtree for
// leaves accumulated past the snapshot but not yet at a filling boundary.
package witness

import (
	"encoding/binary"
	"io"

	"github.com/toole-brendan/shellsync/committree"
	"github.com/toole-brendan/shellsync/hashdomain"
)

// Witness is the authentication-path state for the leaf at Position.
type Witness struct {
	Position uint64
	Tree     committree.CTree
	Filled   []hashdomain.Node
	Cursor   *committree.CTree

	// IDNote/Note are identity payload, unused by the tree algorithm;
	// callers thread them through to correlate a Witness with the
	// ledger's received_notes row it authenticates.
	IDNote int64
	Note   []byte
}

// New constructs a Witness for a leaf about to be inserted at the given
// absolute position. tree is the frontier snapshot taken immediately
// after that insertion (spec invariant iv: Position == tree.GetPosition()-1);
// a witness handed to blockproc.Processor.AddNodes for a leaf in that
// batch is given an empty tree instead, which the processor fills in.
func New(position uint64, tree committree.CTree, idNote int64, note []byte) Witness {
	return Witness{
		Position: position,
		Tree:     tree,
		IDNote:   idNote,
		Note:     note,
	}
}

// AuthPath produces the authentication path of Position, height values
// long, per spec §4.C.
func (w Witness) AuthPath(height uint8, d hashdomain.Domain) []hashdomain.Node {
	empty := d.EmptyRoots(height)
	path := make([]hashdomain.Node, 0, height)
	filledIdx := 0
	cursorUsed := false

	nextFiller := func(level uint8) hashdomain.Node {
		if filledIdx < len(w.Filled) {
			n := w.Filled[filledIdx]
			filledIdx++
			return n
		}
		if !cursorUsed && w.Cursor != nil {
			cursorUsed = true
			return w.Cursor.Root(level, d)
		}
		return empty[level]
	}

	// Level 0.
	if w.Tree.Left != nil && w.Tree.Right != nil {
		path = append(path, *w.Tree.Left)
	} else {
		path = append(path, nextFiller(0))
	}

	// Levels 1..height-1.
	for i := uint8(1); i < height; i++ {
		if int(i-1) < len(w.Tree.Parents) && w.Tree.Parents[i-1] != nil {
			path = append(path, *w.Tree.Parents[i-1])
			continue
		}
		path = append(path, nextFiller(i))
	}
	return path
}

// WriteBinary encodes the witness as
// CTree(tree) || varint(len filled) || [32*filled_i] || opt(CTree(cursor))
// per spec §6.
func (w Witness) WriteBinary(wr io.Writer) error {
	if err := w.Tree.WriteBinary(wr); err != nil {
		return err
	}
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(w.Filled)))
	if _, err := wr.Write(buf[:n]); err != nil {
		return err
	}
	for _, f := range w.Filled {
		if _, err := wr.Write(f[:]); err != nil {
			return err
		}
	}
	if w.Cursor == nil {
		_, err := wr.Write([]byte{0})
		return err
	}
	if _, err := wr.Write([]byte{1}); err != nil {
		return err
	}
	return w.Cursor.WriteBinary(wr)
}

// ReadBinary decodes a witness written by WriteBinary. Position, IDNote,
// and Note are not part of the wire format (spec §6); callers restore
// them from the ledger row the blob was read from.
func ReadBinary(r io.ByteReader) (Witness, error) {
	var w Witness
	tree, err := committree.ReadBinary(r)
	if err != nil {
		return Witness{}, err
	}
	w.Tree = tree

	n, err := binary.ReadUvarint(r)
	if err != nil {
		return Witness{}, err
	}
	w.Filled = make([]hashdomain.Node, n)
	for i := range w.Filled {
		var buf [hashdomain.NodeSize]byte
		for j := range buf {
			b, err := r.ReadByte()
			if err != nil {
				return Witness{}, err
			}
			buf[j] = b
		}
		w.Filled[i] = hashdomain.Node(buf)
	}

	tag, err := r.ReadByte()
	if err != nil {
		return Witness{}, err
	}
	if tag == 1 {
		cursor, err := committree.ReadBinary(r)
		if err != nil {
			return Witness{}, err
		}
		w.Cursor = &cursor
	}
	return w, nil
}
