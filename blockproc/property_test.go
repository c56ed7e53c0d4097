// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockproc

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"

	"github.com/toole-brendan/shellsync/committree"
	"github.com/toole-brendan/shellsync/hashdomain"
	"github.com/toole-brendan/shellsync/reftree"
	"github.com/toole-brendan/shellsync/witness"
)

const treeHeight = 32

// TestTreeWitnessEquivalenceProperty is §8's "Tree/witness equivalence"
// property: for a random leaf sequence, a random subset of tracked
// witness positions, and a random split of the sequence into
// contiguous batches, the incremental BlockProcessor must agree
// byte-for-byte with a naive full-rebuild reference, and every
// resulting witness's auth path must verify against the tree's root.
func TestTreeWitnessEquivalenceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d := hashdomain.NewSapling()
		n := rapid.IntRange(0, 1200).Draw(rt, "n")

		leaves := make([]hashdomain.Node, n)
		for i := range leaves {
			var node hashdomain.Node
			node[0] = byte(i)
			node[1] = byte(i >> 8)
			leaves[i] = node
		}

		var positions []uint64
		if n > 0 {
			count := rapid.IntRange(0, min(n, 5)).Draw(rt, "witnessCount")
			seen := map[uint64]bool{}
			for len(positions) < count {
				pos := uint64(rapid.IntRange(0, n-1).Draw(rt, "pos"))
				if !seen[pos] {
					seen[pos] = true
					positions = append(positions, pos)
				}
			}
		}

		batches := splitIntoBatches(rt, leaves)

		proc := New(d, committree.New(), nil)
		consumed := 0
		for _, batch := range batches {
			var newW []witness.Witness
			for _, pos := range positions {
				if int(pos) >= consumed && int(pos) < consumed+len(batch) {
					newW = append(newW, witness.New(pos, committree.New(), 0, nil))
				}
			}
			proc.AddNodes(batch, newW)
			consumed += len(batch)
		}
		tree, ws := proc.Finalize()

		ref := reftree.New(d, leaves)
		if tree.Root(treeHeight, d) != ref.Root(treeHeight) {
			rt.Fatalf("incremental root disagrees with reference for n=%d", n)
		}

		for _, w := range ws {
			path := w.AuthPath(treeHeight, d)
			refPath := ref.AuthPath(w.Position, treeHeight)
			if len(path) != len(refPath) {
				rt.Fatalf("auth path length mismatch at position %d", w.Position)
			}
			for i := range path {
				if path[i] != refPath[i] {
					rt.Fatalf("auth path mismatch at position %d level %d", w.Position, i)
				}
			}
			root := verifyAuthPath(d, leaves[w.Position], w.Position, path)
			if root != tree.Root(treeHeight, d) {
				rt.Fatalf("witness at position %d does not verify against tree root", w.Position)
			}
		}
	})
}

// TestSerializationRoundTrip covers §8's "decode(encode(x)) == x" for
// every CTree/Witness value reachable by the equivalence property,
// sampling a handful of leaf-count/witness combinations.
func TestSerializationRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d := hashdomain.NewSapling()
		n := rapid.IntRange(0, 40).Draw(rt, "n")
		leaves := make([]hashdomain.Node, n)
		for i := range leaves {
			leaves[i][0] = byte(i)
		}

		var positions []uint64
		if n > 0 {
			positions = append(positions, uint64(rapid.IntRange(0, n-1).Draw(rt, "pos")))
		}

		proc := New(d, committree.New(), nil)
		var newW []witness.Witness
		for _, pos := range positions {
			newW = append(newW, witness.New(pos, committree.New(), 0, nil))
		}
		proc.AddNodes(leaves, newW)
		tree, ws := proc.Finalize()

		var buf bytes.Buffer
		if err := tree.WriteBinary(&buf); err != nil {
			rt.Fatal(err)
		}
		decoded, err := committree.ReadBinary(bytes.NewReader(buf.Bytes()))
		if err != nil {
			rt.Fatal(err)
		}
		if !bytes.Equal(encodeTree(tree), encodeTree(decoded)) {
			rt.Fatalf("CTree round trip mismatch")
		}

		for _, w := range ws {
			var wbuf bytes.Buffer
			if err := w.WriteBinary(&wbuf); err != nil {
				rt.Fatal(err)
			}
			decodedW, err := witness.ReadBinary(bytes.NewReader(wbuf.Bytes()))
			if err != nil {
				rt.Fatal(err)
			}
			if !bytes.Equal(encodeWitness(w), encodeWitness(decodedW)) {
				rt.Fatalf("Witness round trip mismatch")
			}
		}
	})
}

func splitIntoBatches(rt *rapid.T, leaves []hashdomain.Node) [][]hashdomain.Node {
	if len(leaves) == 0 {
		return [][]hashdomain.Node{nil}
	}
	var cuts []int
	numCuts := rapid.IntRange(0, min(len(leaves)-1, 4)).Draw(rt, "numCuts")
	seen := map[int]bool{}
	for len(cuts) < numCuts {
		c := rapid.IntRange(1, len(leaves)-1).Draw(rt, "cut")
		if !seen[c] {
			seen[c] = true
			cuts = append(cuts, c)
		}
	}
	sortInts(cuts)

	batches := make([][]hashdomain.Node, 0, len(cuts)+1)
	prev := 0
	for _, c := range cuts {
		batches = append(batches, leaves[prev:c])
		prev = c
	}
	batches = append(batches, leaves[prev:])
	return batches
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
