// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hashdomain

import (
	"math/big"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
)

// sinsemillaWindowCount is the number of 10-bit windows spanning the 510
// bits (2 x 255) a single Combine call hashes.
const sinsemillaWindowCount = 51

// sinsemillaWindowBits is the width of one Sinsemilla lookup window.
const sinsemillaWindowBits = 10

// sinsemillaTableSize is len(S) in §4.A: one curve point per possible
// 10-bit window value.
const sinsemillaTableSize = 1 << sinsemillaWindowBits

// Orchard is the Sinsemilla-style domain: it hashes two 255-bit values by
// splitting their concatenation into fifty-one 10-bit windows and
// double-and-adding a fixed lookup table of curve points onto a
// depth-adjusted base point Q, returning the x-coordinate of the result.
//
// secp256k1 stands in for the real Pallas curve; see DESIGN.md Open
// Question 4.
type Orchard struct {
	table     [sinsemillaTableSize]*btcec.PublicKey
	tableOnce sync.Once
	qCache    sync.Map // depth(uint8) -> *btcec.PublicKey
}

// NewOrchard constructs an Orchard domain instance. The lookup table is
// built lazily on first use.
func NewOrchard() *Orchard {
	return &Orchard{}
}

func (o *Orchard) Name() string { return "orchard" }

// orchardUncommitted is the field element 2, per §4.A.
var orchardUncommitted = func() Node {
	var n Node
	n[len(n)-1] = 2
	return n
}()

func (o *Orchard) Uncommitted() Node { return orchardUncommitted }

func (o *Orchard) EmptyRoots(height uint8) []Node { return computeEmptyRoots(o, height) }

func (o *Orchard) ensureTable() {
	o.tableOnce.Do(func() {
		for i := 0; i < sinsemillaTableSize; i++ {
			o.table[i] = deriveGenerator("Shell Orchard Sinsemilla S", uint8(i>>8), uint8(i))
		}
	})
}

func (o *Orchard) baseQ(depth uint8) *btcec.PublicKey {
	if v, ok := o.qCache.Load(depth); ok {
		return v.(*btcec.PublicKey)
	}
	q := deriveGenerator("Shell Orchard Sinsemilla Q", depth, 0)
	o.qCache.Store(depth, q)
	return q
}

// Combine implements the depth-keyed Sinsemilla hash described in §4.A:
// interleave (here: concatenate) the lower 255 bits of left and right
// into fifty-one 10-bit windows v_0..v_50, then fold
// acc_0 = Q(depth); acc_{i+1} = (acc_i + S[v_i]) + acc_i
// and return the x-coordinate of the final accumulator as the Node.
func (o *Orchard) Combine(depth uint8, left, right Node) Node {
	o.ensureTable()

	windows := packSinsemillaWindows(left, right)

	accX, accY := o.baseQ(depth).X(), o.baseQ(depth).Y()
	curve := btcec.S256()
	for _, v := range windows {
		s := o.table[v]
		sumX, sumY := curve.Add(accX, accY, s.X(), s.Y())
		accX, accY = curve.Add(sumX, sumY, accX, accY)
	}

	var n Node
	accX.FillBytes(n[:])
	return n
}

// packSinsemillaWindows packs the low 255 bits of left followed by the
// low 255 bits of right into 51 big-endian 10-bit window values.
func packSinsemillaWindows(left, right Node) [sinsemillaWindowCount]uint16 {
	acc := new(big.Int).SetBytes(low255(left))
	acc.Lsh(acc, 255)
	acc.Or(acc, new(big.Int).SetBytes(low255(right)))

	var out [sinsemillaWindowCount]uint16
	mask := big.NewInt((1 << sinsemillaWindowBits) - 1)
	tmp := new(big.Int)
	for i := sinsemillaWindowCount - 1; i >= 0; i-- {
		tmp.And(acc, mask)
		out[i] = uint16(tmp.Uint64())
		acc.Rsh(acc, sinsemillaWindowBits)
	}
	return out
}

// low255 zeroes the top bit of a Node's first byte, keeping the field
// element within 255 bits as §4.A requires.
func low255(n Node) []byte {
	out := n.Bytes()
	out[0] &= 0x7f
	return out
}
