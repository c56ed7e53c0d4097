// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hashdomain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaplingCombineDeterministic(t *testing.T) {
	s := NewSapling()
	l := s.Uncommitted()
	r := NewNode(make([]byte, NodeSize))

	a := s.Combine(3, l, r)
	b := s.Combine(3, l, r)
	require.Equal(t, a, b, "combine not deterministic")

	c := s.Combine(4, l, r)
	require.NotEqual(t, a, c, "depth must act as a domain separator")
}

func TestSaplingCombineOrderSensitive(t *testing.T) {
	s := NewSapling()
	l := s.Uncommitted()
	var r Node
	r[0] = 0x42

	lr := s.Combine(0, l, r)
	rl := s.Combine(0, r, l)
	require.NotEqual(t, lr, rl, "combine(l, r) must differ from combine(r, l)")
}

func TestOrchardCombineDeterministic(t *testing.T) {
	o := NewOrchard()
	l := o.Uncommitted()
	var r Node
	r[0] = 0x01

	a := o.Combine(1, l, r)
	b := o.Combine(1, l, r)
	require.Equal(t, a, b, "combine not deterministic")
}

func TestEmptyRootsLadder(t *testing.T) {
	for _, d := range []Domain{NewSapling(), NewOrchard()} {
		roots := d.EmptyRoots(8)
		require.Lenf(t, roots, 9, "%s: want 9 empty roots", d.Name())
		require.Equalf(t, d.Uncommitted(), roots[0], "%s: empty_roots[0] must equal Uncommitted()", d.Name())
		for i := 1; i < len(roots); i++ {
			want := d.Combine(uint8(i-1), roots[i-1], roots[i-1])
			require.Equalf(t, want, roots[i], "%s: empty_roots[%d] mismatch", d.Name(), i)
		}
	}
}

func TestNodeBinaryRoundTrip(t *testing.T) {
	var n Node
	for i := range n {
		n[i] = byte(i)
	}
	buf := n.WriteBinary(nil)
	got, rest, err := ReadBinary(buf)
	require.NoError(t, err)
	require.Equal(t, n, got, "round trip mismatch")
	require.Empty(t, rest, "expected no leftover bytes")
}
