// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package noteenc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func sealOutput(t *testing.T, ivk IVK, n Note) CompactOutput {
	t.Helper()
	var ephemeral [32]byte
	ephemeral[0] = 7

	key, ok := sharedKey(ivk, ephemeral)
	require.True(t, ok)
	aead, err := chacha20poly1305.New(key[:])
	require.NoError(t, err)

	plain := make([]byte, 0, 51)
	plain = append(plain, n.Diversifier[:]...)
	var valBuf [8]byte
	for i := 0; i < 8; i++ {
		valBuf[i] = byte(n.Value >> (8 * i))
	}
	plain = append(plain, valBuf[:]...)
	plain = append(plain, n.Rcm[:]...)

	sealed := aead.Seal(nil, fixedNonce[:], plain, nil)

	var out CompactOutput
	out.EphemeralKey = ephemeral
	copy(out.CiphertextPrefix[:], sealed)
	return out
}

func TestTryDecryptRoundTrip(t *testing.T) {
	var ivk IVK
	ivk[0] = 42
	note := Note{Value: 12345}
	note.Diversifier[0] = 9
	note.Rcm[0] = 5

	out := sealOutput(t, ivk, note)

	got, ok := tryDecrypt(ivk, out)
	require.True(t, ok)
	require.Equal(t, note.Value, got.Value)
	require.Equal(t, note.Diversifier, got.Diversifier)
	require.Equal(t, note.Rcm, got.Rcm)

	var other IVK
	other[0] = 99
	_, ok = tryDecrypt(other, out)
	require.False(t, ok, "expected decryption to fail for an unrelated ivk")
}

func TestDecryptBlocksEmitsSpendsAndNotes(t *testing.T) {
	var ivk IVK
	ivk[0] = 1
	note := Note{Value: 500}
	out := sealOutput(t, ivk, note)

	block := CompactBlock{
		Height: 10,
		Vtx: []CompactTx{
			{
				Index:   0,
				Spends:  []CompactSpend{{Nullifier: [32]byte{1, 2, 3}}},
				Outputs: []CompactOutput{out},
			},
		},
	}

	d := New([]Account{{ID: 1, IVK: ivk}})
	results := d.DecryptBlocks([]CompactBlock{block})
	require.Len(t, results, 1)

	r := results[0]
	require.Len(t, r.Spends, 1)
	require.Len(t, r.Notes, 1)
	require.EqualValues(t, 1, r.Notes[0].Account)
	require.Equal(t, uint64(500), r.Notes[0].Note.Value)
	require.EqualValues(t, 1, r.CountOutputs)
}
