// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdetail

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/toole-brendan/shellsync/noteenc"
)

func TestDecodeP2PKH(t *testing.T) {
	script := make([]byte, 25)
	script[0] = 0x76
	script[1] = 0xa9
	script[2] = 0x14
	for i := 0; i < 20; i++ {
		script[3+i] = byte(i + 1)
	}
	script[23] = 0x88
	script[24] = 0xac

	addr, ok := decodeP2PKH(script)
	require.True(t, ok)
	require.NotEmpty(t, addr)

	_, ok = decodeP2PKH(script[:24])
	require.False(t, ok)
}

func TestDecryptMemoRoundTrip(t *testing.T) {
	var ivk noteenc.IVK
	ivk[0] = 3
	var ephemeral [32]byte
	ephemeral[0] = 9

	key, ok := noteenc.SharedKey(ivk, ephemeral)
	require.True(t, ok)

	plain := make([]byte, plaintextLen)
	plain[0] = 1 // diversifier byte
	copy(plain[11+8+32:], []byte("hello"))

	aead, err := chacha20poly1305.New(key[:])
	require.NoError(t, err)
	sealed := aead.Seal(nil, fixedNonce[:], plain, nil)

	out := FullOutput{EphemeralKey: ephemeral, Ciphertext: sealed}
	addr, memo, value, ok := decryptMemo(ivk, out)
	require.True(t, ok)
	require.NotEmpty(t, addr)
	require.Equal(t, "hello", string(memo[:5]))
	require.Zero(t, value)
}

func TestDecryptOutgoingRecovery(t *testing.T) {
	var ovk noteenc.OVK
	ovk[0] = 4
	var ephemeral [32]byte
	ephemeral[0] = 11

	key := noteenc.OutgoingKey(ovk, ephemeral)

	plain := make([]byte, plaintextLen)
	plain[0] = 2 // diversifier byte
	copy(plain[11+8+32:], []byte("world"))

	aead, err := chacha20poly1305.New(key[:])
	require.NoError(t, err)
	sealed := aead.Seal(nil, fixedNonce[:], plain, nil)

	out := FullOutput{EphemeralKey: ephemeral, OutCiphertext: sealed}

	var wrongIVK noteenc.IVK
	_, _, _, ok := decryptMemo(wrongIVK, out)
	require.False(t, ok, "ivk decryption should not recover an outgoing-only ciphertext")

	addr, memo, ok := decryptOutgoing(ovk, out)
	require.True(t, ok)
	require.NotEmpty(t, addr)
	require.Equal(t, "world", string(memo[:5]))
}
