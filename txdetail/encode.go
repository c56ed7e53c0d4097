// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdetail

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/chacha20poly1305"
)

// fixedNonce mirrors noteenc's single-use-key AEAD contract: a fresh
// shared secret per output makes a fixed zero nonce safe to reuse
// across outputs (see noteenc/decrypt.go).
var fixedNonce [chacha20poly1305.NonceSize]byte

func openChaCha(key [32]byte, ciphertext []byte) ([]byte, bool) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, false
	}
	if len(ciphertext) < aead.Overhead() {
		return nil, false
	}
	plain, err := aead.Open(nil, fixedNonce[:], ciphertext, nil)
	if err != nil {
		return nil, false
	}
	return plain, true
}

// diversifierAddress renders a note's diversifier as a base58check
// string standing in for the real protocol's diversified payment
// address encoding.
func diversifierAddress(diversifier []byte) string {
	return base58CheckEncode(0x16, diversifier)
}

// base58CheckEncode implements the standard version-byte + payload +
// 4-byte double-SHA-256 checksum encoding used throughout the Bitcoin
// address family, the same scheme btcutil.Address types wrap.
func base58CheckEncode(version byte, payload []byte) string {
	buf := make([]byte, 0, 1+len(payload)+4)
	buf = append(buf, version)
	buf = append(buf, payload...)
	first := sha256.Sum256(buf)
	second := sha256.Sum256(first[:])
	buf = append(buf, second[:4]...)
	return base58.Encode(buf)
}
