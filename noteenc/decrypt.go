// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package noteenc

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/toole-brendan/shellsync/internal/workerpool"
)

// fixedNonce is the zero nonce used for every output's AEAD open. This
// is safe only because the symmetric key is derived fresh per output
// from an ECDH shared secret that is itself single-use (the sender's
// ephemeral key is never reused across outputs) - the same
// single-use-key contract documented for the encrypted backup export
// in backup/backup.go.
var fixedNonce [chacha20poly1305.NonceSize]byte

// Decrypter holds the accounts whose viewing keys outputs are trial
// decrypted against.
type Decrypter struct {
	accounts []Account
}

// New constructs a Decrypter for the given accounts. Accounts without
// an ivk should not be passed in; the caller filters those upstream.
func New(accounts []Account) *Decrypter {
	cp := make([]Account, len(accounts))
	copy(cp, accounts)
	return &Decrypter{accounts: cp}
}

// DecryptBlocks runs trial decryption over every output in blocks and
// collects every spend's nullifier, in block order. The output loop is
// parallelised across a bounded worker pool (§5); block and
// transaction ordering in the returned slice matches the input order,
// since absolute_position assignment downstream depends on it (§5
// "Ordering guarantees").
func (d *Decrypter) DecryptBlocks(blocks []CompactBlock) []BlockResult {
	results := make([]BlockResult, len(blocks))
	for i, b := range blocks {
		results[i] = d.decryptBlock(b)
	}
	return results
}

func (d *Decrypter) decryptBlock(b CompactBlock) BlockResult {
	type job struct {
		txIndex     uint32
		outputIndex uint32
		position    uint64
		txid        [32]byte
		out         CompactOutput
	}

	var jobs []job
	var spends []DetectedSpend
	var position uint64
	countOutputs := 0

	for _, tx := range b.Vtx {
		for _, sp := range tx.Spends {
			spends = append(spends, DetectedSpend{
				Nullifier: sp.Nullifier,
				Height:    b.Height,
				TxIndex:   tx.Index,
				Txid:      tx.Hash,
			})
		}
		for oi, out := range tx.Outputs {
			jobs = append(jobs, job{
				txIndex:     tx.Index,
				outputIndex: uint32(oi),
				position:    position,
				txid:        tx.Hash,
				out:         out,
			})
			position++
			countOutputs++
		}
	}

	notesByJob := make([][]DecryptedNote, len(jobs))
	workerpool.Run(len(jobs), func(i int) {
		j := jobs[i]
		for _, acct := range d.accounts {
			note, ok := tryDecrypt(acct.IVK, j.out)
			if !ok {
				continue
			}
			notesByJob[i] = append(notesByJob[i], DecryptedNote{
				Account:         acct.ID,
				Height:          b.Height,
				TxIndex:         j.txIndex,
				OutputIndex:     j.outputIndex,
				PositionInBlock: j.position,
				IVK:             acct.IVK,
				Note:            note,
				Txid:            j.txid,
			})
		}
	})

	var notes []DecryptedNote
	for _, ns := range notesByJob {
		notes = append(notes, ns...)
	}

	return BlockResult{
		Height:       b.Height,
		Hash:         b.Hash,
		PrevHash:     b.PrevHash,
		Time:         b.Time,
		CountOutputs: countOutputs,
		Notes:        notes,
		Spends:       spends,
	}
}

// tryDecrypt attempts to recover a Note from out under ivk. It derives
// a per-output shared secret via ECDH (ivk as a scalar against the
// sender's ephemeral public key, the stand-in for Sapling's Jubjub
// key agreement - see DESIGN.md Open Question 4), folds it through a
// KDF, and opens the 52-byte compact ciphertext prefix with
// ChaCha20-Poly1305 using the fixed nonce above.
func tryDecrypt(ivk IVK, out CompactOutput) (Note, bool) {
	key, ok := sharedKey(ivk, out.EphemeralKey)
	if !ok {
		return Note{}, false
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return Note{}, false
	}
	if len(out.CiphertextPrefix) < aead.Overhead() {
		return Note{}, false
	}

	plain, err := aead.Open(nil, fixedNonce[:], out.CiphertextPrefix[:], nil)
	if err != nil {
		return Note{}, false
	}
	if len(plain) < 11+8+32 {
		return Note{}, false
	}

	var n Note
	copy(n.Diversifier[:], plain[0:11])
	n.Value = binary.LittleEndian.Uint64(plain[11:19])
	copy(n.Rcm[:], plain[19:51])
	return n, true
}

// SharedKey exports sharedKey for other packages deriving the same
// per-output AEAD key against a longer ciphertext - the Transaction
// Detailer's full-note decryption (§4.H) uses the identical key
// schedule against the memo-carrying plaintext.
func SharedKey(ivk IVK, ephemeral [32]byte) ([32]byte, bool) {
	return sharedKey(ivk, ephemeral)
}

// OVK is an outgoing viewing key: permits recovery of notes sent *by*
// an account, for outputs whose recipient ivk the sender doesn't hold
// (GLOSSARY "Outgoing viewing key").
type OVK [32]byte

// OutgoingKey derives the symmetric key that opens a full output's
// outgoing ciphertext (§4.H "outgoing via ovk"): unlike sharedKey,
// there is no ECDH step - ovk and the output's own ephemeral field are
// folded directly through a domain-separated digest, since recovery
// happens against data the sender already authored rather than a key
// agreement with the recipient.
func OutgoingKey(ovk OVK, ephemeral [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte("Shell Outgoing Viewing KDF v1.0"))
	h.Write(ovk[:])
	h.Write(ephemeral[:])
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// sharedKey derives the AEAD key for one output: ECDH(ivk, ephemeral)
// folded through SHA-256 with a domain label, mirroring the real
// protocol's "KDF(shared secret, ephemeral key)" shape.
func sharedKey(ivk IVK, ephemeral [32]byte) ([32]byte, bool) {
	curve := btcec.S256()
	ex, ey := curve.ScalarBaseMult(ephemeral[:])
	// Treat ephemeral as encoding a scalar multiplier of the curve's
	// base point (a stand-in for decoding a compressed Jubjub point);
	// the shared point is ivk-scaled.
	sx, sy := curve.ScalarMult(ex, ey, ivk[:])
	if sx == nil || sy == nil {
		return [32]byte{}, false
	}

	h := sha256.New()
	h.Write([]byte("Shell Note Encryption KDF v1.0"))
	h.Write(sx.Bytes())
	h.Write(sy.Bytes())
	h.Write(ephemeral[:])
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key, true
}
