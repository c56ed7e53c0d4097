// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package noteenc implements the trial-decryption stage of spec §4.E:
// for every compact output in a batch of compact blocks, attempt
// decryption under every known account's incoming viewing key, and
// surface every spend's nullifier regardless of authorship. The
// decrypt loop is CPU-bound and parallelised over outputs (§5).
package noteenc

import "github.com/toole-brendan/shellsync/hashdomain"

// IVK is an incoming viewing key: permits decryption of notes sent to
// an account (GLOSSARY).
type IVK [32]byte

// Account is the subset of the ledger's account row the decryption
// stage needs: an id to attribute notes to, and the key to trial
// decrypt with.
type Account struct {
	ID  int64
	IVK IVK
}

// CompactOutput is the consumed shape of §6's CompactBlock output
// entry: a note commitment, the sender's ephemeral public key, and a
// ciphertext prefix long enough to recover value/diversifier/rcm
// without the memo.
type CompactOutput struct {
	Cmu              hashdomain.Node
	EphemeralKey     [32]byte
	CiphertextPrefix [52]byte
}

// CompactSpend is §6's CompactBlock spend entry: only the nullifier is
// needed for light-client spend detection.
type CompactSpend struct {
	Nullifier [32]byte
}

// CompactTx is one transaction within a CompactBlock, consumed per §6.
type CompactTx struct {
	Index   uint32
	Hash    [32]byte
	Spends  []CompactSpend
	Outputs []CompactOutput
}

// CompactBlock is the consumed shape of §6's wire type: a block
// stripped to the fields sufficient for light-client scanning.
type CompactBlock struct {
	Height   uint32
	Hash     [32]byte
	PrevHash [32]byte
	Time     uint32
	Vtx      []CompactTx
}

// Note is the decrypted plaintext payload of a shielded output: enough
// to derive its nullifier and persist a received_notes row (§3).
type Note struct {
	Diversifier [11]byte
	Value       uint64
	Rcm         [32]byte
}

// DecryptedNote is emitted for every output that decrypts under a known
// account's ivk (§4.E).
type DecryptedNote struct {
	Account         int64
	Height          uint32
	TxIndex         uint32
	OutputIndex     uint32
	PositionInBlock uint64
	IVK             IVK
	Note            Note
	PaymentAddress  []byte
	Txid            [32]byte
}

// DetectedSpend is emitted for every spend's nullifier in every
// transaction, regardless of authorship (§4.E); the sync pipeline
// resolves which, if any, correspond to one of its own unspent notes.
type DetectedSpend struct {
	Nullifier [32]byte
	Height    uint32
	TxIndex   uint32
	Txid      [32]byte
}

// BlockResult is the decryption stage's per-block output: the notes
// and spends observed in that block, plus enough metadata for the
// sync pipeline to advance absolute_position and persist the block
// record.
type BlockResult struct {
	Height       uint32
	Hash         [32]byte
	PrevHash     [32]byte
	Time         uint32
	CountOutputs int
	Notes        []DecryptedNote
	Spends       []DetectedSpend
}
