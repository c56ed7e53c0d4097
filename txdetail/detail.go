// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txdetail implements the Transaction Detailer (spec §4.H):
// for every transaction touched by a sync batch, fetch the full
// transaction, recover the shielded address/memo (incoming via ivk,
// outgoing via ovk), decode transparent pay-to-address outputs, and
// record the declared value balance as the fee (the aggregated
// spent-input value is only logged as a cross-check). Run strictly after
// the owning batch commits (§5); its errors are logged, never
// propagated (§7).
package txdetail

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"

	"github.com/toole-brendan/shellsync/ledger"
	"github.com/toole-brendan/shellsync/noteenc"
	"github.com/toole-brendan/shellsync/rpcclient"
)

// FullOutput is one shielded output of a full (non-compact)
// transaction: unlike noteenc.CompactOutput, its ciphertext is long
// enough to also carry a memo. OutCiphertext is a second encryption of
// the same plaintext under the sender's outgoing viewing key, letting
// the sender recover their own sent notes without the recipient's ivk
// (§4.H "outgoing via ovk").
type FullOutput struct {
	EphemeralKey  [32]byte
	Ciphertext    []byte
	OutCiphertext []byte
}

// RawOutput is one transparent output: a value and the locking script
// to decode into a pay-to-address string.
type RawOutput struct {
	Value    int64
	PkScript []byte
}

// FullSpend is one shielded spend of a full transaction: only the
// nullifier is needed to resolve the spent note's value through the
// ledger's nullifier->value lookup (§4.H "aggregate input values via
// the nullifier->value map").
type FullSpend struct {
	Nullifier [32]byte
}

// FullTransaction is the detailer's view of a fetched transaction,
// gob-decoded from the bytes rpcclient.Streamer.Transaction returns -
// the same plain-struct wire simplification rpcclient's codec makes
// for compact blocks (see rpcclient/codec.go).
type FullTransaction struct {
	Txid            [32]byte
	ValueBalance    int64
	TOutputs        []RawOutput
	ShieldedOutputs []FullOutput
	ShieldedSpends  []FullSpend
}

const memoLen = 512
const plaintextLen = 11 + 8 + 32 + memoLen

// Detailer fetches and persists address/memo/fee detail for
// individual transactions.
type Detailer struct {
	Streamer rpcclient.Streamer
	Ledger   *ledger.Ledger
}

// Run fetches and details every transaction id in txIDs. A failure on
// one transaction is returned immediately to the caller, who logs it
// and moves on (§7 "Transaction Detailer's errors are logged but do
// not fail the sync").
func (d *Detailer) Run(ctx context.Context, txIDs []int64) error {
	for _, id := range txIDs {
		if err := d.detailOne(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (d *Detailer) detailOne(ctx context.Context, txID int64) error {
	txid, account, err := d.Ledger.GetTxid(txID)
	if err != nil {
		return err
	}

	raw, err := d.Streamer.Transaction(ctx, txid)
	if err != nil {
		return err
	}
	var full FullTransaction
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&full); err != nil {
		return err
	}

	accounts, err := d.Ledger.GetAccounts()
	if err != nil {
		return err
	}
	var ivk noteenc.IVK
	var ovk noteenc.OVK
	for _, a := range accounts {
		if a.ID == account {
			if raw, err := hex.DecodeString(a.IVK); err == nil {
				copy(ivk[:], raw)
			}
			if raw, err := hex.DecodeString(a.OVK); err == nil {
				copy(ovk[:], raw)
			}
			break
		}
	}

	var address string
	var memo []byte
	var receivedValue int64
	for _, out := range full.ShieldedOutputs {
		if addr, m, value, ok := decryptMemo(ivk, out); ok {
			address, memo = addr, m
			receivedValue += int64(value)
			continue
		}
		if addr, m, ok := decryptOutgoing(ovk, out); ok && address == "" {
			address, memo = addr, m
		}
	}
	if address == "" {
		for _, out := range full.TOutputs {
			if addr, ok := decodeP2PKH(out.PkScript); ok {
				address = addr
				break
			}
		}
	}

	var spentValue int64
	for _, spend := range full.ShieldedSpends {
		if v, found, err := d.Ledger.GetNoteValue(account, spend.Nullifier); err == nil && found {
			spentValue += int64(v)
		}
	}
	if amount := receivedValue - spentValue; amount != full.ValueBalance {
		log.Debugf("tx %d: aggregated amount %d disagrees with declared value balance %d", txID, amount, full.ValueBalance)
	}

	b, err := d.Ledger.BeginBatch()
	if err != nil {
		return err
	}
	if err := b.SetTxDetail(txID, address, memo, full.ValueBalance); err != nil {
		b.Rollback()
		return err
	}
	return b.Commit()
}

// decryptMemo opens a full shielded output's ciphertext with the same
// key schedule noteenc uses for compact outputs, recovering the memo
// field the compact encoding omits (§4.H "incoming via ivk").
func decryptMemo(ivk noteenc.IVK, out FullOutput) (address string, memo []byte, value uint64, ok bool) {
	key, ok := noteenc.SharedKey(ivk, out.EphemeralKey)
	if !ok {
		return "", nil, 0, false
	}
	plain, ok := openChaCha(key, out.Ciphertext)
	if !ok || len(plain) < plaintextLen {
		return "", nil, 0, false
	}
	return parseNotePlaintext(plain)
}

// decryptOutgoing recovers a full shielded output's address and memo
// via the sender's own outgoing viewing key, for outputs the sender's
// ivk-based decryptMemo can't open - e.g. a payment sent to someone
// else's address (§4.H "outgoing via ovk").
func decryptOutgoing(ovk noteenc.OVK, out FullOutput) (address string, memo []byte, ok bool) {
	if len(out.OutCiphertext) == 0 {
		return "", nil, false
	}
	key := noteenc.OutgoingKey(ovk, out.EphemeralKey)
	plain, ok := openChaCha(key, out.OutCiphertext)
	if !ok || len(plain) < plaintextLen {
		return "", nil, false
	}
	address, memo, _, ok = parseNotePlaintext(plain)
	return address, memo, ok
}

// parseNotePlaintext decodes the common diversifier/value/rcm/memo
// layout shared by a shielded output's incoming and outgoing
// ciphertexts.
func parseNotePlaintext(plain []byte) (address string, memo []byte, value uint64, ok bool) {
	diversifier := plain[0:11]
	value = binary.LittleEndian.Uint64(plain[11:19])
	m := make([]byte, memoLen)
	copy(m, plain[11+8+32:11+8+32+memoLen])
	return diversifierAddress(diversifier), m, value, true
}

// decodeP2PKH recognises the standard OP_DUP OP_HASH160 <20> OP_EQUALVERIFY
// OP_CHECKSIG script template and renders the embedded hash as an
// address string.
func decodeP2PKH(script []byte) (string, bool) {
	const (
		opDup         = 0x76
		opHash160     = 0xa9
		opData20      = 0x14
		opEqualVerify = 0x88
		opCheckSig    = 0xac
	)
	if len(script) != 25 {
		return "", false
	}
	if script[0] != opDup || script[1] != opHash160 || script[2] != opData20 {
		return "", false
	}
	if script[23] != opEqualVerify || script[24] != opCheckSig {
		return "", false
	}
	return base58CheckEncode(0x00, script[3:23]), true
}
