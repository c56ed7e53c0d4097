// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"bytes"
	"database/sql"

	"github.com/toole-brendan/shellsync/committree"
	"github.com/toole-brendan/shellsync/witness"
)

// Batch wraps a single database transaction spanning one sync batch
// (§5 "batch writes are enclosed in a single transaction committed at
// the end of the batch"). Callers must call Commit or Rollback exactly
// once.
type Batch struct {
	tx           *sql.Tx
	witnessTable string
}

// BeginBatch starts a new batch transaction.
func (l *Ledger) BeginBatch() (*Batch, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return nil, err
	}
	return &Batch{tx: tx, witnessTable: l.witnessTable}, nil
}

// Commit finalizes the batch; only after this returns successfully may
// the caller report progress (§4.F step 7).
func (b *Batch) Commit() error { return b.tx.Commit() }

// Rollback discards the batch. Safe to call after a successful Commit
// (no-op).
func (b *Batch) Rollback() error { return b.tx.Rollback() }

// StoreBlock records one committed batch's last block, snapshotting
// the frontier tree at that height (§4.G "blocks").
func (b *Batch) StoreBlock(height uint32, hash [32]byte, timestamp uint32, tree committree.CTree) error {
	var buf bytes.Buffer
	if err := tree.WriteBinary(&buf); err != nil {
		return err
	}
	_, err := b.tx.Exec(
		`INSERT OR REPLACE INTO blocks(height, hash, timestamp, tree_snapshot) VALUES (?, ?, ?, ?)`,
		height, hash[:], timestamp, buf.Bytes(),
	)
	return err
}

// StoreTransaction inserts a transactions row (or is a no-op on
// conflict against the (account, txid) unique index) and returns its
// row id.
func (b *Batch) StoreTransaction(account int64, txid [32]byte, height uint32, timestamp uint32, txIndex uint32) (int64, error) {
	_, err := b.tx.Exec(
		`INSERT OR IGNORE INTO transactions(account, txid, height, timestamp, tx_index, value) VALUES (?, ?, ?, ?, ?, 0)`,
		account, txid[:], height, timestamp, txIndex,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = b.tx.QueryRow(
		`SELECT id FROM transactions WHERE account = ? AND txid = ?`, account, txid[:],
	).Scan(&id)
	return id, err
}

// StoreReceivedNote inserts a received_notes row for a decrypted
// output and returns its row id.
func (b *Batch) StoreReceivedNote(account, txID int64, height uint32, position uint64, outputIndex uint32, diversifier []byte, value uint64, rcm, nf [32]byte) (int64, error) {
	res, err := b.tx.Exec(
		`INSERT INTO received_notes(account, tx, height, position, output_index, diversifier, value, rcm, nf)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account, txID, height, position, outputIndex, diversifier, value, rcm[:], nf[:],
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// StoreWitness persists the witness blob for note at height (§4.G
// "sapling_witnesses"/domain-equivalent table).
func (b *Batch) StoreWitness(noteID int64, height uint32, w witness.Witness) error {
	var buf bytes.Buffer
	if err := w.WriteBinary(&buf); err != nil {
		return err
	}
	_, err := b.tx.Exec(
		`INSERT OR REPLACE INTO `+b.witnessTable+`(note, height, witness_blob) VALUES (?, ?, ?)`,
		noteID, height, buf.Bytes(),
	)
	return err
}

// AddValue folds a transparent or change value adjustment into a
// transaction's running value column (grounded on the original's
// add_value).
func (b *Batch) AddValue(txID int64, delta int64) error {
	_, err := b.tx.Exec(`UPDATE transactions SET value = value + ? WHERE id = ?`, delta, txID)
	return err
}

// MarkSpent records the height at which note was spent.
func (b *Batch) MarkSpent(noteID int64, height uint32) error {
	_, err := b.tx.Exec(`UPDATE received_notes SET spent_height = ? WHERE id = ?`, height, noteID)
	return err
}

// SetTxDetail records the Transaction Detailer's resolved
// address/memo/fee for a transaction (§4.H).
func (b *Batch) SetTxDetail(txID int64, address string, memo []byte, fee int64) error {
	_, err := b.tx.Exec(
		`UPDATE transactions SET address = ?, memo = ?, fee = ? WHERE id = ?`,
		address, memo, fee, txID,
	)
	return err
}
