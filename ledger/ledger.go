// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ledger implements the persistent store described in spec
// §4.G: a SQLite-backed record of blocks, accounts, transactions,
// received notes, and per-domain witnesses, plus the reorg-rewind and
// witness-pruning operations the sync pipeline drives between batches.
package ledger

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	_ "modernc.org/sqlite"

	"github.com/toole-brendan/shellsync/committree"
	"github.com/toole-brendan/shellsync/hashdomain"
	"github.com/toole-brendan/shellsync/witness"
)

// Ledger is a handle to one coin's SQLite database. A Ledger tracks
// exactly one hash domain's tree state (§9 "Persisted formats for the
// two domains are distinct tables"); running both domains for the same
// coin means opening two Ledgers against two database files.
type Ledger struct {
	db           *sql.DB
	domain       hashdomain.Domain
	witnessTable string
}

// Open opens (creating and migrating if necessary) the SQLite database
// at path for domain.
func Open(path string, domain hashdomain.Domain) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time per database (§5 "Database concurrency").
	db.SetMaxOpenConns(1)

	witnessTable := domain.Name() + "_witnesses"
	if err := migrate(db, witnessTable); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, domain: domain, witnessTable: witnessTable}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// GetTree reads the snapshot at MAX(height) and every witness row at
// that height joined against unspent notes (§4.G "get_tree").
func (l *Ledger) GetTree() (committree.CTree, []witness.Witness, error) {
	var maxHeight sql.NullInt64
	if err := l.db.QueryRow(`SELECT MAX(height) FROM blocks`).Scan(&maxHeight); err != nil {
		return committree.CTree{}, nil, err
	}
	if !maxHeight.Valid {
		return committree.New(), nil, nil
	}
	height := maxHeight.Int64

	var blob []byte
	if err := l.db.QueryRow(`SELECT tree_snapshot FROM blocks WHERE height = ?`, height).Scan(&blob); err != nil {
		return committree.CTree{}, nil, err
	}
	tree, err := committree.ReadBinary(newByteReader(blob))
	if err != nil {
		return committree.CTree{}, nil, fmt.Errorf("decode tree_snapshot at height %d: %w", height, err)
	}

	rows, err := l.db.Query(`
		SELECT w.note, w.witness_blob, n.position, n.id, n.diversifier, n.value, n.rcm
		FROM `+l.witnessTable+` w
		JOIN received_notes n ON n.id = w.note
		WHERE w.height = ? AND n.spent_height IS NULL
	`, height)
	if err != nil {
		return committree.CTree{}, nil, err
	}
	defer rows.Close()

	var witnesses []witness.Witness
	for rows.Next() {
		var noteID int64
		var blob []byte
		var position int64
		var idNote int64
		var diversifier []byte
		var value int64
		var rcm []byte
		if err := rows.Scan(&noteID, &blob, &position, &idNote, &diversifier, &value, &rcm); err != nil {
			return committree.CTree{}, nil, err
		}
		w, err := witness.ReadBinary(newByteReader(blob))
		if err != nil {
			return committree.CTree{}, nil, fmt.Errorf("decode witness_blob for note %d: %w", noteID, err)
		}
		w.Position = uint64(position)
		w.IDNote = idNote
		witnesses = append(witnesses, w)
	}
	return tree, witnesses, rows.Err()
}

// TrimToHeight cascade-deletes blocks, witnesses, received_notes, and
// transactions with height >= h, and clears spent_height where
// spent_height >= h (§4.G "trim_to_height", used for reorg rewind).
func (l *Ledger) TrimToHeight(h uint32) error {
	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []struct {
		query string
		args  []interface{}
	}{
		{`DELETE FROM ` + l.witnessTable + ` WHERE height >= ?`, []interface{}{h}},
		{`DELETE FROM received_notes WHERE height >= ?`, []interface{}{h}},
		{`DELETE FROM transactions WHERE height >= ?`, []interface{}{h}},
		{`DELETE FROM blocks WHERE height >= ?`, []interface{}{h}},
		{`UPDATE received_notes SET spent_height = NULL WHERE spent_height >= ?`, []interface{}{h}},
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s.query, s.args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PurgeOldWitnesses retains the most recent witness row at height <= h
// for each note plus every row newer than h; it deletes everything
// older, leaving at least one row per still-unspent note (§4.G
// "purge_old_witnesses").
func (l *Ledger) PurgeOldWitnesses(h uint32) error {
	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT note, MAX(height) FROM `+l.witnessTable+`
		WHERE height <= ?
		GROUP BY note
	`, h)
	if err != nil {
		return err
	}
	keep := make(map[int64]int64)
	for rows.Next() {
		var note, height int64
		if err := rows.Scan(&note, &height); err != nil {
			rows.Close()
			return err
		}
		keep[note] = height
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for note, height := range keep {
		if _, err := tx.Exec(
			`DELETE FROM `+l.witnessTable+` WHERE note = ? AND height <= ? AND height != ?`,
			note, h, height,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetNullifiers returns the unspent-note nullifier map populated once
// per batch and mutated in-memory as spends are detected (§4.G
// "get_nullifiers").
func (l *Ledger) GetNullifiers() (*NullifierMap, error) {
	rows, err := l.db.Query(`SELECT nf, id, account, value FROM received_notes WHERE spent_height IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byNf := make(map[[32]byte]NfRef)
	for rows.Next() {
		var nfBytes []byte
		var ref NfRef
		if err := rows.Scan(&nfBytes, &ref.IDNote, &ref.Account, &ref.Value); err != nil {
			return nil, err
		}
		var nf [32]byte
		copy(nf[:], nfBytes)
		byNf[nf] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return newNullifierMap(byNf), nil
}

// GetBalance sums the value of every unspent note owned by account,
// rendered as btcutil.Amount (§4.G, grounded on the original's
// get_balance; SPEC_FULL wires btcutil.Amount into ledger value
// handling).
func (l *Ledger) GetBalance(account int64) (btcutil.Amount, error) {
	var total int64
	err := l.db.QueryRow(
		`SELECT COALESCE(SUM(value), 0) FROM received_notes WHERE account = ? AND spent_height IS NULL`,
		account,
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return btcutil.Amount(total), nil
}

// GetLastSyncHeight returns the highest committed block height, or 0
// if the ledger is empty.
func (l *Ledger) GetLastSyncHeight() (uint32, error) {
	var h sql.NullInt64
	if err := l.db.QueryRow(`SELECT MAX(height) FROM blocks`).Scan(&h); err != nil {
		return 0, err
	}
	if !h.Valid {
		return 0, nil
	}
	return uint32(h.Int64), nil
}

// GetTxid returns the txid and owning account for a transaction row,
// the lookup the Transaction Detailer (§4.H) needs to fetch the full
// transaction by hash for each id touched during a batch.
func (l *Ledger) GetTxid(txID int64) (txid [32]byte, account int64, err error) {
	var b []byte
	err = l.db.QueryRow(`SELECT txid, account FROM transactions WHERE id = ?`, txID).Scan(&b, &account)
	if err != nil {
		return [32]byte{}, 0, err
	}
	copy(txid[:], b)
	return txid, account, nil
}

// byteReader adapts a []byte to io.ByteReader for committree/witness
// decoding.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader { return &byteReader{buf: buf} }

func (r *byteReader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}
