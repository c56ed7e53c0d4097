// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import "database/sql"

// schemaVersion is bumped whenever migrations gains an entry (§6
// "Versioning is handled by a linear migration sequence").
const schemaVersion = 2

// migrations is the linear sequence applied in order against a fresh
// or partially-migrated database. Each entry's index + 1 is its
// version number; witnessTable is substituted so the same
// statement set stands up either domain's tables (§9 "Persisted
// formats for the two domains are distinct tables").
var migrations = []func(tx *sql.Tx, witnessTable string) error{
	migration1,
	migration2,
}

func migration1(tx *sql.Tx, witnessTable string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			seed TEXT,
			sk TEXT,
			ivk TEXT NOT NULL UNIQUE,
			address TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blocks (
			height INTEGER PRIMARY KEY,
			hash BLOB NOT NULL,
			timestamp INTEGER NOT NULL,
			tree_snapshot BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY,
			account INTEGER NOT NULL REFERENCES accounts(id),
			txid BLOB NOT NULL,
			height INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			tx_index INTEGER NOT NULL,
			value INTEGER NOT NULL DEFAULT 0,
			address TEXT,
			memo BLOB,
			fee INTEGER,
			UNIQUE(account, txid)
		)`,
		`CREATE TABLE IF NOT EXISTS received_notes (
			id INTEGER PRIMARY KEY,
			account INTEGER NOT NULL REFERENCES accounts(id),
			tx INTEGER NOT NULL REFERENCES transactions(id),
			height INTEGER NOT NULL,
			position INTEGER NOT NULL,
			output_index INTEGER NOT NULL,
			diversifier BLOB NOT NULL,
			value INTEGER NOT NULL,
			rcm BLOB NOT NULL,
			nf BLOB NOT NULL,
			spent_height INTEGER,
			UNIQUE(tx, output_index)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + witnessTable + ` (
			note INTEGER NOT NULL REFERENCES received_notes(id),
			height INTEGER NOT NULL,
			witness_blob BLOB NOT NULL,
			UNIQUE(note, height)
		)`,
		`CREATE TABLE IF NOT EXISTS diversifiers (
			account INTEGER PRIMARY KEY REFERENCES accounts(id),
			diversifier_index BLOB NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// migration2 adds the outgoing viewing key column the Transaction
// Detailer needs for outgoing-recovery decryption (§4.H "outgoing via
// ovk"); it's nullable since watch-only accounts carry no ovk.
func migration2(tx *sql.Tx, witnessTable string) error {
	_, err := tx.Exec(`ALTER TABLE accounts ADD COLUMN ovk TEXT`)
	return err
}

// migrate brings db up to schemaVersion, creating witnessTable
// (domain-specific) as part of the same sequence.
func migrate(db *sql.DB, witnessTable string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current int
	row := tx.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	// schema_version may not exist yet on a brand new database; ignore
	// that specific error and treat it as version 0.
	if err := row.Scan(&current); err != nil {
		current = 0
	}

	for i := current; i < len(migrations); i++ {
		if err := migrations[i](tx, witnessTable); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (?)`, len(migrations)); err != nil {
		return err
	}
	return tx.Commit()
}
