// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"database/sql"
	"errors"
)

// Account is one row of the accounts table (§4.G). Seed/Sk are
// optional: a watch-only account carries neither. OVK is optional too
// - without it the Transaction Detailer can't recover outgoing notes
// sent to someone else's ivk (§4.H "outgoing via ovk").
type Account struct {
	ID      int64
	Name    string
	Seed    string
	Sk      string
	IVK     string
	OVK     string
	Address string
}

// StoreAccount inserts a new account row and returns its id. Accounts
// are appended outside of a sync batch (§5 "mutated only by
// configuration calls"), so this opens its own transaction rather than
// going through Batch.
func (l *Ledger) StoreAccount(a Account) (int64, error) {
	res, err := l.db.Exec(
		`INSERT INTO accounts(name, seed, sk, ivk, ovk, address) VALUES (?, ?, ?, ?, ?, ?)`,
		a.Name, nullIfEmpty(a.Seed), nullIfEmpty(a.Sk), a.IVK, nullIfEmpty(a.OVK), a.Address,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAccounts returns every stored account, ordered by id, the way the
// original's get_fvks enumerates viewing keys to trial-decrypt against.
func (l *Ledger) GetAccounts() ([]Account, error) {
	rows, err := l.db.Query(`SELECT id, name, COALESCE(seed, ''), COALESCE(sk, ''), ivk, COALESCE(ovk, ''), address FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Seed, &a.Sk, &a.IVK, &a.OVK, &a.Address); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetDiversifierIndex persists the next diversifier index to use for
// account, overwriting any prior value (§4.G "diversifiers").
func (l *Ledger) SetDiversifierIndex(account int64, index []byte) error {
	_, err := l.db.Exec(
		`INSERT INTO diversifiers(account, diversifier_index) VALUES (?, ?)
		 ON CONFLICT(account) DO UPDATE SET diversifier_index = excluded.diversifier_index`,
		account, index,
	)
	return err
}

// GetDiversifierIndex returns the stored diversifier index for
// account, or (nil, false) if none has been set.
func (l *Ledger) GetDiversifierIndex(account int64) ([]byte, bool, error) {
	var idx []byte
	err := l.db.QueryRow(`SELECT diversifier_index FROM diversifiers WHERE account = ?`, account).Scan(&idx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return idx, true, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
