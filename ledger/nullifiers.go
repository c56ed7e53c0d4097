// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"database/sql"
	"errors"

	"github.com/decred/dcrd/lru"
)

// NfRef identifies the received_notes row and owning account a
// nullifier authenticates, along with the note's value so a spend of
// it can debit the owning account without a second lookup (§4.F step
// 4 "decrement the account's value by the spent note's value";
// §4.G "get_nullifiers").
type NfRef struct {
	IDNote  int64
	Account int64
	Value   uint64
}

// NullifierMap is the in-memory nullifier -> (note, account) lookup
// the processor task owns for the duration of a batch (§5 "The
// nullifier map is owned by the processor task"). spentCache is a
// bounded recently-spent set that lets repeat lookups against a hot
// address (e.g. one receiving many small payments) skip re-consulting
// byNullifier once a nullifier has already resolved - the same
// recently-seen-set idiom dcrd/lru provides for btcd's mempool.
type NullifierMap struct {
	byNullifier map[[32]byte]NfRef
	spentCache  *lru.Cache
}

func newNullifierMap(rows map[[32]byte]NfRef) *NullifierMap {
	return &NullifierMap{byNullifier: rows, spentCache: lru.NewCache(4096)}
}

// Lookup returns the note/account a nullifier belongs to, if it is
// still tracked as unspent.
func (n *NullifierMap) Lookup(nf [32]byte) (NfRef, bool) {
	if n.spentCache.Contains(nf) {
		return NfRef{}, false
	}
	ref, ok := n.byNullifier[nf]
	return ref, ok
}

// MarkSpent removes nf from the live map and records it in the
// negative cache, mirroring spends detected mid-batch (§4.E).
func (n *NullifierMap) MarkSpent(nf [32]byte) {
	delete(n.byNullifier, nf)
	n.spentCache.Add(nf)
}

// Insert adds a newly received note's nullifier to the map, so a spend
// of it observed later in the same batch resolves without a DB round
// trip.
func (n *NullifierMap) Insert(nf [32]byte, ref NfRef) {
	n.byNullifier[nf] = ref
}

// Len reports how many nullifiers are currently tracked as unspent.
func (n *NullifierMap) Len() int {
	return len(n.byNullifier)
}

// GetNoteValue looks up the value of the note a nullifier belongs to,
// for account, regardless of whether it has since been marked spent -
// unlike NullifierMap.Lookup, which only tracks still-unspent notes,
// this backs the Transaction Detailer's spent-input aggregation (§4.H
// "aggregate input values via the nullifier->value map"), which runs
// after the spend has already been committed.
func (l *Ledger) GetNoteValue(account int64, nf [32]byte) (uint64, bool, error) {
	var value uint64
	err := l.db.QueryRow(
		`SELECT value FROM received_notes WHERE account = ? AND nf = ?`,
		account, nf[:],
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return value, true, nil
}
