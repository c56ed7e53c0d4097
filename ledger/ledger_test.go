// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toole-brendan/shellsync/committree"
	"github.com/toole-brendan/shellsync/hashdomain"
	"github.com/toole-brendan/shellsync/witness"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:", hashdomain.NewSapling())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestGetTreeEmptyLedger(t *testing.T) {
	l := openTestLedger(t)
	tree, witnesses, err := l.GetTree()
	require.NoError(t, err)
	require.Zero(t, tree.GetPosition())
	require.Empty(t, witnesses)
}

func TestStoreAndFetchAccount(t *testing.T) {
	l := openTestLedger(t)
	id, err := l.StoreAccount(Account{Name: "primary", IVK: "ivk1", Address: "addr1"})
	require.NoError(t, err)

	accounts, err := l.GetAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, id, accounts[0].ID)
	require.Equal(t, "ivk1", accounts[0].IVK)
}

func TestBatchStoreBlockTransactionNoteRoundTrip(t *testing.T) {
	l := openTestLedger(t)
	acct, err := l.StoreAccount(Account{Name: "a", IVK: "ivk", Address: "addr"})
	require.NoError(t, err)

	b, err := l.BeginBatch()
	require.NoError(t, err)

	var txid [32]byte
	txid[0] = 1
	txID, err := b.StoreTransaction(acct, txid, 100, 1700000000, 0)
	require.NoError(t, err)

	var rcm, nf [32]byte
	nf[0] = 7
	noteID, err := b.StoreReceivedNote(acct, txID, 100, 0, 0, []byte{1, 2, 3}, 5000, rcm, nf)
	require.NoError(t, err)

	tree := committree.New()
	var leaf hashdomain.Node
	copy(leaf[:], "leaf")
	tree.Left = &leaf
	require.NoError(t, b.StoreBlock(100, [32]byte{9}, 1700000000, tree))

	w := witness.New(0, tree, noteID, nil)
	require.NoError(t, b.StoreWitness(noteID, 100, w))

	require.NoError(t, b.Commit())

	gotTree, witnesses, err := l.GetTree()
	require.NoError(t, err)
	require.EqualValues(t, 1, gotTree.GetPosition())
	require.Len(t, witnesses, 1)

	bal, err := l.GetBalance(acct)
	require.NoError(t, err)
	require.EqualValues(t, 5000, bal)

	nfMap, err := l.GetNullifiers()
	require.NoError(t, err)
	ref, ok := nfMap.Lookup(nf)
	require.True(t, ok)
	require.Equal(t, noteID, ref.IDNote)
	require.Equal(t, acct, ref.Account)
}

func TestTrimToHeightRewindsState(t *testing.T) {
	l := openTestLedger(t)
	acct, err := l.StoreAccount(Account{Name: "a", IVK: "ivk", Address: "addr"})
	require.NoError(t, err)

	b, err := l.BeginBatch()
	require.NoError(t, err)
	var txid [32]byte
	txid[0] = 1
	txID, err := b.StoreTransaction(acct, txid, 50, 1, 0)
	require.NoError(t, err)
	var rcm, nf [32]byte
	noteID, err := b.StoreReceivedNote(acct, txID, 50, 0, 0, []byte{0}, 100, rcm, nf)
	require.NoError(t, err)
	tree := committree.New()
	require.NoError(t, b.StoreBlock(50, [32]byte{1}, 1, tree))
	require.NoError(t, b.StoreWitness(noteID, 50, witness.New(0, tree, noteID, nil)))
	require.NoError(t, b.Commit())

	b2, err := l.BeginBatch()
	require.NoError(t, err)
	var txid2 [32]byte
	txid2[0] = 2
	txID2, err := b2.StoreTransaction(acct, txid2, 60, 2, 0)
	require.NoError(t, err)
	var rcm2, nf2 [32]byte
	nf2[0] = 2
	noteID2, err := b2.StoreReceivedNote(acct, txID2, 60, 1, 0, []byte{0}, 200, rcm2, nf2)
	require.NoError(t, err)
	require.NoError(t, b2.StoreBlock(60, [32]byte{2}, 2, tree))
	require.NoError(t, b2.StoreWitness(noteID2, 60, witness.New(1, tree, noteID2, nil)))
	require.NoError(t, b2.Commit())

	require.NoError(t, l.TrimToHeight(60))

	height, err := l.GetLastSyncHeight()
	require.NoError(t, err)
	require.EqualValues(t, 50, height)

	bal, err := l.GetBalance(acct)
	require.NoError(t, err)
	require.EqualValues(t, 100, bal)
}
