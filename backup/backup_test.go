// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package backup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toole-brendan/shellsync/hashdomain"
	"github.com/toole-brendan/shellsync/ledger"
)

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(":memory:", hashdomain.NewSapling())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestExportRestoreRoundTrip(t *testing.T) {
	src := openTestLedger(t)
	_, err := src.StoreAccount(ledger.Account{
		Name:    "primary",
		IVK:     "deadbeef",
		Address: "zaddr1example",
	})
	require.NoError(t, err)

	key, err := GenerateKey()
	require.NoError(t, err)

	exporter := NewExporter(src)
	blob, err := exporter.Export(key)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	_, err = exporter.Export(key)
	require.ErrorIs(t, err, ErrKeyReused)

	dst := openTestLedger(t)
	importer := NewExporter(dst)
	n, err := importer.Restore(key, blob)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	accounts, err := dst.GetAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, "deadbeef", accounts[0].IVK)
}

func TestDecodeKeyRejectsWrongHRP(t *testing.T) {
	_, err := decodeKey("bc1qexample")
	require.Error(t, err)
}
