// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryActiveRequiresSet(t *testing.T) {
	r := NewRegistry()
	_, err := r.Active()
	require.Error(t, err)

	r.Set(0, Coin{Network: "mainnet", DBPath: "wallet.db"})
	require.NoError(t, r.SetActive(0))
	c, err := r.Active()
	require.NoError(t, err)
	require.Equal(t, "mainnet", c.Network)
}

func TestRegistrySetActiveUnknownIndex(t *testing.T) {
	r := NewRegistry()
	r.Set(0, Coin{Network: "mainnet"})
	require.Error(t, r.SetActive(1))
}

func TestParseAppliesDefaultsAndOverrides(t *testing.T) {
	c, err := Parse([]string{"--network", "testnet", "--db-path", "w.db", "--chunk-size", "50"})
	require.NoError(t, err)
	require.Equal(t, "testnet", c.Network)
	require.Equal(t, "w.db", c.DBPath)
	require.Equal(t, uint32(50), c.ChunkSize)
	require.Equal(t, uint32(10), c.ReorgDepth)
}
