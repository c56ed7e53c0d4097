// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package syncerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapPreservesKindAndCause(t *testing.T) {
	cause := errors.New("prev_hash mismatch")
	err := Wrap(KindReorg, cause, "download range 100-200")

	require.ErrorIs(t, err, KindReorg)
	require.False(t, errors.Is(err, KindBusy))

	k, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindReorg, k)
}

func TestWrapNilCause(t *testing.T) {
	require.Nil(t, Wrap(KindLedger, nil, "no-op"))
}
