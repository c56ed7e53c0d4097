// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package syncpipe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toole-brendan/shellsync/hashdomain"
	"github.com/toole-brendan/shellsync/ledger"
	"github.com/toole-brendan/shellsync/noteenc"
	"github.com/toole-brendan/shellsync/syncerr"
)

// fakeStreamer serves a fixed tip height and a canned set of block
// ranges, letting a test plant a prev_hash discontinuity partway
// through a sync run.
type fakeStreamer struct {
	tip    uint32
	ranges map[[2]uint32][]noteenc.CompactBlock
}

func (f *fakeStreamer) LatestHeight(ctx context.Context) (uint32, error) {
	return f.tip, nil
}

func (f *fakeStreamer) BlockRange(ctx context.Context, start, end uint32) (<-chan noteenc.CompactBlock, <-chan error) {
	blocks := make(chan noteenc.CompactBlock, len(f.ranges[[2]uint32{start, end}]))
	errs := make(chan error, 1)
	for _, b := range f.ranges[[2]uint32{start, end}] {
		blocks <- b
	}
	close(blocks)
	errs <- nil
	return blocks, errs
}

func (f *fakeStreamer) Transaction(ctx context.Context, txid [32]byte) ([]byte, error) {
	return nil, nil
}

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(":memory:", hashdomain.NewSapling())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

// TestRunDetectsPrevHashMismatchAsReorg plants a block whose prev_hash
// doesn't match the previous block's hash in the middle of a sync run
// and asserts the downloader surfaces it as syncerr.KindReorg (§4.F
// "validates prev_hash continuity"; spec §8 reorg-detection scenario).
func TestRunDetectsPrevHashMismatchAsReorg(t *testing.T) {
	l := openTestLedger(t)
	d := noteenc.New(nil)

	block := func(height uint32, hash, prevHash byte) noteenc.CompactBlock {
		var h, p [32]byte
		h[0], p[0] = hash, prevHash
		return noteenc.CompactBlock{Height: height, Hash: h, PrevHash: p}
	}

	streamer := &fakeStreamer{
		tip: 4,
		ranges: map[[2]uint32][]noteenc.CompactBlock{
			{0, 2}: {block(0, 1, 0), block(1, 2, 1)},
			// block 2's prev_hash (9) disagrees with block 1's hash (2).
			{2, 4}: {block(2, 3, 9), block(3, 4, 3)},
		},
	}

	p := &Pipeline{
		Streamer:  streamer,
		Ledger:    l,
		Domain:    hashdomain.NewSapling(),
		Decrypter: d,
		ChunkSize: 2,
	}

	err := p.Run(context.Background(), 0)
	require.Error(t, err)
	kind, ok := syncerr.KindOf(err)
	require.True(t, ok, "expected a syncerr-wrapped error")
	require.Equal(t, syncerr.KindReorg, kind)
}

// TestRunCleanRangeSucceeds is the control case: consistent prev_hash
// chaining across a chunk boundary completes without error.
func TestRunCleanRangeSucceeds(t *testing.T) {
	l := openTestLedger(t)
	d := noteenc.New(nil)

	block := func(height uint32, hash, prevHash byte) noteenc.CompactBlock {
		var h, p [32]byte
		h[0], p[0] = hash, prevHash
		return noteenc.CompactBlock{Height: height, Hash: h, PrevHash: p}
	}

	streamer := &fakeStreamer{
		tip: 4,
		ranges: map[[2]uint32][]noteenc.CompactBlock{
			{0, 2}: {block(0, 1, 0), block(1, 2, 1)},
			{2, 4}: {block(2, 3, 2), block(3, 4, 3)},
		},
	}

	p := &Pipeline{
		Streamer:  streamer,
		Ledger:    l,
		Domain:    hashdomain.NewSapling(),
		Decrypter: d,
		ChunkSize: 2,
	}

	err := p.Run(context.Background(), 0)
	require.NoError(t, err)

	height, err := l.GetLastSyncHeight()
	require.NoError(t, err)
	require.EqualValues(t, 3, height)
}
