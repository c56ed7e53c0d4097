// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rpcclient implements the compact-block RPC client described
// in spec §6: a streaming connection to a lightwalletd-style service
// exposing GetLatestBlock/GetBlockRange/GetTransaction. The wire shape
// (§6's CompactBlock/CompactTx) is defined here as plain Go structs
// rather than generated protobuf stubs - this is a deliberate
// simplification (see DESIGN.md), since the protocol buffer it stands
// in for is an external collaborator's contract (§1), not part of the
// core being built. A custom grpc codec marshals these structs with
// encoding/gob, so the client still genuinely drives
// google.golang.org/grpc and its codec registry
// (google.golang.org/grpc/encoding) rather than hand-rolling a socket
// protocol; no message is marshalled with google.golang.org/protobuf.
package rpcclient

import (
	"context"

	"github.com/toole-brendan/shellsync/noteenc"
)

// Streamer is the external collaborator contract a Pipeline drives:
// the subset of the compact-block service the core needs (§6).
type Streamer interface {
	// LatestHeight returns the chain tip height known to the server.
	LatestHeight(ctx context.Context) (uint32, error)

	// BlockRange streams every compact block in [startInclusive,
	// endExclusive) in height order. The returned channel is closed
	// when the range is exhausted or the context is cancelled; a
	// non-nil error on the error channel terminates the stream.
	BlockRange(ctx context.Context, startInclusive, endExclusive uint32) (<-chan noteenc.CompactBlock, <-chan error)

	// Transaction fetches one full transaction's raw bytes by txid,
	// for the Transaction Detailer (§4.H).
	Transaction(ctx context.Context, txid [32]byte) ([]byte, error)
}
