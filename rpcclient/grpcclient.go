// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/toole-brendan/shellsync/noteenc"
)

// Service path constants, named after the lightwalletd
// CompactTxStreamer service the original sync code dials
// (original_source's lw_rpc::compact_tx_streamer_client).
const (
	methodLatestBlock = "/cash.z.wallet.sdk.rpc.CompactTxStreamer/GetLatestBlock"
	methodBlockRange  = "/cash.z.wallet.sdk.rpc.CompactTxStreamer/GetBlockRange"
	methodTransaction = "/cash.z.wallet.sdk.rpc.CompactTxStreamer/GetTransaction"
)

// GRPCClient is a Streamer backed by a real grpc.ClientConn, using the
// gob codec registered in codec.go in place of generated protobuf
// stubs.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// Dial connects to a lightwalletd-compatible server at target.
func Dial(ctx context.Context, target string) (*GRPCClient, error) {
	conn, err := grpc.DialContext(ctx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		log.Errorf("dial %s: %v", target, err)
		return nil, err
	}
	log.Infof("connected to %s", target)
	return &GRPCClient{conn: conn}, nil
}

// Close tears down the underlying connection.
func (c *GRPCClient) Close() error { return c.conn.Close() }

type latestBlockRequest struct{}
type latestBlockReply struct{ Height uint32 }

// LatestHeight implements Streamer.
func (c *GRPCClient) LatestHeight(ctx context.Context) (uint32, error) {
	var reply latestBlockReply
	if err := c.conn.Invoke(ctx, methodLatestBlock, &latestBlockRequest{}, &reply); err != nil {
		return 0, err
	}
	return reply.Height, nil
}

type blockRangeRequest struct {
	Start uint32
	End   uint32
}

var blockRangeStreamDesc = &grpc.StreamDesc{
	StreamName:    "GetBlockRange",
	ServerStreams: true,
}

// BlockRange implements Streamer. It opens one server-streaming RPC and
// relays each decoded compact block on the returned channel in receive
// order, closing both channels when the stream ends.
func (c *GRPCClient) BlockRange(ctx context.Context, startInclusive, endExclusive uint32) (<-chan noteenc.CompactBlock, <-chan error) {
	blocks := make(chan noteenc.CompactBlock, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(blocks)
		defer close(errs)

		stream, err := c.conn.NewStream(ctx, blockRangeStreamDesc, methodBlockRange)
		if err != nil {
			errs <- err
			return
		}
		req := blockRangeRequest{Start: startInclusive, End: endExclusive}
		if err := stream.SendMsg(&req); err != nil {
			errs <- err
			return
		}
		if err := stream.CloseSend(); err != nil {
			errs <- err
			return
		}
		for {
			var cb noteenc.CompactBlock
			err := stream.RecvMsg(&cb)
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			select {
			case blocks <- cb:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return blocks, errs
}

type txFilterRequest struct{ Hash [32]byte }
type rawTransactionReply struct{ Data []byte }

// Transaction implements Streamer.
func (c *GRPCClient) Transaction(ctx context.Context, txid [32]byte) ([]byte, error) {
	var reply rawTransactionReply
	if err := c.conn.Invoke(ctx, methodTransaction, &txFilterRequest{Hash: txid}, &reply); err != nil {
		return nil, err
	}
	return reply.Data, nil
}
