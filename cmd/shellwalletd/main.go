// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// shellwalletd is an example wiring of config, ledger, syncpipe, and
// txdetail into a single sync run against a lightwalletd-compatible
// server: parse a Coin, open its ledger, dial its RPC server, and
// drive the pipeline to the chain tip once, printing a balance summary
// on completion. A CLI/FFI façade is out of core scope (spec §6); this
// is one concrete way to exercise the pieces together.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/toole-brendan/shellsync/backup"
	"github.com/toole-brendan/shellsync/config"
	"github.com/toole-brendan/shellsync/hashdomain"
	"github.com/toole-brendan/shellsync/ledger"
	"github.com/toole-brendan/shellsync/noteenc"
	"github.com/toole-brendan/shellsync/rpcclient"
	"github.com/toole-brendan/shellsync/syncpipe"
	"github.com/toole-brendan/shellsync/txdetail"
)

var (
	logFileFlag = flag.String("log-file", "shellwalletd.log", "rotating log file path")
	domainFlag  = flag.String("domain", "sapling", "hash domain to sync (sapling, orchard)")
)

func main() {
	flag.Parse()

	backend, closeLog := setupLogging(*logFileFlag)
	defer closeLog()
	useLoggers(backend)

	coin, err := config.Parse(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	domain, err := selectDomain(*domainFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	l, err := ledger.Open(coin.DBPath, domain)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		os.Exit(1)
	}
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		cancel()
	}()

	client, err := rpcclient.Dial(ctx, coin.LightwalletdURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", coin.LightwalletdURL, err)
		os.Exit(1)
	}
	defer client.Close()

	accounts, err := l.GetAccounts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read accounts: %v\n", err)
		os.Exit(1)
	}
	var viewable []noteenc.Account
	for _, a := range accounts {
		if a.IVK == "" {
			continue
		}
		raw, err := hex.DecodeString(a.IVK)
		if err != nil {
			continue
		}
		var ivk noteenc.IVK
		copy(ivk[:], raw)
		viewable = append(viewable, noteenc.Account{ID: a.ID, IVK: ivk})
	}

	detailer := &txdetail.Detailer{Streamer: client, Ledger: l}

	pipeline := &syncpipe.Pipeline{
		Streamer:      client,
		Ledger:        l,
		Domain:        domain,
		Decrypter:     noteenc.New(viewable),
		ChunkSize:     coin.ChunkSize,
		ReorgDepth:    coin.ReorgDepth,
		WitnessRetain: coin.WitnessRetain,
		Progress: func(height uint32) {
			fmt.Printf("committed batch starting at height %d\n", height)
		},
		Detail: detailer.Run,
	}

	if err := pipeline.Run(ctx, 0); err != nil {
		fmt.Fprintf(os.Stderr, "sync: %v\n", err)
		os.Exit(1)
	}

	summary, err := l.Summary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "summary: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(summary)

	// Demonstrate the backup export path without writing the key or
	// blob anywhere persistent; a real façade would surface both to
	// the operator instead of discarding them.
	if key, err := backup.GenerateKey(); err == nil {
		exporter := backup.NewExporter(l)
		if _, err := exporter.Export(key); err != nil {
			log.Warnf("backup export: %v", err)
		}
	}
}

func selectDomain(name string) (hashdomain.Domain, error) {
	switch name {
	case "sapling":
		return hashdomain.NewSapling(), nil
	case "orchard":
		return hashdomain.NewOrchard(), nil
	default:
		return nil, fmt.Errorf("unknown domain %q", name)
	}
}

// setupLogging opens a size-rotated log file the way btcd-family
// daemons do, returning a btclog.Backend writing to it and a closer to
// flush/close the rotator on shutdown.
func setupLogging(path string) (*btclog.Backend, func() error) {
	r, err := rotator.New(path, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log rotator: %v, logging to stderr\n", err)
		return btclog.NewBackend(os.Stderr), func() error { return nil }
	}
	return btclog.NewBackend(r), r.Close
}

// useLoggers installs a subsystem logger per package, the same
// UseLogger wiring btcd's daemon main performs for each of its
// packages.
func useLoggers(backend *btclog.Backend) {
	hashdomain.UseLogger(backend.Logger("HDOM"))
	ledger.UseLogger(backend.Logger("LDGR"))
	syncpipe.UseLogger(backend.Logger("SYNC"))
	txdetail.UseLogger(backend.Logger("TDTL"))
	rpcclient.UseLogger(backend.Logger("RPCC"))
	backup.UseLogger(backend.Logger("BKUP"))
	log = backend.Logger("MAIN")
}

var log btclog.Logger = btclog.Disabled
