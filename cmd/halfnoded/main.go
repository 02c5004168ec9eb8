// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command halfnoded runs the half-node process: it opens the block store
// and index, wires the mempool and chain database together, optionally
// bulk-imports a block file, and runs the fork detector over its single
// named chain handle until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daglabs/halfnode/chaincfg"
	"github.com/daglabs/halfnode/chaindb"
	"github.com/daglabs/halfnode/config"
	"github.com/daglabs/halfnode/forkdetector"
	"github.com/daglabs/halfnode/logs"
	"github.com/daglabs/halfnode/mempool"
	"github.com/daglabs/halfnode/txverify"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "halfnoded: %s\n", err)
		return 1
	}

	logFile, _ := cfg.DefaultLogFiles()
	logs.InitLogRotators(logFile)
	if err := logs.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		fmt.Fprintf(os.Stderr, "halfnoded: %s\n", err)
		return 1
	}
	log, _ := logs.Get(logs.SubsystemTags.HNOD)

	params, ok := chaincfg.ParamsForNet(cfg.Chain)
	if !ok {
		log.Errorf("Unrecognized chain %q", cfg.Chain)
		return 1
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		log.Errorf("Creating data directory: %s", err)
		return 1
	}

	pool := mempool.New()

	var verifier txverify.Verifier
	if cfg.NoSig {
		verifier = txverify.NopVerifier{}
	} else {
		verifier = txverify.EngineVerifier{}
	}

	cdb, err := chaindb.New(cfg.DataDir, params, pool, verifier, cfg.NoSig)
	if err != nil {
		log.Errorf("Opening chain database: %s", err)
		return 1
	}
	defer func() {
		if err := cdb.Close(); err != nil {
			log.Errorf("Closing chain database: %s", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.LoadBlock != "" {
		log.Infof("Importing blocks from %s", cfg.LoadBlock)
		if err := cdb.LoadFile(ctx, cfg.LoadBlock); err != nil {
			log.Errorf("Loading block file: %s", err)
			return 1
		}
		height, err := cdb.GetHeight(ctx)
		if err != nil {
			log.Errorf("Reading height after import: %s", err)
			return 1
		}
		log.Infof("Import complete, chain height %d", height)
	}

	detector := forkdetector.New(
		time.Duration(cfg.CheckInterval)*time.Second,
		[]forkdetector.Handle{{Name: cfg.Chain, ChainDb: cdb}},
	)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		detector.Run(ctx)
	}()

	log.Infof("halfnoded started, data dir %s, chain %s", cfg.DataDir, params.Name)

	<-interrupt
	log.Infof("Received interrupt, shutting down")
	cancel()
	<-done

	return 0
}
