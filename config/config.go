// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config parses the process-wide settings the reference
// implementation threads through as a loose "settings" map (§9 of the
// design). halfnode models it as an explicit struct instead.
package config

import (
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultChain          = "mainnet"
	defaultCheckInterval  = 60
	defaultLogFilename    = "halfnode.log"
	defaultErrLogFilename = "halfnode_err.log"
)

var defaultHomeDir = appDataDir("halfnode")
var defaultDataDir = filepath.Join(defaultHomeDir, "data")
var defaultLogDir = filepath.Join(defaultHomeDir, "logs")

// Settings is the configuration record threaded into the ChainDb
// constructor and the rest of the core. It covers every option spec.md §9
// recognizes, plus the ambient options the teacher always carries
// (datadir, log level).
type Settings struct {
	DataDir       string `long:"datadir" description:"Directory to store blocks and the leveldb index" default:"-"`
	LogDir        string `long:"logdir" description:"Directory to log output"`
	DebugLevel    string `long:"debuglevel" description:"Logging level" default:"info"`
	Chain         string `long:"chain" description:"Network to connect to" default:"mainnet"`
	NoSig         bool   `long:"nosig" description:"Disable signature verification on block connect"`
	CheckInterval int    `long:"checkinterval" description:"Seconds between fork-detector sweeps" default:"60"`
	LoadBlock     string `long:"loadblock" description:"Path to a block file to bulk-import at startup"`
}

// Parse parses command-line flags into a Settings value, applying the
// reference implementation's defaults for any option left unset.
func Parse(args []string) (*Settings, error) {
	cfg := &Settings{
		Chain:         defaultChain,
		CheckInterval: defaultCheckInterval,
		DataDir:       defaultDataDir,
		LogDir:        defaultLogDir,
	}

	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.DataDir == "-" || cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.CheckInterval <= 0 {
		return nil, errors.New("checkinterval must be positive")
	}

	return cfg, nil
}

// DefaultLogFiles returns the standard and error log file paths under the
// settings' log directory.
func (s *Settings) DefaultLogFiles() (logFile, errLogFile string) {
	dir := s.LogDir
	if dir == "" {
		dir = defaultLogDir
	}
	return filepath.Join(dir, defaultLogFilename), filepath.Join(dir, defaultErrLogFilename)
}

// appDataDir returns the default per-OS application data directory for the
// given app name, matching the teacher's util.AppDataDir convention.
func appDataDir(appName string) string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, "."+appName)
	}
	return filepath.Join(".", appName)
}
