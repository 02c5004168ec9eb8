// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logs wires the per-subsystem btclog.Logger variables every other
// package pulls its "log" var from, backed by a rotating file plus stdout.
// Output logged before InitLogRotators has run is discarded.
package logs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// SubsystemTags enumerates the recognized subsystem identifiers.
var SubsystemTags = struct {
	CHDB, // chaindb: the consensus engine
	BSTR, // blockstore: the append-only block file
	KVDX, // kvindex: the leveldb-backed index
	MPOL, // mempool
	MINR, // mining: block template assembly
	FORK, // forkdetector
	CNFG, // config
	HNOD string // cmd/halfnoded: the main process
}{
	CHDB: "CHDB",
	BSTR: "BSTR",
	KVDX: "KVDX",
	MPOL: "MPOL",
	MINR: "MINR",
	FORK: "FORK",
	CNFG: "CNFG",
	HNOD: "HNOD",
}

type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		logRotator.Write(p)
	}
	return len(p), nil
}

var (
	backend = btclog.NewBackend(logWriter{})

	logRotator *rotator.Rotator
	initiated  bool

	chdbLog = backend.Logger(SubsystemTags.CHDB)
	bstrLog = backend.Logger(SubsystemTags.BSTR)
	kvdxLog = backend.Logger(SubsystemTags.KVDX)
	mpolLog = backend.Logger(SubsystemTags.MPOL)
	minrLog = backend.Logger(SubsystemTags.MINR)
	forkLog = backend.Logger(SubsystemTags.FORK)
	cnfgLog = backend.Logger(SubsystemTags.CNFG)
	hnodLog = backend.Logger(SubsystemTags.HNOD)

	subsystemLoggers = map[string]btclog.Logger{
		SubsystemTags.CHDB: chdbLog,
		SubsystemTags.BSTR: bstrLog,
		SubsystemTags.KVDX: kvdxLog,
		SubsystemTags.MPOL: mpolLog,
		SubsystemTags.MINR: minrLog,
		SubsystemTags.FORK: forkLog,
		SubsystemTags.CNFG: cnfgLog,
		SubsystemTags.HNOD: hnodLog,
	}
)

// InitLogRotators initializes the logging rotator to write logs to logFile,
// creating roll files alongside it, and begins mirroring output to stdout.
// Until it is called, subsystem loggers discard their output.
func InitLogRotators(logFile string) {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	logRotator = r
	initiated = true
}

// Writer exposes the underlying log writer, mainly so callers can flush or
// compose it with other sinks before shutdown.
func Writer() io.Writer { return logWriter{} }

// Get returns the logger for the named subsystem, and whether it exists.
func Get(tag string) (logger btclog.Logger, ok bool) {
	logger, ok = subsystemLoggers[tag]
	return
}

// SetLogLevel sets the logging level for the named subsystem. Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for every subsystem logger.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// SupportedSubsystems returns a sorted slice of the recognized subsystem
// identifiers.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. debugLevel is either a bare level applied to every
// subsystem, or a comma-separated list of SUBSYSTEM=level pairs.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]", logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := Get(subsysID); !exists {
			return fmt.Errorf("the specified subsystem [%s] is invalid -- supported subsystems %s",
				subsysID, strings.Join(SupportedSubsystems(), ", "))
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", logLevel)
		}
		SetLogLevel(subsysID, logLevel)
	}

	return nil
}

func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}
