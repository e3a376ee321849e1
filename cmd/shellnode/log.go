// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcrelay/corenode/peer"
	"github.com/btcrelay/corenode/peergroup"
	"github.com/btcrelay/corenode/spv"
	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter fans every write out to stdout and to the rotating log file,
// mirroring the classic btcd composition-root logging shape.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	logRotator.Write(p)
	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})
	logRotator *rotator.Rotator

	peerLog      = backendLog.Logger("PEER")
	peergroupLog = backendLog.Logger("PGRP")
	spvLog       = backendLog.Logger("SPV ")
	mainLog      = backendLog.Logger("MAIN")

	subsystemLoggers = map[string]btclog.Logger{
		"PEER": peerLog,
		"PGRP": peergroupLog,
		"SPV":  spvLog,
		"MAIN": mainLog,
	}
)

// initLogRotator creates the rotating log file every subsystem logger's
// backend writes through, alongside stdout.
func initLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("shellnode: create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("shellnode: create log rotator: %w", err)
	}
	logRotator = r
	return nil
}

// setLogLevels applies levelSpec, a single level name ("debug"), to every
// subsystem. Any other spec, including SUBSYSTEM=level pairs, returns an
// error.
func setLogLevels(levelSpec string) error {
	if levelSpec == "" {
		return nil
	}
	level, ok := btclog.LevelFromString(levelSpec)
	if ok {
		for _, logger := range subsystemLoggers {
			logger.SetLevel(level)
		}
		return nil
	}
	return fmt.Errorf("shellnode: unknown log level %q", levelSpec)
}

// useLoggers wires every package's own logger shim to this process's
// shared backend.
func useLoggers() {
	peer.UseLogger(peerLog)
	peergroup.UseLogger(peergroupLog)
	spv.UseLogger(spvLog)
}
