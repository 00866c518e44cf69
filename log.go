// Copyright (c) 2016, 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"

	"code.cryptopower.dev/group/communityhub/libwallet"
	libutils "code.cryptopower.dev/group/communityhub/libwallet/utils"
	"code.cryptopower.dev/group/communityhub/logger"
)

const logFilename = "communityhub.log"

// logWriter implements an io.Writer that outputs to the log rotator and, when
// requested, to standard error. Standard output is left to command output.
type logWriter struct{}

// Write writes the data in p to standard error and the log rotator.
func (logWriter) Write(p []byte) (n int, err error) {
	if logToStderr {
		os.Stderr.Write(p)
	}
	if logRotator == nil {
		return len(p), nil
	}
	return logRotator.Write(p)
}

// Loggers per subsystem.  A single backend logger is created and all subsytem
// loggers created from it will write to the backend.  When adding new
// subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
//
// Loggers can not be used before the log rotator has been initialized with a
// log file.  This must be performed early during application startup by calling
// initLogRotator.
var (
	// backendLog is the logging backend used to create all subsystem loggers.
	backendLog = slog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs.  It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	logToStderr bool

	log     = backendLog.Logger("CHUB")
	uiLog   = backendLog.Logger("UI")
	hubmLog = backendLog.Logger("HUBM")
	hubLog  = backendLog.Logger("HUB")
	provLog = backendLog.Logger("PROV")
	cntrLog = backendLog.Logger("CNTR")
)

// Initialize package-global logger variables.
func init() {
	libwallet.UseLoggers(hubmLog, hubLog, provLog, cntrLog)

	logger.New(subsystemLoggers)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]slog.Logger{
	"CHUB": log,
	"UI":   uiLog,
	"HUBM": hubmLog,
	"HUB":  hubLog,
	"PROV": provLog,
	"CNTR": cntrLog,
}

// initLogRotator initializes the logging rotater to write logs to logFile and
// create roll files in the same directory.  It must be called before the
// package-global log rotater variables are used.
func initLogRotator(logDir string, maxRolls int) {
	// Close any previously initialized log rotator.
	if logRotator != nil {
		logRotator.Close()
	}

	err := os.MkdirAll(logDir, libutils.UserFilePerm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	r, err := rotator.New(filepath.Join(logDir, logFilename), 32*1024, false, maxRolls)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %v\n", err)
		os.Exit(1)
	}
	logRotator = r
}

func closeLogRotator() {
	if logRotator != nil {
		logRotator.Close()
		logRotator = nil
	}
}
