/*
NAME
  logsetup.go

DESCRIPTION
  logsetup.go builds the rotating-file logger used by the pipeline binary,
  adapted from cmd/rv's lumberjack-backed logger construction.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pipeline

import (
	"github.com/ausocean/utils/logging"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
)

// NewFileLogger returns a logging.Logger at the given verbosity that writes
// to path, rotating per the defaults cmd/rv uses for its own file log.
func NewFileLogger(path string, verbosity int8, suppress bool) logging.Logger {
	fileLog := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	return logging.New(verbosity, fileLog, suppress)
}
