// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
)

var (
	ErrEmptyCommand      = errors.New("command is required")
	ErrWaitTimeout       = errors.New("timeout waiting for process")
	ErrNoStdinPipe       = errors.New("stdin is not a pipe")
	ErrProcessFinished   = errors.New("process has finished")
	ErrUnknownSignal     = errors.New("unknown signal")
	ErrUnknownStreamMode = errors.New("unknown stream mode")
	ErrNoSuchTask        = errors.New("unknown task")
	ErrDuplicateCommand  = errors.New("command already registered")
	ErrInvalidTaskFile   = errors.New("invalid task file")
)
