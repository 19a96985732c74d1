// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qerr defines the error-kind taxonomy shared across the qEEG
// engine: InvalidParam and StateViolation abort the call immediately,
// InsufficientData is swallowed where semantically natural, and Numerical
// surfaces as NaN rather than as an error.
package qerr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so callers can decide whether to retry,
// skip a frame, or treat it as a fatal configuration mistake.
type Kind int

const (
	// InvalidParam marks malformed parameters: out-of-range bands, a
	// non-positive sampling rate, a bad window/overlap, non-unique channel
	// names, or a mismatched block shape. Reported immediately; never
	// produces a partial result.
	InvalidParam Kind = iota
	// InsufficientData marks a call that has not yet seen enough samples
	// (fewer than nperseg, an empty peak set, a baseline not yet ready).
	// Swallowed where natural: online estimators emit no frame, and the NF
	// controller emits reward=0 while the baseline accumulates.
	InsufficientData
	// Numerical marks a zero-norm topography, a zero denominator in a
	// ratio/PAC/coherence computation, or another non-finite intermediate.
	// It propagates as NaN in the produced value rather than as an error,
	// unless the caller explicitly opts in to treating it as fatal.
	Numerical
	// StateViolation marks a call made after a fatal configuration error,
	// or a pushed block with the wrong channel count.
	StateViolation
)

func (k Kind) String() string {
	switch k {
	case InvalidParam:
		return "InvalidParam"
	case InsufficientData:
		return "InsufficientData"
	case Numerical:
		return "Numerical"
	case StateViolation:
		return "StateViolation"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carried for every Kind. Op names the
// failing operation (e.g. "welch.PSD") so messages stay greppable.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

// New constructs an *Error for op with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
