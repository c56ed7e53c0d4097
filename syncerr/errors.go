// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package syncerr defines the typed error kinds of spec §7 and wraps
// them with github.com/pkg/errors so callers can test the kind with
// errors.Is/errors.As while a logged cause still carries the original
// stack and message.
package syncerr

import "github.com/pkg/errors"

// Kind is one of the error kinds enumerated in spec §7. Kind values are
// sentinel errors: wrap them with Wrap so errors.Is(err, KindReorg)
// keeps working after a cause is attached.
type Kind int

const (
	// KindReorg: a downloaded block's prev_hash does not match the
	// expected value. Non-retryable without TrimToHeight.
	KindReorg Kind = iota
	// KindBusy: another sync is already in progress.
	KindBusy
	// KindTransport: an RPC call failed; retry with backoff is the
	// caller's discretion.
	KindTransport
	// KindDecode: a malformed block, transaction, key, or backup
	// payload; fatal for the current operation.
	KindDecode
	// KindLedger: a database constraint or I/O error; the in-flight
	// batch's transaction is rolled back, prior committed state
	// remains intact.
	KindLedger
	// KindCancelled: the caller's cancel flag was observed; graceful
	// termination, not a failure.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindReorg:
		return "reorg"
	case KindBusy:
		return "busy"
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindLedger:
		return "ledger"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error returns k.String(), so a bare Kind satisfies the error
// interface and can itself act as the sentinel compared with errors.Is.
func (k Kind) Error() string { return k.String() }

// Wrap attaches kind to cause, preserving cause for logging while
// making errors.Is(err, kind) true. A nil cause returns nil.
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &syncError{kind: kind, cause: errors.Wrap(cause, msg)}
}

// New constructs a bare error of kind with no underlying cause.
func New(kind Kind, msg string) error {
	return &syncError{kind: kind, cause: errors.New(msg)}
}

type syncError struct {
	kind  Kind
	cause error
}

func (e *syncError) Error() string { return e.cause.Error() }

func (e *syncError) Unwrap() error { return e.cause }

// Cause lets github.com/pkg/errors.Cause walk past the kind wrapper.
func (e *syncError) Cause() error { return e.cause }

// Is reports whether target is the same Kind this error was wrapped
// with, so callers can write errors.Is(err, syncerr.KindReorg).
func (e *syncError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.kind
}

// Cause returns the underlying error, matching github.com/pkg/errors'
// Cause convention used by the rest of this codebase's logging call
// sites.
func Cause(err error) error { return errors.Cause(err) }

// KindOf extracts the Kind a syncerr-wrapped error carries, and false
// if err was not produced by Wrap/New.
func KindOf(err error) (Kind, bool) {
	var se *syncError
	if errors.As(err, &se) {
		return se.kind, true
	}
	return 0, false
}
