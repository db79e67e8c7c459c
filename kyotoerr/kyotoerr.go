// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package kyotoerr defines the typed error taxonomy used throughout the
// node: every error surface is tagged with a Kind so callers can react
// differently to a stalled sync versus an unreachable peer versus a
// misconfigured node, without string-matching error text.
package kyotoerr

import "fmt"

// Kind classifies an error by the recovery the caller is expected to take.
type Kind int

const (
	// Transport covers socket errors, v2 handshake failure, checksum
	// mismatch, malformed messages, oversized payloads. The session is
	// dropped; nothing is surfaced to the client unless progress stalls.
	Transport Kind = iota

	// Protocol covers an unexpected message for the current state,
	// missing mandatory fields, or a version too old to serve. The
	// session is dropped and the peer penalized.
	Protocol

	// Consensus covers invalid PoW, an orphan header after a locator
	// exchange, a filter-header commitment mismatch, or a Merkle-root
	// mismatch. The offending peer is banned.
	Consensus

	// Resource covers timeouts and peer disconnection. The operation is
	// retried against a different peer up to a bounded number of times.
	Resource

	// Configuration covers contradictory options supplied by the caller
	// at construction time. Always fatal at construction.
	Configuration
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Protocol:
		return "protocol"
	case Consensus:
		return "consensus"
	case Resource:
		return "resource"
	case Configuration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is a kind-tagged error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Kind, so callers
// can do errors.Is(err, kyotoerr.New(kyotoerr.Consensus, "")) to test kind
// without caring about the message.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error that wraps cause, preserving it for errors.As/
// errors.Unwrap chains.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Transportf is a convenience constructor for a formatted Transport error.
func Transportf(format string, args ...any) *Error {
	return New(Transport, fmt.Sprintf(format, args...))
}

// Protocolf is a convenience constructor for a formatted Protocol error.
func Protocolf(format string, args ...any) *Error {
	return New(Protocol, fmt.Sprintf(format, args...))
}

// Consensusf is a convenience constructor for a formatted Consensus error.
func Consensusf(format string, args ...any) *Error {
	return New(Consensus, fmt.Sprintf(format, args...))
}

// Resourcef is a convenience constructor for a formatted Resource error.
func Resourcef(format string, args ...any) *Error {
	return New(Resource, fmt.Sprintf(format, args...))
}

// Configurationf is a convenience constructor for a formatted
// Configuration error.
func Configurationf(format string, args ...any) *Error {
	return New(Configuration, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, reporting ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if asErr, ok := err.(*Error); ok {
			e = asErr
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return 0, false
	}
	return e.Kind, true
}
