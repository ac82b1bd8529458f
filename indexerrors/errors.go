// Package indexerrors classifies every error that can surface from the
// mapping host bridge, the store, or the runtime into the five kinds
// described in spec §7, so the caller knows without inspecting message
// text whether to discard a handler's writes, restart the block stream,
// restart the runtime, or stop the world.
package indexerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the error taxonomy from spec §7. Propagation policy lives at
// the call sites that switch on Kind, not here.
type Kind int

const (
	// KindUnknown is the zero value and must never be intentionally
	// produced; its presence on a wrapped error means the producer
	// forgot to classify it, which this package treats as KindFatal
	// at the boundary (see Classify).
	KindUnknown Kind = iota
	// KindDeterministic is reproducible given the same inputs: arithmetic
	// overflow, missing non-nullable attribute, schema violation, JSON
	// decode failure. The handler's writes are discarded; the block
	// still commits.
	KindDeterministic
	// KindPossibleReorg is a transient, chain-node-side fault. The
	// in-flight block is abandoned and the block stream is restarted.
	KindPossibleReorg
	// KindStore is a database-level fault: connection loss, constraint
	// violation, pool exhaustion. The runtime is restarted with backoff.
	KindStore
	// KindResolve is a manifest/schema/mapping fetch or parse failure.
	// The deployment stays in Resolving and is retried on a timer.
	KindResolve
	// KindFatal is a cache or invariant violation. The runtime aborts
	// and the Manager refuses to respawn until an operator intervenes.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindDeterministic:
		return "deterministic"
	case KindPossibleReorg:
		return "possible_reorg"
	case KindStore:
		return "store"
	case KindResolve:
		return "resolve"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type classifiedError struct {
	kind Kind
	err  error
}

func (c *classifiedError) Error() string { return fmt.Sprintf("%s: %s", c.kind, c.err) }
func (c *classifiedError) Cause() error  { return c.err }
func (c *classifiedError) Unwrap() error { return c.err }

// Wrap annotates err with a kind and a message, the way the rest of the
// pack wraps errors with github.com/pkg/errors.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: kind, err: errors.WithMessage(err, msg)}
}

// Wrapf is Wrap with formatting.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	return Wrap(kind, err, fmt.Sprintf(format, args...))
}

// New creates a classified error from a message alone.
func New(kind Kind, msg string) error {
	return &classifiedError{kind: kind, err: errors.New(msg)}
}

// Classify extracts the Kind from err, walking the cause chain. An
// unclassified error (one never passed through Wrap/New) classifies as
// KindFatal: an error the bridge didn't know how to categorize is, by
// definition, not known to be safe to swallow.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *classifiedError
	for e := err; e != nil; e = errors.Unwrap(e) {
		if c, ok := e.(*classifiedError); ok {
			ce = c
			break
		}
	}
	if ce == nil || ce.kind == KindUnknown {
		return KindFatal
	}
	return ce.kind
}

// Is reports whether err classifies as kind.
func Is(err error, kind Kind) bool { return Classify(err) == kind }
