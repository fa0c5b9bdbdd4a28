// Package kelerr defines the error taxonomy described by the top-level
// spec's error handling design: a closed set of sentinel kinds, each
// wrapped with context via fmt.Errorf and tested with errors.Is, following
// the same WrapXxx/IsXxx idiom the teacher repository uses for translating
// a backend-specific error into a domain sentinel.
package kelerr

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEvent: parser rejected or post-parse structural check failed.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrSignatureInvalid: cryptographic verification failed.
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrThresholdUnsatisfiable: signatures provided cannot meet threshold
	// even if all were valid.
	ErrThresholdUnsatisfiable = errors.New("threshold unsatisfiable")
	// ErrBadPriorDigest: chain integrity broken at prior_digest.
	ErrBadPriorDigest = errors.New("bad prior digest")
	// ErrBadKeyCommitment: rotation's keys do not hash to the prior next_digest commitment.
	ErrBadKeyCommitment = errors.New("bad key commitment")
	// ErrBadSequence: sequence gap or backwards move that cannot be an escrow case.
	ErrBadSequence = errors.New("bad sequence")
	// ErrDuplicitous: distinct-digest collision at (id, sn); recorded, not applied.
	ErrDuplicitous = errors.New("duplicitous event")
	// ErrStorage: backend failure; callers may retry the whole operation.
	ErrStorage = errors.New("storage error")
	// ErrLock: internal invariant violation of the concurrency discipline; fatal.
	ErrLock = errors.New("lock error")
	// ErrNotFound: the requested digest/identifier/sequence has no entry.
	ErrNotFound = errors.New("not found")
)

// Wrap annotates err with msg and associates it with sentinel, so that
// errors.Is(Wrap(err, msg, ErrStorage), ErrStorage) is true while the
// original err text and chain are preserved.
func Wrap(err error, msg string, sentinel error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", msg, err, sentinel)
}

// Is reports whether err is, or wraps, sentinel.
func Is(err, sentinel error) bool {
	return errors.Is(err, sentinel)
}
