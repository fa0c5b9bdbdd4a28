// Package event defines the KERI key-event data model: identifiers,
// digests, key events, signed messages, receipts, threshold predicates and
// the derived per-identifier key state.
//
// Nothing in this package performs cryptography or hashing — digests are
// carried as opaque values produced by an external parser/hasher, and
// signature verification is delegated to the verify package. This mirrors
// the CESR/JSON wire parser and self-addressing-identifier hasher being out
// of scope (see the top-level spec).
package event
