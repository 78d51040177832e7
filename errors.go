package cuckoofilter

import "errors"

// ErrCapacityExhausted is returned by Filter.Insert when the relocation
// loop exhausts its kick budget without finding a home for the incoming
// fingerprint. The filter's bit vector is guaranteed unchanged from its
// state immediately before the call.
var ErrCapacityExhausted = errors.New("cuckoofilter: capacity exhausted")

// ErrInconsistency is raised only from within the rollback path, if a
// find-and-replace unexpectedly fails to locate the fingerprint it just
// placed. It signals a programming bug or a data race from unsupported
// concurrent use of a plain Filter; the filter should be discarded.
var ErrInconsistency = errors.New("cuckoofilter: internal inconsistency during rollback")

// ErrInvalidParameters is returned by the constructors when called with
// out-of-range arguments (zero capacity, zero bucket size, an error rate
// outside (0,1)).
var ErrInvalidParameters = errors.New("cuckoofilter: invalid parameters")
