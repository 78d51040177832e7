// Package cuckoofilter implements a cuckoo filter, a probabilistic
// set-membership structure with the same semantics described in:
//
//	Fan, B., Andersen, D. G., Kaminsky, M., & Mitzenmacher, M. D. (2014).
//	Cuckoo filter: Practically better than bloom.
//	Proceedings of the 10th ACM CoNEXT (pp. 75-88).
//
// Unlike a Bloom filter, items can be deleted after insertion. Membership
// tests never false-negative on an item actually present, and false-positive
// at a rate bounded by the filter's configured error rate and bucket size.
//
// Filter is a single fixed-capacity table. ScalableFilter composes a growing
// sequence of Filters so capacity does not need to be known up front.
package cuckoofilter
