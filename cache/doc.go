// Package cache stores decoded frames under a byte ceiling.
//
// Entries are keyed by owner and quarter-second time bucket. When an insert
// would push the resident total past the ceiling, the entries furthest from
// the current playhead bucket are evicted in batches. Distance, not
// recency, decides: frames just behind the playhead are the ones a scrub
// is about to revisit.
package cache
