// Package scrub services on-demand frame requests with latest-wins
// semantics.
//
// Producers write requests into a single-slot mailbox; a newer request
// overwrites an unconsumed older one. One worker goroutine drains the slot,
// keeps one decode session open across requests and publishes the decoded
// frame. A request with a nil id seals the slot and stops the worker.
package scrub
