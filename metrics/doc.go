// Package metrics exposes media pipeline activity as Prometheus collectors.
//
// A Metrics value implements the observer interfaces of packages cache,
// scrub, playback, probe and encode, so each component reports into it
// without importing Prometheus. All collectors live on a private registry;
// Handler serves them.
//
// A nil *Metrics is valid and records nothing.
package metrics
