// Package sim provides an in-memory codec backend for deterministic tests.
//
// Clips are registered by path with a frame count, frame rate, GOP size
// and optional fault injection: failing seeks, malformed packets, missing
// timestamps and a non-zero start PTS. Seeks land on the keyframe at or
// before the target, like a real demuxer, so tests can observe
// burn-through. Every decoded picture carries its frame index in the first
// luma byte, which lets tests identify exactly which frame arrived.
//
// Outputs are recorded in memory and can be inspected after a run:
//
//	backend := sim.NewBackend()
//	backend.AddClip(sim.Clip{Path: "a.mp4", Frames: 90, FPS: 30, GOP: 15})
//	...
//	rec := backend.Recording("out.mp4")
//	for _, pkt := range rec.Packets { ... }
//
// The package mirrors the production backends' interfaces exactly so it can
// be swapped in through the factory package.
package sim
