// Package main provides velocut-render, which renders a YAML timeline job
// to a video file through the media worker.
//
// A job file names the clips, their trims, the transitions between them
// and the output geometry:
//
//	output: out.mp4
//	width: 1280
//	height: 720
//	fps: 30
//	clips:
//	  - path: a.mp4
//	    source_offset: 2.0
//	    duration: 4.0
//	  - path: b.mp4
//	    duration: 3.0
//	transitions:
//	  - boundary: 0
//	    kind: crossfade
//	    duration: 0.5
//
// Interrupting the process cancels the job; the partial output is flushed
// and closed.
package main
