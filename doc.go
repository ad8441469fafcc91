// Package velocut implements the media core of a non-linear video editor.
//
// A MediaWorker accepts commands from the UI layer and delivers results on
// channels. It owns four kinds of background work: a scrub decoder that
// always services the newest preview request, a playback decoder that
// streams frames ahead of the playhead, a bounded pool of clip probers, and
// one goroutine per timeline encode.
//
// # Getting Started
//
//	opts := velocut.NewOptions()
//	opts.ApplyEnvironment()
//
//	worker, err := velocut.NewMediaWorker(opts, nil, metrics.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer worker.Shutdown()
//
//	worker.ProbeClip(clipID, "/footage/a.mp4")
//	for res := range worker.Results() {
//	    switch r := res.(type) {
//	    case velocut.Duration:
//	        fmt.Printf("%s lasts %.2fs\n", r.ID, r.Seconds)
//	    case velocut.Error:
//	        fmt.Println("probe failed:", r.Message)
//	    }
//	}
//
// # Channels
//
// Scrub frames arrive on ScrubResults, apart from probe and encode traffic
// on Results, so a busy prober cannot starve the preview. Playback frames
// arrive on PlaybackFrames in timestamp order and are promoted for display
// by a playback.Gate. NewPreview wires a preview.Controller with its own
// frame cache and gate, which implements the scrub display policy.
//
// # Configuration
//
// Options come from NewOptions, an optional YAML file read by LoadOptions,
// and VELOCUT_* environment variables applied by ApplyEnvironment. A zero
// cache ceiling is sized from host memory.
//
// # Encoding
//
// StartEncode renders an encode.Job on its own goroutine. Progress is
// reported every ProgressInterval frames. Outputs that carry audio get a
// stereo track built from each clip's trim window. A job ends with exactly one
// EncodeDone or EncodeError; user cancellation is an EncodeError whose
// message is "cancelled".
package velocut
