// Package factory selects the codec backend used by the media core.
//
// Three implementations exist: the ffmpeg subprocess backend for real
// containers, the pure-Go YUV4MPEG2 backend, and the in-memory simulation
// used by tests. The "auto" backend routes by file extension, sending .y4m
// to the pure-Go implementation and everything else to ffmpeg.
//
// # Configuration
//
// The default backend can be overridden with an environment variable:
//   - VELOCUT_BACKEND: one of "auto", "ffmpeg", "y4m" or "sim"
//
// # Usage
//
//	f := factory.NewBackendFactory()
//	backend, err := f.Create("")   // default, usually "auto"
//	if err != nil {
//	    return err
//	}
//	worker := velocut.NewMediaWorker(velocut.NewOptions(), backend)
package factory
