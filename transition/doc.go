// Package transition implements the pixel-blend algorithms applied at clip
// boundaries.
//
// Every algorithm works on packed planar YUV420P buffers laid out as
// [Y: w*h][U: (w/2)*(h/2)][V: (w/2)*(h/2)] with no row padding. Alpha 0
// selects frame A (the outgoing clip) and alpha 1 selects frame B (the
// incoming clip). Callers derive alpha from the blend frame index with
// Alpha, which never returns an endpoint:
//
//	for i := 0; i < n; i++ {
//	    out, err := transition.Apply(transition.Crossfade, a[i], b[i], w, h, transition.Alpha(i, n))
//	    ...
//	}
//
// Algorithms are looked up through a static registry keyed by Kind. Cut has
// no algorithm; callers splice frames directly.
package transition
