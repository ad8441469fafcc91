// Package decode provides the stateful per-clip Decode Session used by the
// scrub, playback and encode paths.
//
// A Session owns one open codec.Input, the timestamp of the last decoded
// picture and a scaler targeting the session's output size and format.
// Keeping it open across requests lets a consumer walk forward through a
// clip without reopening and reseeking for every frame.
//
// # Lifecycle
//
//	Idle -> Seeking -> Decoding <-> BurnThrough -> EOF
//
// Open issues a best-effort seek. Seeking to zero is skipped, and a failed
// seek is logged and ignored because later timestamp filtering lands on the
// right frame anyway. NextFrame returns frames in order, AdvanceTo catches
// up to a target that is slightly ahead, and BurnTo decodes without
// scaling until a target is reached.
//
// # Reuse or Reopen
//
// Decide applies the reuse rule: a session is reused only for the same path
// and output size, and a target strictly after the last decoded timestamp
// but no more than a threshold past it. Backward moves and large forward
// jumps reopen, since a fresh keyframe seek is cheaper than decoding
// through many frames.
//
//	if decode.Decide(sess, params, threshold) == decode.Reopen {
//	    sess.Close()
//	    sess, err = decode.Open(backend, req.ID, params)
//	}
package decode
