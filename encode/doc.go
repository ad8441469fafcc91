// Package encode renders a timeline of trimmed clips into one output file.
//
// Output timestamps come from a frame counter in the output's 1/fps time
// base, never from source timestamps, so trims and concatenation always
// produce a gap-free, strictly increasing timeline. Clip boundaries may
// carry a transition, in which case the tail of the outgoing clip and the
// head of the incoming clip are blended pairwise through package
// transition.
//
// When the output implements codec.AudioOutput, a stereo 44.1 kHz track is
// staged before the header. Each clip contributes the audio of its own trim
// window, silence when it has none, and adjacent clips are crossfaded over
// their transition frames.
package encode
