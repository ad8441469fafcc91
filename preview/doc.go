// Package preview turns a playhead position into frame requests and keeps
// the frame each clip currently shows.
//
// While scrubbing, a Controller layers three still-frame strategies: show
// the nearest cached frame instantly, ask for the exact frame on every
// move, and once the playhead settles ask again for the quarter-second
// aligned frame so the bucket cache fills in. While playing it starts the
// playback pipeline and promotes frames through a playback.Gate.
package preview
