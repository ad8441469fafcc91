package encode

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/opd-ai/velocut/transition"
)

// Output defaults.
const (
	DefaultCRF    = 18
	DefaultPreset = "fast"
)

// ClipSpec is one trimmed contribution to the output timeline.
type ClipSpec struct {
	Path string `yaml:"path" json:"path"`
	// SourceOffset is where the trim starts, in source seconds.
	SourceOffset float64 `yaml:"source_offset" json:"source_offset"`
	Duration     float64 `yaml:"duration" json:"duration"`
	// Gain scales the clip's audio; zero means unity.
	Gain float64 `yaml:"gain" json:"gain"`
	Mute bool    `yaml:"mute" json:"mute"`
}

// gain is the linear audio multiplier of the clip.
func (c ClipSpec) gain() float32 {
	switch {
	case c.Mute:
		return 0
	case c.Gain == 0:
		return 1
	default:
		return float32(c.Gain)
	}
}

// Job is a complete render request.
type Job struct {
	ID          uuid.UUID         `yaml:"id" json:"id"`
	Clips       []ClipSpec        `yaml:"clips" json:"clips"`
	Transitions []transition.Spec `yaml:"transitions" json:"transitions"`
	Width       int               `yaml:"width" json:"width"`
	Height      int               `yaml:"height" json:"height"`
	FPS         int               `yaml:"fps" json:"fps"`
	Output      string            `yaml:"output" json:"output"`
	CRF         int               `yaml:"crf" json:"crf"`
	Preset      string            `yaml:"preset" json:"preset"`
}

// Validate checks the job before any file is touched.
func (j *Job) Validate() error {
	if len(j.Clips) == 0 {
		return ErrEmptyTimeline
	}
	if j.Width <= 0 || j.Height <= 0 || j.Width%2 != 0 || j.Height%2 != 0 {
		return fmt.Errorf("%w: output size %dx%d must be positive and even", ErrInvalidJob, j.Width, j.Height)
	}
	if j.FPS <= 0 {
		return fmt.Errorf("%w: fps %d", ErrInvalidJob, j.FPS)
	}
	if j.Output == "" {
		return fmt.Errorf("%w: no output path", ErrInvalidJob)
	}
	for i, c := range j.Clips {
		if c.Path == "" {
			return fmt.Errorf("%w: clip %d has no path", ErrInvalidJob, i)
		}
		if c.SourceOffset < 0 || c.Duration <= 0 {
			return fmt.Errorf("%w: clip %d trim [%g, +%g)", ErrInvalidJob, i, c.SourceOffset, c.Duration)
		}
		if c.Gain < 0 {
			return fmt.Errorf("%w: clip %d gain %g", ErrInvalidJob, i, c.Gain)
		}
	}
	seen := make(map[int]bool, len(j.Transitions))
	for _, t := range j.Transitions {
		if t.Boundary < 0 || t.Boundary >= len(j.Clips)-1 {
			return fmt.Errorf("%w: transition boundary %d outside [0, %d)", ErrInvalidJob, t.Boundary, len(j.Clips)-1)
		}
		if seen[t.Boundary] {
			return fmt.Errorf("%w: two transitions at boundary %d", ErrInvalidJob, t.Boundary)
		}
		seen[t.Boundary] = true
		if t.IsCut() {
			continue
		}
		if _, err := transition.Lookup(t.Kind); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJob, err)
		}
	}
	return nil
}

// clipFrames is the nominal frame count of clip i.
func (j *Job) clipFrames(i int) int {
	return int(math.Ceil(j.Clips[i].Duration * float64(j.FPS)))
}

// transitionAt returns the blend at boundary b, if any.
func (j *Job) transitionAt(b int) (transition.Type, bool) {
	for _, t := range j.Transitions {
		if t.Boundary == b && !t.IsCut() {
			return t.Type, true
		}
	}
	return transition.Type{}, false
}

// BlendFrames is the number of output frames the transition at boundary b
// produces: its duration in frames, clamped to both adjoining clips. A
// clip between two transitions gives its frames to the earlier blend
// first, so the two blends never overlap.
func (j *Job) BlendFrames(b int) int {
	if b < 0 || b+1 >= len(j.Clips) {
		return 0
	}
	return j.blendPlan()[b]
}

// blendPlan returns the capped blend length of every boundary.
func (j *Job) blendPlan() []int {
	if len(j.Clips) < 2 {
		return nil
	}
	plan := make([]int, len(j.Clips)-1)
	for b := range plan {
		t, ok := j.transitionAt(b)
		if !ok {
			continue
		}
		avail := j.clipFrames(b)
		if b > 0 {
			avail -= plan[b-1]
		}
		n := int(math.Round(t.Duration * float64(j.FPS)))
		plan[b] = max(min(n, avail, j.clipFrames(b+1)), 0)
	}
	return plan
}

// TotalFrames is the expected output length: every clip's frames minus
// the frames each overlap consumes, and never below 1.
func (j *Job) TotalFrames() int {
	total := 0
	for i := range j.Clips {
		total += j.clipFrames(i)
	}
	for _, n := range j.blendPlan() {
		total -= n
	}
	return max(total, 1)
}
