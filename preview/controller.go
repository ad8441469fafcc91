package preview

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/velocut/cache"
	"github.com/opd-ai/velocut/frame"
	"github.com/opd-ai/velocut/playback"
	"github.com/sirupsen/logrus"
)

// Scrub policy defaults.
const (
	DefaultIdleDebounce = 150 * time.Millisecond
	// MoveThreshold is the playhead change, in seconds, that counts as a move.
	MoveThreshold = 0.010
	// NearestLookback is how many buckets back a cached stand-in may come from.
	NearestLookback = 8
	// CoarseGrid is the spacing, in seconds, of warm-up requests.
	CoarseGrid = 2.0
)

// Requester is the command side of the media worker.
type Requester interface {
	RequestFrame(id uuid.UUID, path string, timestamp, aspect float64)
	StartPlayback(id uuid.UUID, path string, timestamp, aspect float64)
	StopPlayback()
}

// Clip is the clip under the playhead.
type Clip struct {
	ID   uuid.UUID
	Path string
	// LocalTime is the playhead position in source seconds.
	LocalTime float64
	Aspect    float64
}

// Config wires a Controller.
type Config struct {
	Cache     *cache.Cache
	Requester Requester
	// Gate promotes playback frames. Without one, PollPlayback is a no-op.
	Gate *playback.Gate
	// IdleDebounce defaults to DefaultIdleDebounce.
	IdleDebounce time.Duration
	Clock        TimeProvider
}

type lastRequest struct {
	id uuid.UUID
	ts float64
}

// Controller implements the scrub and playback display policy for one
// preview surface.
type Controller struct {
	mu        sync.Mutex
	cache     *cache.Cache
	requester Requester
	gate      *playback.Gate
	debounce  time.Duration
	clock     TimeProvider

	current    map[uuid.UUID]*frame.Frame
	playing    bool
	playbackID uuid.UUID
	last       *lastRequest
	lastMoved  time.Time
	coarse     *cache.Key
}

// NewController creates a Controller.
func NewController(cfg Config) *Controller {
	if cfg.IdleDebounce <= 0 {
		cfg.IdleDebounce = DefaultIdleDebounce
	}
	return &Controller{
		cache:     cfg.Cache,
		requester: cfg.Requester,
		gate:      cfg.Gate,
		debounce:  cfg.IdleDebounce,
		clock:     getTimeProvider(cfg.Clock),
		current:   make(map[uuid.UUID]*frame.Frame),
	}
}

// Current returns the frame clip id is showing.
func (c *Controller) Current(id uuid.UUID) (*frame.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.current[id]
	return f, ok
}

// Ingest stores a scrub result in the bucket cache. Outside playback it
// also becomes the clip's current frame.
func (c *Controller) Ingest(f *frame.Frame) {
	if f == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Insert(cache.KeyFor(f), f)
	if !c.playing {
		c.current[f.OwnerID] = f
	}
}

// Tick runs one UI frame of the policy. clip is nil when no clip is under
// the playhead.
func (c *Controller) Tick(clip *Clip, playing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	justStarted := playing && !c.playing
	justStopped := !playing && c.playing
	c.playing = playing

	if clip != nil {
		c.cache.SetPlayhead(clip.LocalTime)
	}

	if playing {
		if clip != nil && (justStarted || clip.ID != c.playbackID) {
			c.startPlayback(clip)
		}
		return
	}

	if justStopped {
		c.requester.StopPlayback()
		c.playbackID = uuid.Nil
		c.resetScrub()
		if c.gate != nil {
			c.gate.Reset()
		}
	}

	if clip == nil {
		c.resetScrub()
		return
	}
	c.scrub(clip)
}

func (c *Controller) resetScrub() {
	c.last = nil
	c.lastMoved = time.Time{}
	c.coarse = nil
}

func (c *Controller) startPlayback(clip *Clip) {
	c.playbackID = clip.ID
	delete(c.current, clip.ID)
	if c.gate != nil {
		c.gate.Reset()
	}
	logrus.WithFields(logrus.Fields{
		"function": "Controller.startPlayback",
		"clip_id":  clip.ID.String(),
		"position": clip.LocalTime,
	}).Debug("Starting playback")
	c.requester.StartPlayback(clip.ID, clip.Path, max(clip.LocalTime, 0), clip.Aspect)
}

func (c *Controller) scrub(clip *Clip) {
	localT := max(clip.LocalTime, 0)
	fine := cache.Key{Owner: clip.ID, Bucket: cache.BucketOf(localT)}

	moved := c.last == nil || c.last.id != clip.ID || math.Abs(c.last.ts-localT) > MoveThreshold
	if !moved {
		c.refine(clip, fine)
		return
	}

	c.lastMoved = c.clock.Now()
	if c.last != nil && c.last.id != clip.ID {
		delete(c.current, c.last.id)
		c.coarse = nil
	}
	c.last = &lastRequest{id: clip.ID, ts: localT}

	if f, ok := c.cache.Nearest(clip.ID, fine.Bucket, NearestLookback); ok {
		c.current[clip.ID] = f
	}

	// The coarse warm-up goes first so the exact request, submitted last,
	// is the one latest-wins keeps.
	coarse := cache.Key{Owner: clip.ID, Bucket: int(localT / CoarseGrid)}
	if c.coarse == nil || *c.coarse != coarse {
		c.coarse = &coarse
		c.requester.RequestFrame(clip.ID, clip.Path, float64(coarse.Bucket)*CoarseGrid, clip.Aspect)
	}
	c.requester.RequestFrame(clip.ID, clip.Path, localT, clip.Aspect)
}

// refine requests the bucket-aligned frame once the playhead has been
// still for the debounce period.
func (c *Controller) refine(clip *Clip, fine cache.Key) {
	if _, ok := c.current[clip.ID]; !ok {
		return
	}
	if c.lastMoved.IsZero() || c.clock.Now().Sub(c.lastMoved) < c.debounce {
		return
	}
	if c.cache.Contains(fine) {
		return
	}
	c.requester.RequestFrame(clip.ID, clip.Path, float64(fine.Bucket)/cache.BucketsPerSecond, clip.Aspect)
}

// PollPlayback promotes the next due playback frame for clip and returns
// it, or nil when nothing is due.
func (c *Controller) PollPlayback(clip *Clip) *frame.Frame {
	if c.gate == nil || clip == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.gate.Tick(clip.ID, max(clip.LocalTime, 0))
	if f != nil {
		c.current[clip.ID] = f
	}
	return f
}
