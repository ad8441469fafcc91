package velocut

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opd-ai/velocut/factory"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Bounds for the automatically sized frame cache.
const (
	MinAutoCacheBytes = 64 << 20
	MaxAutoCacheBytes = 1 << 30
)

// Environment variables read by ApplyEnvironment.
const (
	EnvCacheCeiling     = "VELOCUT_CACHE_CEILING_BYTES"
	EnvProbeConcurrency = "VELOCUT_PROBE_CONCURRENCY"
	EnvLookahead        = "VELOCUT_LOOKAHEAD_FRAMES"
	EnvProgressInterval = "VELOCUT_PROGRESS_INTERVAL"
	EnvReopenThreshold  = "VELOCUT_REOPEN_THRESHOLD"
	EnvTempDir          = "VELOCUT_TEMP_DIR"
)

// Options contains the media worker configuration.
type Options struct {
	// CacheCeilingBytes bounds the preview frame cache. Zero sizes it from
	// host memory.
	CacheCeilingBytes     int           `yaml:"cache_ceiling_bytes"`
	ProbeConcurrency      int           `yaml:"probe_concurrency"`
	LookaheadFrames       int           `yaml:"lookahead_frames"`
	PlaybackCommandBuffer int           `yaml:"playback_command_buffer"`
	ResultBuffer          int           `yaml:"result_buffer"`
	ScrubResultBuffer     int           `yaml:"scrub_result_buffer"`
	ProgressInterval      int           `yaml:"progress_interval"`
	ReopenThreshold       float64       `yaml:"reopen_threshold"`
	StaleTolerance        float64       `yaml:"stale_tolerance"`
	IdleDebounce          time.Duration `yaml:"idle_debounce"`
	PreviewShortSide      int           `yaml:"preview_short_side"`
	EvictBatch            int           `yaml:"evict_batch"`
	Backend               string        `yaml:"backend"`
	TempDir               string        `yaml:"temp_dir"`
}

// NewOptions creates default options.
func NewOptions() *Options {
	return &Options{
		CacheCeilingBytes:     0, // sized from host memory
		ProbeConcurrency:      4,
		LookaheadFrames:       32,
		PlaybackCommandBuffer: 4,
		ResultBuffer:          512,
		ScrubResultBuffer:     8,
		ProgressInterval:      15,
		ReopenThreshold:       2.0,
		StaleTolerance:        3.0,
		IdleDebounce:          150 * time.Millisecond,
		PreviewShortSide:      640,
		EvictBatch:            32,
		Backend:               factory.BackendAuto,
		TempDir:               os.TempDir(),
	}
}

// LoadOptions reads a YAML file over the defaults. Keys missing from the
// file keep their default values.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options %s: %w", path, err)
	}
	opts := NewOptions()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parse options %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "LoadOptions",
		"path":     path,
		"backend":  opts.Backend,
	}).Info("Loaded worker options")
	return opts, nil
}

// ApplyEnvironment overrides fields from VELOCUT_* environment variables.
// Values that fail to parse are logged and leave the field unchanged.
func (o *Options) ApplyEnvironment() {
	envInt(EnvCacheCeiling, &o.CacheCeilingBytes, 0)
	envInt(EnvProbeConcurrency, &o.ProbeConcurrency, 1)
	envInt(EnvLookahead, &o.LookaheadFrames, 1)
	envInt(EnvProgressInterval, &o.ProgressInterval, 1)

	if raw, ok := lookupEnv(EnvReopenThreshold); ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			warnEnv(EnvReopenThreshold, raw, o.ReopenThreshold)
		} else {
			o.ReopenThreshold = v
		}
	}
	if raw, ok := lookupEnv(factory.EnvBackend); ok {
		o.Backend = strings.ToLower(raw)
	}
	if raw, ok := lookupEnv(EnvTempDir); ok {
		o.TempDir = raw
	}
}

func lookupEnv(key string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	return raw, raw != ""
}

func envInt(key string, dst *int, minimum int) {
	raw, ok := lookupEnv(key)
	if !ok {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < minimum {
		warnEnv(key, raw, *dst)
		return
	}
	*dst = v
}

func warnEnv(key, raw string, using interface{}) {
	logrus.WithFields(logrus.Fields{
		"function":    "Options.ApplyEnvironment",
		"env_var":     key,
		"value":       raw,
		"using_value": using,
	}).Warn("Invalid value in environment, keeping current setting")
}

// Validate rejects non-positive limits.
func (o *Options) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"cache_ceiling_bytes", o.CacheCeilingBytes >= 0},
		{"probe_concurrency", o.ProbeConcurrency > 0},
		{"lookahead_frames", o.LookaheadFrames > 0},
		{"playback_command_buffer", o.PlaybackCommandBuffer > 0},
		{"result_buffer", o.ResultBuffer > 0},
		{"scrub_result_buffer", o.ScrubResultBuffer > 0},
		{"progress_interval", o.ProgressInterval > 0},
		{"reopen_threshold", o.ReopenThreshold > 0},
		{"stale_tolerance", o.StaleTolerance > 0},
		{"idle_debounce", o.IdleDebounce > 0},
		{"preview_short_side", o.PreviewShortSide >= 2},
		{"evict_batch", o.EvictBatch > 0},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s", ErrInvalidOptions, c.name)
		}
	}
	return nil
}

// CacheCeiling returns the configured cache ceiling, sizing it from host
// memory when CacheCeilingBytes is zero.
func (o *Options) CacheCeiling() int {
	if o.CacheCeilingBytes > 0 {
		return o.CacheCeilingBytes
	}
	return autoCacheCeiling()
}

func autoCacheCeiling() int {
	vm, err := mem.VirtualMemory()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "autoCacheCeiling",
			"error":    err.Error(),
		}).Warn("Host memory unavailable, using minimum cache ceiling")
		return MinAutoCacheBytes
	}
	return clampCeiling(vm.Total / 16)
}

func clampCeiling(bytes uint64) int {
	return int(min(max(bytes, MinAutoCacheBytes), MaxAutoCacheBytes))
}
