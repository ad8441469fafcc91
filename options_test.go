package velocut

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptions_Defaults(t *testing.T) {
	opts := NewOptions()

	assert.Equal(t, 0, opts.CacheCeilingBytes)
	assert.Equal(t, 4, opts.ProbeConcurrency)
	assert.Equal(t, 32, opts.LookaheadFrames)
	assert.Equal(t, 4, opts.PlaybackCommandBuffer)
	assert.Equal(t, 512, opts.ResultBuffer)
	assert.Equal(t, 8, opts.ScrubResultBuffer)
	assert.Equal(t, 15, opts.ProgressInterval)
	assert.Equal(t, 2.0, opts.ReopenThreshold)
	assert.Equal(t, 3.0, opts.StaleTolerance)
	assert.Equal(t, 150*time.Millisecond, opts.IdleDebounce)
	assert.Equal(t, "auto", opts.Backend)
	assert.Equal(t, os.TempDir(), opts.TempDir)
	require.NoError(t, opts.Validate())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "velocut.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOptions(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		path := writeConfig(t, "probe_concurrency: 2\nidle_debounce: 300ms\nbackend: y4m\n")

		opts, err := LoadOptions(path)
		require.NoError(t, err)
		assert.Equal(t, 2, opts.ProbeConcurrency)
		assert.Equal(t, 300*time.Millisecond, opts.IdleDebounce)
		assert.Equal(t, "y4m", opts.Backend)
		assert.Equal(t, 32, opts.LookaheadFrames, "unset keys keep defaults")
	})

	t.Run("rejects invalid limits", func(t *testing.T) {
		path := writeConfig(t, "lookahead_frames: 0\n")

		_, err := LoadOptions(path)
		assert.ErrorIs(t, err, ErrInvalidOptions)
		assert.Contains(t, err.Error(), "lookahead_frames")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "probe_concurrency: [\n")

		_, err := LoadOptions(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadOptions(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestOptions_ApplyEnvironment(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		check func(t *testing.T, o *Options)
	}{
		{"probe concurrency", EnvProbeConcurrency, "8", func(t *testing.T, o *Options) {
			assert.Equal(t, 8, o.ProbeConcurrency)
		}},
		{"invalid probe concurrency keeps default", EnvProbeConcurrency, "lots", func(t *testing.T, o *Options) {
			assert.Equal(t, 4, o.ProbeConcurrency)
		}},
		{"zero lookahead keeps default", EnvLookahead, "0", func(t *testing.T, o *Options) {
			assert.Equal(t, 32, o.LookaheadFrames)
		}},
		{"cache ceiling", EnvCacheCeiling, "1048576", func(t *testing.T, o *Options) {
			assert.Equal(t, 1<<20, o.CacheCeilingBytes)
		}},
		{"reopen threshold", EnvReopenThreshold, "0.5", func(t *testing.T, o *Options) {
			assert.Equal(t, 0.5, o.ReopenThreshold)
		}},
		{"negative reopen threshold keeps default", EnvReopenThreshold, "-1", func(t *testing.T, o *Options) {
			assert.Equal(t, 2.0, o.ReopenThreshold)
		}},
		{"backend", "VELOCUT_BACKEND", " SIM ", func(t *testing.T, o *Options) {
			assert.Equal(t, "sim", o.Backend)
		}},
		{"temp dir", EnvTempDir, "/scratch", func(t *testing.T, o *Options) {
			assert.Equal(t, "/scratch", o.TempDir)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			opts := NewOptions()
			opts.ApplyEnvironment()
			tt.check(t, opts)
		})
	}
}

func TestOptions_CacheCeiling(t *testing.T) {
	opts := NewOptions()
	opts.CacheCeilingBytes = 1 << 20
	assert.Equal(t, 1<<20, opts.CacheCeiling())

	opts.CacheCeilingBytes = 0
	auto := opts.CacheCeiling()
	assert.GreaterOrEqual(t, auto, MinAutoCacheBytes)
	assert.LessOrEqual(t, auto, MaxAutoCacheBytes)
}

func TestClampCeiling(t *testing.T) {
	tests := []struct {
		in   uint64
		want int
	}{
		{0, MinAutoCacheBytes},
		{32 << 20, MinAutoCacheBytes},
		{256 << 20, 256 << 20},
		{8 << 30, MaxAutoCacheBytes},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampCeiling(tt.in), "clampCeiling(%d)", tt.in)
	}
}
