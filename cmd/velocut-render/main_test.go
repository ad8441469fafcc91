package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/opd-ai/velocut"
	"github.com/opd-ai/velocut/codec/sim"
	"github.com/opd-ai/velocut/encode"
	"github.com/opd-ai/velocut/transition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseCLIFlags(t *testing.T) {
	config, err := parseCLIFlags([]string{"-job", "j.yaml", "-backend", "y4m", "-log-json", "-metrics-addr", ":9100"})
	require.NoError(t, err)
	assert.Equal(t, "j.yaml", config.jobPath)
	assert.Equal(t, "y4m", config.backend)
	assert.Equal(t, ":9100", config.metricsAddr)
	assert.True(t, config.logJSON)
	assert.Equal(t, "info", config.logLevel)

	_, err = parseCLIFlags([]string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestValidateCLIConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      *CLIConfig
		errContains string
	}{
		{"valid", &CLIConfig{jobPath: "j.yaml", logLevel: "debug"}, ""},
		{"missing job", &CLIConfig{logLevel: "info"}, "job file is required"},
		{"bad log level", &CLIConfig{jobPath: "j.yaml", logLevel: "chatty"}, "invalid log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCLIConfig(tt.config)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLoadJob(t *testing.T) {
	t.Run("parses clips and transitions", func(t *testing.T) {
		path := writeFile(t, "job.yaml", `
output: out.y4m
width: 16
height: 8
fps: 30
clips:
  - path: a.y4m
    source_offset: 0.5
    duration: 1
  - path: b.y4m
    duration: 2
transitions:
  - boundary: 0
    kind: crossfade
    duration: 0.25
`)
		job, err := loadJob(path)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, job.ID)
		require.Len(t, job.Clips, 2)
		assert.Equal(t, 0.5, job.Clips[0].SourceOffset)
		require.Len(t, job.Transitions, 1)
		assert.Equal(t, transition.Crossfade, job.Transitions[0].Kind)
		assert.Equal(t, 0.25, job.Transitions[0].Duration)
	})

	t.Run("keeps an explicit id", func(t *testing.T) {
		id := uuid.New()
		path := writeFile(t, "job.yaml", "id: "+id.String()+"\noutput: o\nwidth: 16\nheight: 8\nfps: 30\nclips:\n  - path: a\n    duration: 1\n")
		job, err := loadJob(path)
		require.NoError(t, err)
		assert.Equal(t, id, job.ID)
	})

	t.Run("empty timeline", func(t *testing.T) {
		path := writeFile(t, "job.yaml", "output: o\nwidth: 16\nheight: 8\nfps: 30\n")
		_, err := loadJob(path)
		assert.ErrorIs(t, err, encode.ErrEmptyTimeline)
	})

	t.Run("unknown transition", func(t *testing.T) {
		path := writeFile(t, "job.yaml", "output: o\nwidth: 16\nheight: 8\nfps: 30\nclips:\n  - path: a\n    duration: 1\n  - path: b\n    duration: 1\ntransitions:\n  - boundary: 0\n    kind: spiral\n    duration: 1\n")
		_, err := loadJob(path)
		assert.Error(t, err)
	})
}

func TestLoadOptions_BackendFlagWins(t *testing.T) {
	cfgPath := writeFile(t, "velocut.yaml", "backend: ffmpeg\nprobe_concurrency: 2\n")
	t.Setenv("VELOCUT_BACKEND", "y4m")

	opts, err := loadOptions(&CLIConfig{configPath: cfgPath, backend: "sim"})
	require.NoError(t, err)
	assert.Equal(t, "sim", opts.Backend)
	assert.Equal(t, 2, opts.ProbeConcurrency)
}

func TestRender(t *testing.T) {
	b := sim.NewBackend()
	b.AddClip(sim.Clip{Path: "a", Frames: 60})
	opts := velocut.NewOptions()
	opts.CacheCeilingBytes = 64 << 20
	w, err := velocut.NewMediaWorker(opts, b, nil)
	require.NoError(t, err)
	defer w.Shutdown()

	job := &encode.Job{
		ID:     uuid.New(),
		Clips:  []encode.ClipSpec{{Path: "a", Duration: 1}},
		Width:  16,
		Height: 8,
		FPS:    30,
		Output: "out",
	}
	res, err := render(w, job, make(chan os.Signal))
	require.NoError(t, err)
	done, ok := res.(velocut.EncodeDone)
	require.True(t, ok)
	assert.Equal(t, "out", done.OutputPath)

	failing := &encode.Job{
		ID:     uuid.New(),
		Clips:  []encode.ClipSpec{{Path: "missing", Duration: 1}},
		Width:  16,
		Height: 8,
		FPS:    30,
		Output: "out2",
	}
	_, err = render(w, failing, make(chan os.Signal))
	assert.Error(t, err)
}
