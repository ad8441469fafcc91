package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opd-ai/velocut/codec"
	"github.com/opd-ai/velocut/codec/ffmpeg"
	"github.com/opd-ai/velocut/codec/sim"
	"github.com/opd-ai/velocut/codec/y4m"
	"github.com/sirupsen/logrus"
)

// Backend names accepted by the factory.
const (
	BackendAuto   = "auto"
	BackendFFmpeg = "ffmpeg"
	BackendY4M    = "y4m"
	BackendSim    = "sim"
)

// EnvBackend overrides the factory's default backend name.
const EnvBackend = "VELOCUT_BACKEND"

// BackendFactory creates codec backends by name. It is safe for concurrent
// use; all methods are protected by an internal mutex.
type BackendFactory struct {
	mu          sync.RWMutex
	defaultName string
}

// NewBackendFactory creates a factory defaulting to "auto", overridable by
// the VELOCUT_BACKEND environment variable.
func NewBackendFactory() *BackendFactory {
	f := &BackendFactory{defaultName: BackendAuto}
	applyEnvironmentOverrides(f)

	logrus.WithFields(logrus.Fields{
		"function": "NewBackendFactory",
		"backend":  f.defaultName,
	}).Info("Created codec backend factory")
	return f
}

func applyEnvironmentOverrides(f *BackendFactory) {
	name := strings.ToLower(strings.TrimSpace(os.Getenv(EnvBackend)))
	if name == "" {
		return
	}
	if !validName(name) {
		logrus.WithFields(logrus.Fields{
			"function":    "applyEnvironmentOverrides",
			"env_var":     EnvBackend,
			"value":       name,
			"using_value": f.defaultName,
		}).Warn("Unknown backend in environment, using default")
		return
	}
	f.defaultName = name
}

func validName(name string) bool {
	switch name {
	case BackendAuto, BackendFFmpeg, BackendY4M, BackendSim:
		return true
	}
	return false
}

// DefaultName returns the backend name used by Create("").
func (f *BackendFactory) DefaultName() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultName
}

// SetDefault changes the default backend name.
func (f *BackendFactory) SetDefault(name string) error {
	if !validName(name) {
		return fmt.Errorf("unknown backend %q", name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultName = name
	return nil
}

// Create returns a backend by name. An empty name selects the default.
func (f *BackendFactory) Create(name string) (codec.Backend, error) {
	if name == "" {
		name = f.DefaultName()
	}

	logrus.WithFields(logrus.Fields{
		"function": "BackendFactory.Create",
		"backend":  name,
	}).Debug("Creating codec backend")

	switch name {
	case BackendAuto:
		return NewAutoBackend(), nil
	case BackendFFmpeg:
		return ffmpeg.NewBackend(), nil
	case BackendY4M:
		return y4m.NewBackend(), nil
	case BackendSim:
		return sim.NewBackend(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// AutoBackend routes .y4m paths to the pure-Go backend and everything
// else to ffmpeg.
type AutoBackend struct {
	y4m    codec.Backend
	ffmpeg codec.Backend
}

// NewAutoBackend returns an extension-routing backend.
func NewAutoBackend() *AutoBackend {
	return &AutoBackend{y4m: y4m.NewBackend(), ffmpeg: ffmpeg.NewBackend()}
}

// Name returns "auto".
func (a *AutoBackend) Name() string { return BackendAuto }

func (a *AutoBackend) route(path string) codec.Backend {
	if strings.EqualFold(filepath.Ext(path), ".y4m") {
		return a.y4m
	}
	return a.ffmpeg
}

// Open opens path with the backend chosen by its extension.
func (a *AutoBackend) Open(path string) (codec.Input, error) {
	return a.route(path).Open(path)
}

// Create creates path with the backend chosen by its extension.
func (a *AutoBackend) Create(path string) (codec.Output, error) {
	return a.route(path).Create(path)
}

// DecodeAudio decodes audio with the backend chosen by path's extension.
// Backends without audio support report codec.ErrNoStream.
func (a *AutoBackend) DecodeAudio(ctx context.Context, path string, start, duration float64, cfg codec.AudioConfig) ([]float32, error) {
	dec, ok := a.route(path).(codec.AudioDecoder)
	if !ok {
		return nil, fmt.Errorf("%w: audio in %s", codec.ErrNoStream, path)
	}
	return dec.DecodeAudio(ctx, path, start, duration, cfg)
}
