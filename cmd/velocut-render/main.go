package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/velocut"
	"github.com/opd-ai/velocut/encode"
	"github.com/opd-ai/velocut/metrics"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// CLIConfig holds the parsed command line.
type CLIConfig struct {
	jobPath     string
	configPath  string
	backend     string
	metricsAddr string
	logLevel    string
	logJSON     bool
	help        bool
}

func parseCLIFlags(args []string) (*CLIConfig, error) {
	config := &CLIConfig{}
	fs := flag.NewFlagSet("velocut-render", flag.ContinueOnError)

	fs.StringVar(&config.jobPath, "job", "", "YAML job file to render")
	fs.StringVar(&config.configPath, "config", "", "YAML worker options file")
	fs.StringVar(&config.backend, "backend", "", "Codec backend (auto, ffmpeg, y4m, sim)")
	fs.StringVar(&config.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.StringVar(&config.logLevel, "log-level", envOr("VELOCUT_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	fs.BoolVar(&config.logJSON, "log-json", false, "Emit JSON log lines")
	fs.BoolVar(&config.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func validateCLIConfig(config *CLIConfig) error {
	if config.jobPath == "" {
		return errors.New("a job file is required (-job)")
	}
	if _, err := logrus.ParseLevel(config.logLevel); err != nil {
		return fmt.Errorf("invalid log level %q", config.logLevel)
	}
	return nil
}

func configureLogging(config *CLIConfig) {
	level, _ := logrus.ParseLevel(config.logLevel)
	logrus.SetLevel(level)
	if config.logJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

func loadOptions(config *CLIConfig) (*velocut.Options, error) {
	opts := velocut.NewOptions()
	if config.configPath != "" {
		loaded, err := velocut.LoadOptions(config.configPath)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}
	opts.ApplyEnvironment()
	if config.backend != "" {
		opts.Backend = config.backend
	}
	return opts, opts.Validate()
}

func loadJob(path string) (*encode.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", path, err)
	}
	job := &encode.Job{}
	if err := yaml.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("parse job %s: %w", path, err)
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	return job, job.Validate()
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "serveMetrics",
				"addr":     addr,
				"error":    err.Error(),
			}).Error("Metrics server stopped")
		}
	}()
	return srv
}

// render runs job to completion and returns the final result.
func render(w *velocut.MediaWorker, job *encode.Job, interrupt <-chan os.Signal) (velocut.MediaResult, error) {
	w.StartEncode(job)
	for {
		select {
		case sig := <-interrupt:
			fmt.Fprintf(os.Stderr, "\nReceived %v, cancelling render...\n", sig)
			w.CancelEncode(job.ID)
		case res, ok := <-w.Results():
			if !ok {
				return nil, velocut.ErrWorkerClosed
			}
			switch r := res.(type) {
			case velocut.EncodeProgress:
				if r.JobID == job.ID {
					fmt.Printf("\rframe %d/%d (%.0f%%)", r.Frame, r.Total, 100*float64(r.Frame)/float64(max(r.Total, 1)))
				}
			case velocut.EncodeDone:
				if r.JobID == job.ID {
					return r, nil
				}
			case velocut.EncodeError:
				if r.JobID == job.ID {
					return r, errors.New(r.Message)
				}
			}
		}
	}
}

func main() {
	config, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if config.help {
		fmt.Printf("Usage: %s -job job.yaml [options]\n", os.Args[0])
		os.Exit(0)
	}
	if err := validateCLIConfig(config); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		os.Exit(1)
	}
	configureLogging(config)

	opts, err := loadOptions(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid options: %v\n", err)
		os.Exit(1)
	}
	job, err := loadJob(config.jobPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid job: %v\n", err)
		os.Exit(1)
	}

	m := metrics.New()
	if config.metricsAddr != "" {
		srv := serveMetrics(config.metricsAddr, m)
		defer srv.Close()
	}

	worker, err := velocut.NewMediaWorker(opts, nil, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start media worker: %v\n", err)
		os.Exit(1)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	started := time.Now()
	_, err = render(worker, job, interrupt)
	fmt.Println()
	_ = worker.Shutdown()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Render failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s in %v\n", job.Output, time.Since(started).Round(time.Millisecond))
}
