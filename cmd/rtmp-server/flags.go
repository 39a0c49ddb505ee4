package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/alxayo/go-livestream/internal/config"
)

// version is injected at build time with -ldflags "-X main.version=...". Defaults to dev.
var version = "dev"

// cliConfig holds user supplied flag values prior to translation into
// config.Config, so main.go can validate and map.
type cliConfig struct {
	rtmpAddr         string
	httpAddr         string
	logLevel         string
	chunkSize        uint
	channelCapacity  int
	gopCapBytes      int64
	acceptsPerSecond float64
	acceptBurst      int
	corsOrigins      []string
	showVersion      bool
}

// envLogLevel mirrors internal/logger's own RTMP_LOG_LEVEL variable, scoped
// to this module's own prefix: flag beats LIVESTREAM_LOG_LEVEL beats
// default, matching internal/logger's precedence idiom.
const envLogLevel = "LIVESTREAM_LOG_LEVEL"

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("rtmp-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	defaults := config.Defaults()
	cfg := &cliConfig{}
	var corsOrigins stringSliceFlag

	fs.StringVar(&cfg.rtmpAddr, "listen", defaults.RTMPAddr, "RTMP ingest listen address (e.g. :1935)")
	fs.StringVar(&cfg.httpAddr, "http-listen", defaults.HTTPAddr, "HTTP/WebSocket listen address (e.g. :8080)")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug|info|warn|error (default: env "+envLogLevel+" or info)")
	fs.UintVar(&cfg.chunkSize, "chunk-size", uint(defaults.ChunkSize), "Initial RTMP chunk size")
	fs.IntVar(&cfg.channelCapacity, "channel-capacity", defaults.ChannelCapacity, "Per-viewer fan-out channel depth")
	fs.Int64Var(&cfg.gopCapBytes, "gop-cap-bytes", defaults.GOPCapBytes, "Max bytes cached per GOP, 0 = unlimited")
	fs.Float64Var(&cfg.acceptsPerSecond, "accept-rate", defaults.AcceptsPerSecond, "Max RTMP accepts per second")
	fs.IntVar(&cfg.acceptBurst, "accept-burst", defaults.AcceptBurst, "Accept-rate limiter burst size")
	fs.Var(&corsOrigins, "cors-origin", "Allowed CORS origin for the HTTP surface (can be specified multiple times)")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.corsOrigins = corsOrigins

	if cfg.logLevel == "" {
		if env := os.Getenv(envLogLevel); env != "" {
			cfg.logLevel = env
		} else {
			cfg.logLevel = defaults.LogLevel
		}
	}
	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	if cfg.chunkSize == 0 || cfg.chunkSize > 65536 {
		return nil, errors.New("chunk-size must be between 1 and 65536")
	}
	if cfg.channelCapacity < 1 {
		return nil, errors.New("channel-capacity must be at least 1")
	}
	if cfg.gopCapBytes < 0 {
		return nil, errors.New("gop-cap-bytes must be >= 0")
	}
	if cfg.acceptsPerSecond <= 0 {
		return nil, errors.New("accept-rate must be > 0")
	}
	if cfg.acceptBurst < 1 {
		return nil, errors.New("accept-burst must be at least 1")
	}

	return cfg, nil
}

// toConfig translates the validated CLI values into the typed config.Config
// internal/server consumes.
func (c *cliConfig) toConfig() config.Config {
	cfg := config.Defaults()
	cfg.RTMPAddr = c.rtmpAddr
	cfg.HTTPAddr = c.httpAddr
	cfg.LogLevel = c.logLevel
	cfg.ChunkSize = uint32(c.chunkSize)
	cfg.ChannelCapacity = c.channelCapacity
	cfg.GOPCapBytes = c.gopCapBytes
	cfg.AcceptsPerSecond = c.acceptsPerSecond
	cfg.AcceptBurst = c.acceptBurst
	cfg.CORSOrigins = c.corsOrigins
	return cfg
}

// stringSliceFlag implements flag.Value for multiple string values.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}
