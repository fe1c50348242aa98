package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Keys shared by flags and environment variables. The environment form is
// EnvPrefix + upper-cased key with dashes turned into underscores.
const (
	KeySocket          = "socket"
	KeyReadBuffer      = "read-buffer"
	KeyIdleSleep       = "idle-sleep"
	KeyBackoff         = "backoff"
	KeySettleThreshold = "settle-threshold"
	KeyJumpThreshold   = "jump-threshold"
	KeyWindow          = "window"
	KeyTargetHz        = "target-hz"
	KeyStickScale      = "stick-scale"
	KeyExpo            = "expo"
	KeyDeadband        = "deadband"
	KeyEmitRate        = "emit-rate"
	KeyEmitSlots       = "emit-slots"
	KeyMetricsAddr     = "metrics-addr"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyLogFile         = "log-file"
	KeyFPS             = "fps"
	KeyDemo            = "demo"
	KeyHeadless        = "headless"
)

// Source provides raw configuration values by key.
type Source interface {
	Lookup(key string) (string, bool)
}

// EnvSource reads values from the process environment.
type EnvSource struct {
	Prefix string
}

func (e *EnvSource) Lookup(key string) (string, bool) {
	name := e.Prefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	value := os.Getenv(name)
	return value, value != ""
}

// FlagSource reads values from flags the user actually set.
type FlagSource struct {
	flags *pflag.FlagSet
}

func NewFlagSource(flags *pflag.FlagSet) *FlagSource {
	return &FlagSource{flags: flags}
}

func (f *FlagSource) Lookup(key string) (string, bool) {
	flag := f.flags.Lookup(key)
	if flag == nil || !flag.Changed {
		return "", false
	}
	return flag.Value.String(), true
}

// Resolver walks its sources in order; the first source holding a key wins.
type Resolver struct {
	sources []Source
	errs    []error
}

func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

func (r *Resolver) lookup(key string) (string, bool) {
	for _, s := range r.sources {
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

func (r *Resolver) fail(key, value string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (r *Resolver) String(key string, dst *string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *Resolver) Int(key string, dst *int) {
	if v, ok := r.lookup(key); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = i
	}
}

func (r *Resolver) Uint(key string, dst *uint64) {
	if v, ok := r.lookup(key); ok {
		u, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = u
	}
}

func (r *Resolver) Float(key string, dst *float64) {
	if v, ok := r.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (r *Resolver) Duration(key string, dst *time.Duration) {
	if v, ok := r.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = d
	}
}

func (r *Resolver) Bool(key string, dst *bool) {
	if v, ok := r.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = b
	}
}

// Apply overrides cfg with every key found in the sources. Values that do not
// parse are skipped and reported together.
func (r *Resolver) Apply(cfg *Config) error {
	r.errs = nil

	r.String(KeySocket, &cfg.Link.SocketPath)
	r.Int(KeyReadBuffer, &cfg.Link.ReadBufferSize)
	r.Duration(KeyIdleSleep, &cfg.Link.IdleSleep)
	r.Duration(KeyBackoff, &cfg.Link.ReconnectBackoff)

	r.Int(KeySettleThreshold, &cfg.Processor.SettleThreshold)
	r.Uint(KeyJumpThreshold, &cfg.Processor.JumpThreshold)
	r.Duration(KeyWindow, &cfg.Processor.FrequencyWindow)
	r.Float(KeyTargetHz, &cfg.Processor.TargetHz)

	r.Float(KeyStickScale, &cfg.Stick.Scale)
	r.Float(KeyExpo, &cfg.Stick.Expo)
	r.Float(KeyDeadband, &cfg.Stick.Deadband)

	r.Int(KeyEmitRate, &cfg.Emitter.Rate)
	r.Int(KeyEmitSlots, &cfg.Emitter.Slots)

	r.String(KeyMetricsAddr, &cfg.Server.Addr)

	r.String(KeyLogLevel, &cfg.Log.Level)
	r.String(KeyLogFormat, &cfg.Log.Format)
	r.String(KeyLogFile, &cfg.Log.File)

	r.Int(KeyFPS, &cfg.UI.FPS)
	r.Bool(KeyDemo, &cfg.UI.Demo)
	r.Bool(KeyHeadless, &cfg.UI.Headless)

	return errors.Join(r.errs...)
}

// BindFlags declares every configuration flag on fs. Defaults shown in help
// come from Default(); only flags the user changes override other sources.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.String(KeySocket, d.Link.SocketPath, "Unix socket the engine publishes telemetry on")
	fs.Int(KeyReadBuffer, d.Link.ReadBufferSize, "Bytes requested per socket read")
	fs.Duration(KeyIdleSleep, d.Link.IdleSleep, "Sleep between reads when no data is waiting")
	fs.Duration(KeyBackoff, d.Link.ReconnectBackoff, "Wait between reconnect attempts")

	fs.Int(KeySettleThreshold, d.Processor.SettleThreshold, "Updates ignored after a stream reset")
	fs.Uint64(KeyJumpThreshold, d.Processor.JumpThreshold, "Heartbeat jump treated as a stream reset")
	fs.Duration(KeyWindow, d.Processor.FrequencyWindow, "Minimum window for a frequency sample")
	fs.Float64(KeyTargetHz, d.Processor.TargetHz, "Expected heartbeat rate for accuracy")

	fs.Float64(KeyStickScale, d.Stick.Scale, "Raw axis units per full stick deflection")
	fs.Float64(KeyExpo, d.Stick.Expo, "Stick expo blend factor")
	fs.Float64(KeyDeadband, d.Stick.Deadband, "Stick center deadband")

	fs.Int(KeyEmitRate, d.Emitter.Rate, "Emulator tick rate (Hz)")
	fs.Int(KeyEmitSlots, d.Emitter.Slots, "Emulator connected controller slots")

	fs.String(KeyMetricsAddr, d.Server.Addr, "Listen address for /metrics, /snapshot and /ws (empty disables)")

	fs.String(KeyLogLevel, d.Log.Level, "Log level: debug, info, warn, error")
	fs.String(KeyLogFormat, d.Log.Format, "Log format: text or json")
	fs.String(KeyLogFile, d.Log.File, "Log file (defaults to stderr in headless mode, a temp file otherwise)")

	fs.Int(KeyFPS, d.UI.FPS, "Dashboard refresh rate")
	fs.Bool(KeyDemo, d.UI.Demo, "Run an in-process engine emulator (no external engine required)")
	fs.Bool(KeyHeadless, d.UI.Headless, "Log metrics instead of drawing the dashboard")
}
