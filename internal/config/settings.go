package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"groundlink.klederson.com/internal/fault"
)

// Config is the resolved runtime configuration.
type Config struct {
	Link      LinkConfig      `yaml:"link"`
	Processor ProcessorConfig `yaml:"processor"`
	Stick     StickConfig     `yaml:"stick"`
	Emitter   EmitterConfig   `yaml:"emitter"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	UI        UIConfig        `yaml:"ui"`
}

type LinkConfig struct {
	SocketPath       string        `yaml:"socket_path"`
	ReadBufferSize   int           `yaml:"read_buffer_size"`
	IdleSleep        time.Duration `yaml:"idle_sleep"`
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
	StopTimeout      time.Duration `yaml:"stop_timeout"`
}

type ProcessorConfig struct {
	SettleThreshold int           `yaml:"settle_threshold"`
	JumpThreshold   uint64        `yaml:"jump_threshold"`
	FrequencyWindow time.Duration `yaml:"frequency_window"`
	TargetHz        float64       `yaml:"target_hz"`
	AccuracyGuard   time.Duration `yaml:"accuracy_guard"`
}

type StickConfig struct {
	Scale    float64 `yaml:"scale"`
	Expo     float64 `yaml:"expo"`
	Deadband float64 `yaml:"deadband"`
}

type EmitterConfig struct {
	Rate  int `yaml:"rate"`
	Slots int `yaml:"slots"`
}

type ServerConfig struct {
	// Addr is the listen address for /metrics, /snapshot and /ws. Empty
	// disables the server.
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type UIConfig struct {
	FPS        int  `yaml:"fps"`
	HistoryLen int  `yaml:"history_len"`
	Demo       bool `yaml:"demo"`
	Headless   bool `yaml:"headless"`
}

// Default returns the configuration built from the package constants.
func Default() Config {
	return Config{
		Link: LinkConfig{
			SocketPath:       DefaultSocketPath,
			ReadBufferSize:   ReadBufferSize,
			IdleSleep:        IdleSleep,
			ReconnectBackoff: ReconnectBackoff,
			StopTimeout:      StopTimeout,
		},
		Processor: ProcessorConfig{
			SettleThreshold: SettleThreshold,
			JumpThreshold:   JumpThreshold,
			FrequencyWindow: FrequencyWindow,
			TargetHz:        TargetHz,
			AccuracyGuard:   AccuracyGuard,
		},
		Stick: StickConfig{
			Scale:    StickScale,
			Expo:     StickExpo,
			Deadband: StickDeadband,
		},
		Emitter: EmitterConfig{
			Rate:  EmitRate,
			Slots: SlotCount,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		UI: UIConfig{
			FPS:        TargetFPS,
			HistoryLen: HistoryLen,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, GROUNDLINK_*
// environment variables and changed command-line flags, in increasing order
// of precedence. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fault.WrapInvalid(fmt.Errorf("read config %s: %w", path, err), "Config", "Load")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fault.WrapInvalid(fmt.Errorf("parse config %s: %w", path, err), "Config", "Load")
		}
	}

	var sources []Source
	if flags != nil {
		sources = append(sources, NewFlagSource(flags))
	}
	sources = append(sources, &EnvSource{Prefix: EnvPrefix})

	if err := NewResolver(sources...).Apply(&cfg); err != nil {
		return cfg, fault.WrapInvalid(fmt.Errorf("%w: %w", fault.ErrInvalidConfig, err), "Config", "Load")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// Validate rejects values the link, processor or emitter cannot run with.
func (c Config) Validate() error {
	check := func(ok bool, format string, args ...any) error {
		if ok {
			return nil
		}
		return fault.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{fault.ErrInvalidConfig}, args...)...), "Config", "Validate")
	}

	checks := []error{
		check(c.Link.SocketPath != "", "socket path is empty"),
		check(c.Link.ReadBufferSize > 0, "read buffer size %d must be positive", c.Link.ReadBufferSize),
		check(c.Link.IdleSleep > 0, "idle sleep %s must be positive", c.Link.IdleSleep),
		check(c.Link.ReconnectBackoff > 0, "reconnect backoff %s must be positive", c.Link.ReconnectBackoff),
		check(c.Link.StopTimeout > 0, "stop timeout %s must be positive", c.Link.StopTimeout),
		check(c.Processor.SettleThreshold > 0, "settle threshold %d must be positive", c.Processor.SettleThreshold),
		check(c.Processor.JumpThreshold > 0, "jump threshold must be positive"),
		check(c.Processor.FrequencyWindow > 0, "frequency window %s must be positive", c.Processor.FrequencyWindow),
		check(c.Processor.TargetHz > 0, "target rate %.1f must be positive", c.Processor.TargetHz),
		check(c.Processor.AccuracyGuard >= 0, "accuracy guard %s is negative", c.Processor.AccuracyGuard),
		check(c.Stick.Scale > 0, "stick scale %.1f must be positive", c.Stick.Scale),
		check(c.Stick.Expo >= 0 && c.Stick.Expo <= 1, "stick expo %.2f outside [0,1]", c.Stick.Expo),
		check(c.Stick.Deadband >= 0 && c.Stick.Deadband < 1, "stick deadband %.2f outside [0,1)", c.Stick.Deadband),
		check(c.Emitter.Rate > 0, "emitter rate %d must be positive", c.Emitter.Rate),
		check(c.Emitter.Slots >= 0, "emitter slots %d is negative", c.Emitter.Slots),
		check(c.UI.FPS > 0, "fps %d must be positive", c.UI.FPS),
		check(c.UI.HistoryLen > 0, "history length %d must be positive", c.UI.HistoryLen),
		check(c.Log.Format == "text" || c.Log.Format == "json", "log format %q must be text or json", c.Log.Format),
		check(validLogLevel(c.Log.Level), "log level %q must be debug, info, warn or error", c.Log.Level),
	}

	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
