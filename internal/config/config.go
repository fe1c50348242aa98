package config

import "time"

const (
	// Link
	DefaultSocketPath = "/tmp/xace.sock"
	ReadBufferSize    = 65536                  // bytes per non-blocking read
	IdleSleep         = 500 * time.Microsecond // sleep when a read returns no data
	ReconnectBackoff  = 500 * time.Millisecond // wait between connect attempts
	StopTimeout       = 2 * time.Second        // bounded join on worker shutdown

	// Processor
	SettleThreshold = 100                    // updates ignored after a reset
	JumpThreshold   = 5000                   // heartbeat jump treated as a restart
	FrequencyWindow = 100 * time.Millisecond // minimum window for a frequency sample
	TargetHz        = 2000.0                 // expected heartbeat rate of the engine
	AccuracyGuard   = 50 * time.Millisecond  // sessions younger than this report 100%

	// Stick shaping
	StickScale    = 128.0 // raw axis units per full deflection
	StickExpo     = 0.4   // cubic blend factor
	StickDeadband = 0.05  // normalized center deadband

	// Engine emulator
	EmitRate       = 2000 // ticks per second
	SlotCount      = 4
	AxesPerSlot    = 6
	ButtonsPerSlot = 15

	// Display
	TargetFPS        = 60
	HistoryLen       = 120 // frequency samples kept for the sparkline
	HeadlessInterval = time.Second

	// Server
	ShutdownTimeout = 5 * time.Second

	// App
	AppName    = "GROUNDLINK"
	AppVersion = "1.0"
	EnvPrefix  = "GROUNDLINK_"
)
