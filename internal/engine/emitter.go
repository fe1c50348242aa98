// Package engine emulates the control engine's telemetry publisher: a fixed
// rate loop that serves newline-delimited JSON on a Unix socket to one client
// at a time. It backs demo mode and end-to-end tests.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"groundlink.klederson.com/internal/config"
	"groundlink.klederson.com/internal/fault"
	"groundlink.klederson.com/internal/telemetry"
)

// Config controls the emulated engine.
type Config struct {
	SocketPath string
	Rate       int // ticks per second
	Slots      int // connected controllers, at most config.SlotCount
}

// FromConfig builds emulator settings from resolved configuration.
func FromConfig(c config.Config) Config {
	return Config{
		SocketPath: c.Link.SocketPath,
		Rate:       c.Emitter.Rate,
		Slots:      c.Emitter.Slots,
	}
}

// wire is one telemetry record as the engine writes it.
type wire struct {
	Heartbeat uint64           `json:"hb"`
	Late      uint64           `json:"late"`
	Slots     []telemetry.Slot `json:"slots"`
}

// Emitter publishes synthetic telemetry.
type Emitter struct {
	cfg    Config
	logger *slog.Logger
	pads   []pad

	ln      *net.UnixListener
	pending chan *net.UnixConn
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	heartbeat atomic.Uint64
	ticks     atomic.Uint64
	overruns  atomic.Uint64
	clients   atomic.Int64
	restart   atomic.Bool
}

// New creates an emitter with randomly chosen demo controllers.
func New(cfg Config, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		cfg:     cfg,
		logger:  logger.With("component", "engine", "socket", cfg.SocketPath),
		pads:    newPads(cfg.Slots),
		pending: make(chan *net.UnixConn),
	}
}

// Start binds the socket and begins ticking. A stale socket file left by a
// previous run is removed first.
func (e *Emitter) Start(ctx context.Context) error {
	if e.ln != nil {
		return fault.ErrAlreadyStarted
	}
	if e.cfg.Rate <= 0 {
		return fault.WrapInvalid(fmt.Errorf("%w: rate %d", fault.ErrInvalidConfig, e.cfg.Rate), "Emitter", "Start")
	}
	if err := os.Remove(e.cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fault.WrapFatal(err, "Emitter", "Start")
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: e.cfg.SocketPath, Net: "unix"})
	if err != nil {
		return fault.WrapFatal(err, "Emitter", "Start")
	}
	if err := os.Chmod(e.cfg.SocketPath, 0o600); err != nil {
		_ = ln.Close()
		return fault.WrapFatal(err, "Emitter", "Start")
	}
	e.ln = ln

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(2)
	go e.acceptLoop(ctx)
	go e.tickLoop(ctx)

	e.logger.Info("engine emulator active", "rate", e.cfg.Rate, "slots", len(e.pads))
	return nil
}

// Stop halts the loop, closes the listener and removes the socket file.
func (e *Emitter) Stop() error {
	if e.ln == nil {
		return fault.ErrNotStarted
	}
	e.cancel()
	err := e.ln.Close()
	e.wg.Wait()
	e.ln = nil
	_ = os.Remove(e.cfg.SocketPath)

	e.logger.Info("engine emulator stopped", "ticks", e.Ticks(), "overruns", e.Overruns())
	return err
}

func (e *Emitter) Ticks() uint64     { return e.ticks.Load() }
func (e *Emitter) Overruns() uint64  { return e.overruns.Load() }
func (e *Emitter) Heartbeat() uint64 { return e.heartbeat.Load() }

// Clients returns how many clients have been accepted so far.
func (e *Emitter) Clients() int64 { return e.clients.Load() }

// RestartCounter makes the next record carry heartbeat 1, as if the engine
// process had been restarted.
func (e *Emitter) RestartCounter() {
	e.restart.Store(true)
}

func (e *Emitter) acceptLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		conn, err := e.ln.AcceptUnix()
		if err != nil {
			return
		}
		select {
		case e.pending <- conn:
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

func (e *Emitter) tickLoop(ctx context.Context) {
	defer e.wg.Done()

	interval := time.Second / time.Duration(e.cfg.Rate)
	start := time.Now()
	next := start
	var client *net.UnixConn
	defer func() {
		if client != nil {
			_ = client.Close()
		}
	}()

	for ctx.Err() == nil {
		next = next.Add(interval)
		e.ticks.Add(1)

		if client == nil {
			select {
			case client = <-e.pending:
				e.clients.Add(1)
				e.logger.Info("client connected")
			default:
			}
		}

		if e.restart.CompareAndSwap(true, false) {
			e.heartbeat.Store(0)
		}
		hb := e.heartbeat.Add(1)

		if client != nil {
			line, err := e.encode(hb, time.Since(start).Seconds())
			if err == nil && !e.send(client, line) {
				e.logger.Info("client disconnected")
				_ = client.Close()
				client = nil
			}
		}

		now := time.Now()
		if now.After(next) {
			// Missed the deadline: count it and rebase instead of bursting to
			// catch up.
			e.overruns.Add(1)
			next = now
			continue
		}
		time.Sleep(next.Sub(now))
	}
}

func (e *Emitter) encode(hb uint64, t float64) ([]byte, error) {
	slots := make([]telemetry.Slot, config.SlotCount)
	for i := range slots {
		if i < len(e.pads) {
			slots[i] = e.pads[i].slot(i, t)
		} else {
			slots[i] = telemetry.Slot{ID: i}
		}
	}
	line, err := json.Marshal(wire{Heartbeat: hb, Late: e.overruns.Load(), Slots: slots})
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// send writes without blocking. A full socket buffer drops the record; any
// other failure reports the client as gone.
func (e *Emitter) send(conn *net.UnixConn, line []byte) bool {
	raw, err := conn.SyscallConn()
	if err != nil {
		return false
	}
	var werr error
	if err := raw.Write(func(fd uintptr) bool {
		_, werr = unix.Write(int(fd), line)
		return true
	}); err != nil {
		return false
	}
	return werr == nil || errors.Is(werr, unix.EAGAIN) || errors.Is(werr, unix.EINTR)
}
