// Package link owns the connection to the engine: it reads the telemetry
// socket on a dedicated goroutine and feeds the processor.
package link

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"groundlink.klederson.com/internal/config"
	"groundlink.klederson.com/internal/fault"
	"groundlink.klederson.com/internal/telemetry"
)

// Status describes the link as seen by consumers.
type Status struct {
	SocketPath string    `json:"socket_path"`
	Connected  bool      `json:"connected"`
	LastError  string    `json:"last_error,omitempty"`
	Connects   int       `json:"connects"`
	Since      time.Time `json:"since"`
}

// Worker runs the read loop. It is the only writer of its processor.
type Worker struct {
	cfg      config.LinkConfig
	proc     *telemetry.Processor
	client   *Client
	framer   Framer
	logger   *slog.Logger
	metrics  *Metrics
	onStatus func(Status)

	status atomic.Pointer[Status]

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// WorkerDeps groups the worker's collaborators. Logger, Metrics and OnStatus
// may be nil.
type WorkerDeps struct {
	Config    config.LinkConfig
	Processor *telemetry.Processor
	Logger    *slog.Logger
	Metrics   *Metrics
	// OnStatus is called from the worker goroutine on every connect or
	// disconnect. It must not block.
	OnStatus func(Status)
}

func NewWorker(deps WorkerDeps) *Worker {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		cfg:      deps.Config,
		proc:     deps.Processor,
		client:   NewClient(deps.Config.SocketPath, deps.Config.ReadBufferSize),
		logger:   logger.With("component", "link", "socket", deps.Config.SocketPath),
		metrics:  deps.Metrics,
		onStatus: deps.OnStatus,
	}
	w.status.Store(&Status{SocketPath: deps.Config.SocketPath, Since: time.Now()})
	return w
}

// Start launches the read loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return fault.ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true

	go w.run(ctx, w.done)
	return nil
}

// Stop asks the loop to exit and waits for it, up to the configured stop
// timeout. After a timeout the worker still counts as started, so Start is
// refused until a later Stop sees the loop exit.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return fault.ErrNotStarted
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(w.cfg.StopTimeout):
		return fault.ErrStopTimeout
	}

	w.mu.Lock()
	if w.done == done {
		w.started = false
	}
	w.mu.Unlock()
	return nil
}

// Status returns the last published link status.
func (w *Worker) Status() Status {
	return *w.status.Load()
}

func (w *Worker) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	release, err := raisePriority()
	defer release()
	if err != nil {
		w.logger.Debug("running at default priority", "error", err)
	}

	defer func() {
		if w.client.Connected() {
			_ = w.client.Close()
			w.metrics.disconnected()
		}
	}()

	for ctx.Err() == nil {
		if !w.client.Connected() {
			if err := w.client.Connect(); err != nil {
				w.metrics.connectFailure()
				w.proc.ResetLive()
				w.setDisconnected(err)
				w.backoff(ctx)
				continue
			}
			w.framer.Reset()
			w.metrics.connected()
			w.setConnected()
		}

		outcome, data, err := w.client.Read()
		switch outcome {
		case Frame:
			text, ok := w.framer.Push(data)
			if ok {
				w.proc.Update(text)
			}
			w.metrics.read(len(data), w.framer.Superseded(), ok)
		case NoData:
			w.sleep(ctx, w.cfg.IdleSleep)
		case Disconnected:
			_ = w.client.Close()
			w.metrics.disconnected()
			w.proc.ResetLive()
			w.setDisconnected(err)
		}
	}
}

func (w *Worker) backoff(ctx context.Context) {
	w.sleep(ctx, w.cfg.ReconnectBackoff)
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *Worker) setConnected() {
	prev := w.Status()
	next := Status{
		SocketPath: prev.SocketPath,
		Connected:  true,
		Connects:   prev.Connects + 1,
		Since:      time.Now(),
	}
	w.logger.Info("connected to engine", "connects", next.Connects)
	w.publish(next)
}

func (w *Worker) setDisconnected(err error) {
	prev := w.Status()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if !prev.Connected && prev.LastError == msg {
		return
	}
	switch {
	case prev.Connected:
		w.logger.Warn("lost engine connection", "error", msg)
	case err == nil || fault.IsTransient(err):
		w.logger.Info("waiting for engine", "error", msg)
	default:
		// Retried all the same.
		w.logger.Error("engine socket unusable", "error", msg)
	}
	w.publish(Status{
		SocketPath: prev.SocketPath,
		Connected:  false,
		LastError:  msg,
		Connects:   prev.Connects,
		Since:      time.Now(),
	})
}

func (w *Worker) publish(s Status) {
	w.status.Store(&s)
	if w.onStatus != nil {
		w.onStatus(s)
	}
}
