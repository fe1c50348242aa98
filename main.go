package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"groundlink.klederson.com/internal/app"
	"groundlink.klederson.com/internal/config"
	"groundlink.klederson.com/internal/engine"
	"groundlink.klederson.com/internal/fault"
	"groundlink.klederson.com/internal/link"
	"groundlink.klederson.com/internal/logging"
	"groundlink.klederson.com/internal/server"
	"groundlink.klederson.com/internal/stick"
	"groundlink.klederson.com/internal/telemetry"
)

var flagConfig string

func main() {
	rootCmd := &cobra.Command{
		Use:   "groundlink",
		Short: "Groundlink - terminal telemetry monitor for the control engine",
		Long: `Groundlink connects to the control engine's telemetry socket and shows
its heartbeat rate, timing accuracy, jitter and controller slots on a
Matrix-inspired terminal dashboard.

Use --demo to run against a built-in engine emulator, or --headless to log
metrics instead of drawing the dashboard.`,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.BindFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML configuration file")

	rootCmd.AddCommand(emitCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error class to a sysexits(3) status.
func exitCode(err error) int {
	switch {
	case fault.IsInvalid(err):
		return 64 // EX_USAGE
	case fault.IsFatal(err):
		return 69 // EX_UNAVAILABLE
	default:
		return 1
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", config.AppName, config.AppVersion)
		},
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig, cmd.Flags())
	if err != nil {
		return err
	}

	logger, closer, err := logging.Setup(cfg.Log, !cfg.UI.Headless)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var emitter *engine.Emitter
	if cfg.UI.Demo {
		dir, err := os.MkdirTemp("", "groundlink-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		cfg.Link.SocketPath = filepath.Join(dir, "engine.sock")

		emitter = engine.New(engine.FromConfig(cfg), logger)
		if err := emitter.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = emitter.Stop() }()
	}

	proc := telemetry.NewProcessor(telemetry.OptionsFromConfig(cfg.Processor), nil, logger, telemetry.NewMetrics(reg))

	var program *tea.Program
	worker := link.NewWorker(link.WorkerDeps{
		Config:    cfg.Link,
		Processor: proc,
		Logger:    logger,
		Metrics:   link.NewMetrics(reg),
		OnStatus: func(s link.Status) {
			if program != nil {
				go program.Send(app.LinkStatusMsg{Status: s})
			}
		},
	})

	var srv *server.Server
	if cfg.Server.Addr != "" {
		srv = server.New(server.Deps{
			Addr:         cfg.Server.Addr,
			Processor:    proc,
			Status:       worker.Status,
			Gatherer:     reg,
			Logger:       logger,
			PushInterval: time.Second / time.Duration(cfg.UI.FPS),
		})
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http server shutdown", "error", err)
			}
		}()
	}

	if cfg.UI.Headless {
		if err := worker.Start(ctx); err != nil {
			return err
		}
		defer stopWorker(worker, logger)
		return app.NewReporter(proc, worker.Status, logger, config.HeadlessInterval).Run(ctx)
	}

	opts := app.Options{
		Processor:  proc,
		Curve:      stick.FromConfig(cfg.Stick),
		SocketPath: cfg.Link.SocketPath,
		TargetHz:   cfg.Processor.TargetHz,
		FPS:        cfg.UI.FPS,
		HistoryLen: cfg.UI.HistoryLen,
	}
	if emitter != nil {
		opts.Engine = emitter
	}

	program = tea.NewProgram(
		app.New(opts),
		tea.WithAltScreen(),
		tea.WithFPS(cfg.UI.FPS),
	)

	if err := worker.Start(ctx); err != nil {
		return err
	}
	defer stopWorker(worker, logger)

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		err = nil
	}
	return err
}

func stopWorker(w *link.Worker, logger *slog.Logger) {
	if err := w.Stop(); err != nil {
		logger.Warn("link worker stop", "error", err)
	}
}

func emitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "emit",
		Short: "Run the engine emulator on the telemetry socket",
		Long: `Emit serves synthetic telemetry on the configured socket at the configured
rate, the way the control engine does. Useful for testing a dashboard
running in another terminal.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flagConfig, cmd.Flags())
			if err != nil {
				return err
			}

			logger, closer, err := logging.Setup(cfg.Log, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			emitter := engine.New(engine.FromConfig(cfg), logger)
			if err := emitter.Start(ctx); err != nil {
				return err
			}

			ticker := time.NewTicker(config.HeadlessInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return emitter.Stop()
				case <-ticker.C:
					logger.Info("engine stats",
						"heartbeat", emitter.Heartbeat(),
						"overruns", emitter.Overruns(),
						"clients", emitter.Clients())
				}
			}
		},
	}
}
