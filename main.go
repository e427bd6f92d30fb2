// ABOUTME: Entry point for the Resonate spatial sound service
// ABOUTME: Loads configuration, opens the audio engine and serves the bridge
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/internal/bridge"
	"github.com/Resonate-Protocol/resonate-spatial/internal/config"
	"github.com/Resonate-Protocol/resonate-spatial/internal/engine"
	"github.com/Resonate-Protocol/resonate-spatial/internal/logging"
	"github.com/Resonate-Protocol/resonate-spatial/internal/metrics"
	"github.com/Resonate-Protocol/resonate-spatial/internal/monitor"
	"github.com/Resonate-Protocol/resonate-spatial/internal/version"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/spatial"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var configFile, envFile string

	cmd := &cobra.Command{
		Use:          "resonate-spatial",
		Short:        "Positional sound sources driven over a local bridge",
		Version:      version.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "Config file (default ./resonate-spatial.yaml)")
	flags.StringVar(&envFile, "env-file", ".env", "Environment file loaded before configuration")
	flags.String("backend", "oto", "Audio output backend (oto, malgo, portaudio, null)")
	flags.Int("sample-rate", 48000, "Output sample rate")
	flags.String("distance-model", "inverse", "Distance attenuation model (inverse, linear, exponent, none)")
	flags.String("addr", "127.0.0.1:8930", "Bridge listen address")
	flags.Bool("stdio", false, "Serve the bridge as JSON lines on stdin/stdout")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-file", "", "Also append logs to this file")
	flags.Bool("monitor", false, "Show the terminal monitor")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return bindFlags(v, cmd.Flags(), flagKeys)
	}

	return cmd
}

// flagKeys maps config keys to the flags that override them
var flagKeys = map[string]string{
	"engine.backend":        "backend",
	"engine.sample_rate":    "sample-rate",
	"engine.distance_model": "distance-model",
	"bridge.addr":           "addr",
	"bridge.stdio":          "stdio",
	"log.level":             "log-level",
	"log.file":              "log-file",
	"monitor.enabled":       "monitor",
}

// bindFlags lets set flags take precedence over file and environment values
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind --%s to %s: %w", name, key, err)
		}
	}
	return nil
}

func run(parent context.Context, cfg *config.Config) error {
	if cfg.Monitor.Enabled && cfg.Bridge.Stdio {
		return errors.New("the monitor and the stdio bridge both need the terminal")
	}

	// Stdout carries bridge responses in stdio mode
	logger, closer, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: !cfg.Monitor.Enabled,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.Info("Starting", "version", version.String(), "backend", cfg.Engine.Backend)

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return err
	}

	svc, err := spatial.New(spatial.Config{
		Engine: engine.Config{
			Backend:        cfg.Engine.Backend,
			SampleRate:     cfg.Engine.SampleRate,
			BufferMs:       cfg.Engine.BufferMs,
			OutputBufferMs: cfg.Engine.OutputBufferMs,
			DopplerFactor:  cfg.Engine.DopplerFactor,
			MetersPerUnit:  cfg.Engine.MetersPerUnit,
			DistanceModel:  cfg.Engine.DistanceModel,
			Decode: decode.Config{
				LoopFiles:     cfg.Decode.LoopFiles,
				FFmpegPath:    cfg.Decode.FFmpeg,
				HTTPTimeout:   cfg.Decode.HTTPTimeout,
				CacheTTL:      cfg.Decode.CacheTTL,
				CacheMaxBytes: cfg.Decode.CacheMaxBytes,
			},
		},
		Tick:    cfg.Liveness.Tick,
		Silence: cfg.Liveness.Silence,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		if errors.Is(err, spatial.ErrUnavailable) {
			logger.Error("Audio engine unavailable", "backend", cfg.Engine.Backend, "err", err)
		}
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Error closing service", "err", err)
		}
	}()

	if err := m.WatchStatus(svc); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := bridge.NewDispatcher(svc, logger, m)

	if cfg.Bridge.Stdio {
		logger.Info("Serving bridge on stdio")
		err := bridge.ServeStdio(ctx, dispatcher, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("Stopped")
		return nil
	}

	srv := bridge.NewServer(bridge.ServerConfig{
		Addr:       cfg.Bridge.Addr,
		Dispatcher: dispatcher,
		Health:     svc,
		Metrics:    m,
		Logger:     logger,
	})
	if err := srv.Start(); err != nil {
		return err
	}

	if cfg.Monitor.Enabled {
		waitMonitor(ctx, logger, monitor.New(svc.Status, srv.Addr()))
	} else {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Bridge shutdown incomplete", "err", err)
	}

	logger.Info("Stopped")
	return nil
}

// waitMonitor shows the monitor until the user quits it or ctx ends
func waitMonitor(ctx context.Context, logger *log.Logger, mon *monitor.Monitor) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := mon.Run(); err != nil {
			logger.Error("Monitor failed", "err", err)
		}
	}()

	select {
	case <-mon.QuitChan():
		logger.Info("Received quit signal from monitor")
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		mon.Stop()
	case <-done:
	}
	<-done
}
