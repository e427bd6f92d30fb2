// ABOUTME: Command line client for the spatial bridge
// ABOUTME: Calls single functions or runs an orbiting tone demo
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/protocol"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string
	var timeout time.Duration

	root := &cobra.Command{
		Use:          "spatial-probe",
		Short:        "Talk to a running resonate-spatial service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:8930", "Bridge address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "Connect timeout")

	dial := func(ctx context.Context) (*protocol.Client, error) {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return protocol.Dial(dialCtx, addr)
	}

	root.AddCommand(&cobra.Command{
		Use:   "call <fn> [args...]",
		Short: "Call one bridge function and print its result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.Call(cmd.Context(), args[0], args[1:]...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "hello",
		Short: "Print the service identity and its functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			h := client.Hello()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (session %s)\n", h.Product, h.Version, h.Session)
			fmt.Fprintf(out, "functions: %s\n", strings.Join(h.Functions, ", "))
			return nil
		},
	})

	var payload string
	var radius float64
	var period, duration time.Duration
	demo := &cobra.Command{
		Use:   "orbit",
		Short: "Circle a source around the listener while sending heartbeats",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			return orbit(ctx, client, payload, radius, period, duration)
		},
	}
	demo.Flags().StringVar(&payload, "payload", "tone:440", "Audio payload to play")
	demo.Flags().Float64Var(&radius, "radius", 3, "Orbit radius in units")
	demo.Flags().DurationVar(&period, "period", 4*time.Second, "Time for one revolution")
	demo.Flags().DurationVar(&duration, "duration", 12*time.Second, "How long to run (0 until interrupted)")
	root.AddCommand(demo)

	return root
}

func orbit(ctx context.Context, client *protocol.Client, payload string, radius float64, period, duration time.Duration) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, TimeFormat: time.TimeOnly})

	if _, err := client.Call(ctx, "start"); err != nil {
		return err
	}
	id, err := client.Call(ctx, "id")
	if err != nil {
		return err
	}
	if _, err := client.Call(ctx, "create", payload, id); err != nil {
		return err
	}
	logger.Info("Source created", "id", id, "payload", payload)

	// The source outlives the probe only until the next liveness check
	defer func() {
		if _, err := client.Call(context.Background(), "destroy", id); err != nil {
			logger.Warn("Destroy failed", "id", id, "err", err)
		}
	}()

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	begin := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Orbit finished", "elapsed", time.Since(begin).Round(time.Millisecond))
			return nil
		case <-client.Done():
			return protocol.ErrClosed
		case <-heartbeat.C:
			if _, err := client.Call(ctx, "heartbeat"); err != nil && ctx.Err() == nil {
				return err
			}
		case now := <-ticker.C:
			angle := 2 * math.Pi * now.Sub(begin).Seconds() / period.Seconds()
			x := strconv.FormatFloat(radius*math.Cos(angle), 'f', 3, 64)
			z := strconv.FormatFloat(radius*math.Sin(angle), 'f', 3, 64)
			if _, err := client.Call(ctx, "pos", id, x, "0", z); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}
