// Command midasnode runs a single MIDAS node: it loads configuration,
// connects to its sample source, and serves the broker's front-facing
// endpoint until it receives a shutdown signal.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"midasnode/internal/config"
	"midasnode/internal/logging"
	"midasnode/internal/node"
	"midasnode/internal/receiver"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "midasnode",
		Short: "Run a MIDAS measurement and analysis node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a node configuration file")
	return cmd
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("midasnode: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("midasnode: %w", err)
	}
	defer logger.Sync()

	var source receiver.SampleSource
	if cfg.PrimaryNode {
		source = noopSource{}
		logger.Warn("no sample source wired; primary node will retry indefinitely",
			zap.String("stream", cfg.LSLStreamName))
	}

	n := node.New(cfg, source, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("midasnode: %w", err)
	}

	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.PortFrontend))
	srv := &http.Server{Addr: addr, Handler: http.HandlerFunc(n.ServeFrontend)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("frontend server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	n.Stop()
	_ = srv.Close()
	return nil
}

// noopSource is the placeholder sample source wired when no external
// acquisition library is configured; its Resolve blocks until the attempt's
// context ends, so every resolve attempt fails at the receiver's per-attempt
// timeout and the retry loop idles without producing samples.
type noopSource struct{}

func (noopSource) Resolve(ctx context.Context, name string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (noopSource) Pull(ctx context.Context) (receiver.Sample, error) {
	<-ctx.Done()
	return receiver.Sample{}, ctx.Err()
}
