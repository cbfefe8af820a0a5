package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anthropics/semfora/internal/config"
	"github.com/anthropics/semfora/internal/logx"
	"github.com/anthropics/semfora/internal/query"
	"github.com/anthropics/semfora/internal/registry"
	"github.com/anthropics/semfora/internal/wsserver"
)

var (
	daemonHost string
	daemonPort int
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the socket server",
	Long: `daemon starts semfora's WebSocket server and blocks until it is
stopped. Every repository it is asked to connect to (via a client's
"connect" message) is scanned once, then kept fresh by a file watcher
and a git boundary poller for as long as the daemon runs.

A bind failure is fatal: the process exits non-zero without starting.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&daemonHost, "host", "127.0.0.1", "address to bind the socket server to")
	daemonCmd.Flags().IntVar(&daemonPort, "port", 7420, "port to bind the socket server to")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger, err := logx.New(verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logx.Sync(logger)

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	cfg, err := config.Load(workDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", daemonHost, daemonPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		// Port bind failure is fatal to the process (spec §7).
		return fmt.Errorf("binding %s: %w", addr, err)
	}

	runtime := newDaemonRuntime(cfg, logger)
	defer runtime.Close()

	reg := registry.New()
	reg.OnCreate = runtime.onCreate

	server := wsserver.New(reg, query.Dispatch)
	httpServer := &http.Server{Handler: server}

	logger.Info("semfora daemon listening", zap.String("addr", addr))

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve(listener) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serving: %w", err)
		}
	case <-sig:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Close()
		_ = httpServer.Shutdown(ctx)
	}
	return nil
}
