package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mattr/internal/server"
)

var serveAddr string

const shutdownTimeout = 10 * time.Second

// serveCmd serves the conversation to a browser
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversation over local HTTP and websocket",
	Long: `Starts a local web server with a single page chat. Every connected
browser tab shares the same conversation.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr := loadedConfig().Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conv, err := newConversation(ctx)
	if err != nil {
		return err
	}
	defer conv.Close()

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := server.New(addr, conv)
	fmt.Fprintf(cmd.OutOrStdout(), "Mattr is listening on http://%s\n", l.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(l)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
			return err
		}
		return nil
	})
	return g.Wait()
}
