package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/lab-access/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the lab-access HTTP API.

Endpoints live under /api/v1: enrollments, identify, access/check,
permissions, logs and, with a directory configured, rooms. When
WEB_API_TOKEN is set every endpoint except /api/v1/health requires
"Authorization: Bearer <token>".`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Connecting to PostgreSQL database...\n")
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	b.loadIndex(ctx)

	if port := mustGetInt(cmd, "port"); port > 0 {
		b.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		b.cfg.Web.Host = host
	}

	deps := web.Dependencies{
		Engine:    b.engine,
		Extractor: b.extractor,
		Database:  b.pool,
		Logger:    b.logger,
	}
	if b.directory != nil {
		deps.Rooms = b.directory
		fmt.Printf("Campus directory enabled (MariaDB)\n")
	}
	server := web.NewServer(b.cfg, deps)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		fmt.Println("\nShutting down...")
		if b.cfg.Database.HNSWIndexPath != "" && b.engine.IndexCount() > 0 {
			if err := b.engine.SaveIndex(b.cfg.Database.HNSWIndexPath); err != nil {
				fmt.Printf("Warning: failed to save template HNSW index: %v\n", err)
			} else {
				fmt.Println("Template HNSW index saved to disk")
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting lab-access API on http://%s:%d\n", b.cfg.Web.Host, b.cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-shutdownDone
	return nil
}
