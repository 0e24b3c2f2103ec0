package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/deepzoom/internal/server"
)

const version = "1.0.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a rendered tile pyramid over HTTP",
	Long: `Start an HTTP server exposing a rendered DeepZoom pyramid: the DZI
descriptor, the tile files and the bundled OpenSeadragon viewer page.

Endpoints:
  /                  viewer page
  /{name}.dzi        DZI descriptor
  /{name}_files/...  tile images
  /info              pyramid metadata as JSON
  /health            health check

Examples:
  # Serve the current directory on default port 8080
  deepzoom serve

  # Serve a named render on a custom port
  deepzoom serve --dir ./render --name mandelbrot --port 3000

  # Bind to all interfaces
  deepzoom serve --bind 0.0.0.0 --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	serveCmd.Flags().StringP("dir", "d", ".", "directory containing the rendered pyramid")
	serveCmd.Flags().StringP("name", "n", "mandelbrot", "pyramid base name")

	// Bind flags to viper
	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("server.dir", serveCmd.Flags().Lookup("dir"))
	viper.BindPFlag("server.name", serveCmd.Flags().Lookup("name"))
}

func runServe(cmd *cobra.Command, args []string) error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	timeout := viper.GetDuration("server.timeout")
	dir := viper.GetString("server.dir")
	name := viper.GetString("server.name")

	addr := fmt.Sprintf("%s:%d", bind, port)

	srv := server.New(dir, name, version)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(timeout),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		fmt.Fprintf(cmd.ErrOrStderr(), "\nShutting down server...\n")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s from %s on %s\n", name, dir, addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Viewer: http://%s/\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Health check: http://%s/health\n", addr)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}
