package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartServer exposes /metrics on its own port, apart from the API, and
// returns the function that shuts it down.
func StartServer(port int) (shutdown func(context.Context) error) {
	logger := slog.Default().With("component", "metrics-server")
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return server.Shutdown
}
