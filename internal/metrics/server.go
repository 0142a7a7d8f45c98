package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"comicloader/internal/core/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves /metrics from gatherer on listenAddr until ctx is done.
func Server(ctx context.Context, listenAddr string, gatherer prometheus.Gatherer, log *logger.Logger) error {
	if log == nil {
		log = logger.Discard()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", "addr", listenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics listener failed", "error", err)
		return err
	}
	log.Info("finished serving metrics")
	return nil
}
