package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Start serves handler on host:port. The returned context is cancelled once the server has
// stopped, either because it failed or because ctx was cancelled and shutdown completed.
func Start(ctx context.Context, name, host, port string, handler http.Handler) (context.Context, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return ctx, err
	}
	log.Infof("Starting service %s at %s", name, ln.Addr())

	return startService(ctx, name, ln, handler), nil
}

func startService(ctx context.Context, name string, ln net.Listener, handler http.Handler) context.Context {
	done, cancel := context.WithCancel(context.Background())

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer cancel()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Errorf("service %s stopped", name)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
		case <-done.Done():
			return
		}
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Errorf("shutting down service %s", name)
		}
		log.Infof("Service %s shut down", name)
	}()

	return done
}
