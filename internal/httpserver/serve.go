package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/andrebq/backstage/internal/logutil"
)

// Serve listens on bind and serves handler until ctx is cancelled
func Serve(ctx context.Context, bind string, handler http.Handler) error {
	lst, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("unable to listen on %v, cause %w", bind, err)
	}
	return ServeListener(ctx, lst, handler)
}

// ServeListener takes ownership of lst. Once ctx is cancelled, in-flight
// requests get up to one minute to complete. Request contexts carry the
// values of ctx but not its cancellation.
func ServeListener(ctx context.Context, lst net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadTimeout:       time.Minute * 5,
		WriteTimeout:      time.Minute,
		ReadHeaderTimeout: time.Minute,
		IdleTimeout:       time.Minute * 5,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	log := logutil.Component(ctx, "httpserver").With().Str("server.addr", lst.Addr().String()).Logger()

	served := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting HTTP server")
		served <- server.Serve(lst)
	}()

	select {
	case err := <-served:
		// Serve never returns nil
		return fmt.Errorf("unable to serve, cause %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Initiating shutdown process")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Minute)
	defer cancelShutdown()
	err := server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("unable to shutdown server, cause %w", err)
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("Shutdown completed")
	return nil
}
