package cache

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Serve starts the static file server exposing materialized tracks under
// /tracks/. It blocks until the server exits or ctx is cancelled; run in a
// goroutine.
func (s *Store) Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/tracks/", http.StripPrefix("/tracks/", http.FileServer(http.Dir(s.dir))))

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down audio cache server...")
		srv.Shutdown(context.Background()) //nolint:errcheck
	}()

	log.Info().Str("addr", addr).Str("dir", s.dir).Msg("Audio cache server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		// Log the error but do NOT exit — the bot can still stream
		// directly from provider URLs.
		log.Error().Err(err).Msg("Audio cache server exited")
	}
}
