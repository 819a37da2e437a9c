package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"asoandina.org/internal/catalog"
	"asoandina.org/internal/coa"
	"asoandina.org/internal/httpapi"
	"asoandina.org/internal/journal"
	"asoandina.org/internal/ledger"
	"asoandina.org/internal/obs"
	"asoandina.org/internal/store/pg"
	"asoandina.org/internal/stream"
)

var version = "0.3.0"

func main() {
	_ = godotenv.Load()
	obs.InitLogger(os.Getenv("ASO_LOG_LEVEL"))
	obs.Init()
	log := obs.Logger()

	addr := os.Getenv("ASO_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	var (
		svc   ledger.Service
		probe httpapi.ReadyProbe
		c     func() error
	)
	if dsn := os.Getenv("ASO_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("open postgres store")
		}
		svc = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
		c = store.Close
		log.Info().Msg("using postgres ledger store")
	} else {
		// Demo mode: everything in memory, seeded with the default chart
		// and catalogs. Nothing survives a restart.
		chart := coa.NewChart()
		if err := coa.Seed(chart); err != nil {
			log.Fatal().Err(err).Msg("seed chart")
		}
		cats := catalog.NewInMemory()
		cats.SeedDemo()
		svc = ledger.NewInMemory(chart, journal.NewValidator(chart, cats, cats))
		log.Warn().Msg("ASO_PG_DSN not set, using in-memory ledger")
	}

	api := httpapi.New(probe, svc, stream.New(), version)
	handler := httpapi.RequestID(
		httpapi.LoggingJSON(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.RateLimit(
						httpapi.MaxBodyBytes(api.Handler(), 1<<20),
						50, 25)))))

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("addr", addr).Str("version", version).Msg("starting ledger api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()
	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.SetReady(false)
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if c != nil {
		_ = c()
	}
	log.Info().Msg("stopped")
}
