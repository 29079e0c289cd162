package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fittrack-server/auth"
	"github.com/jrsteele09/fittrack-server/internal/config"
	"github.com/jrsteele09/fittrack-server/server"
	"github.com/jrsteele09/fittrack-server/store"
	"github.com/jrsteele09/fittrack-server/store/memstore"
	"github.com/jrsteele09/fittrack-server/store/sqlstore"
)

const purgeInterval = time.Hour

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())
	if err := config.Validate(c); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := server.New(c, st)
	if err != nil {
		return err
	}
	go purgeExpiredSessions(ctx, srv.Auth())

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	returnError = shutdown(httpServer)
	return returnError
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

// openStore picks the persistence backend named by DATABASE_DRIVER
func openStore(ctx context.Context, c config.DatabaseConfig) (store.Store, error) {
	switch driver := c.GetDatabaseDriver(); driver {
	case config.DriverMemory:
		log.Warn().Msg("Using the in-memory store: state is lost on restart")
		return memstore.New(), nil
	case config.DriverPostgres, config.DriverSQLite:
		st, err := sqlstore.Open(ctx, driver, c.GetDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("sqlstore.Open %s: %w", driver, err)
		}
		log.Info().Str("driver", driver).Msg("Database ready")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// purgeExpiredSessions removes expired sessions at startup and then hourly until ctx ends
func purgeExpiredSessions(ctx context.Context, a *auth.Service) {
	purge := func() {
		n, err := a.PurgeExpiredSessions(ctx)
		if err != nil {
			log.Err(err).Msg("Failed to purge expired sessions")
			return
		}
		if n > 0 {
			log.Info().Int64("purged", n).Msg("Expired sessions purged")
		}
	}

	purge()
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
