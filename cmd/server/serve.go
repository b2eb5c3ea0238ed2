package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/codeassist-auth/account"
	"github.com/jrsteele09/codeassist-auth/authchain"
	"github.com/jrsteele09/codeassist-auth/internal/config"
	"github.com/jrsteele09/codeassist-auth/internal/logging"
	"github.com/jrsteele09/codeassist-auth/kvstore"
	"github.com/jrsteele09/codeassist-auth/server"
	"github.com/jrsteele09/codeassist-auth/sessions"
	"github.com/jrsteele09/codeassist-auth/token"
	fakeuserrepo "github.com/jrsteele09/codeassist-auth/users/repofake"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	envFile string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `
Usage: codeassist-auth serve [options]

  Starts the HTTP API backed by the configured Redis instance. Settings are
  read from the environment, optionally seeded from an env file:

      $ codeassist-auth serve --env-file=.env
  `,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
)

func init() {
	serveCmd.Flags().StringVar(&envFile, "env-file", "", "Path to a .env file loaded before reading configuration")
}

func run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := loadEnv(envFile); err != nil {
		return err
	}

	c := config.New()
	logger, logCloser, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	displayAppname(c.GetAppName())

	store, err := dialStore(ctx, c, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	handler, err := buildServer(c, store, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer, logger)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	if err := shutdown(httpServer); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// loadEnv seeds the environment from path. Without a path a missing .env is not an error.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func newLogger(c config.Config) (zerolog.Logger, io.Closer, error) {
	logger, closer, err := logging.New(logging.Config{
		Level: c.GetLogLevel(),
		Env:   c.GetEnv(),
		File:  c.GetLogFile(),
	})
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("logging.New: %w", err)
	}
	return logger, closer, nil
}

// dialStore connects to the token store. An unreachable store is fatal at start up.
func dialStore(ctx context.Context, c config.Config, logger zerolog.Logger) (*kvstore.RedisStore, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.GetStoreDialTimeout())
	defer cancel()
	store, err := kvstore.Dial(dialCtx, kvstore.Options{
		Addr:        c.GetStoreAddr(),
		Password:    c.GetStorePassword(),
		DB:          c.GetStoreDB(),
		PoolSize:    c.GetStorePoolSize(),
		DialTimeout: c.GetStoreDialTimeout(),
		OpTimeout:   c.GetStoreOpTimeout(),
	})
	if err != nil {
		logger.Error().Err(err).Str("addr", c.GetStoreAddr()).Msg("token store unreachable")
		return nil, err
	}
	return store, nil
}

// buildManager wires the token registry and the session manager on top of it.
func buildManager(c config.Config, store kvstore.Store, logger zerolog.Logger) (*sessions.Manager, error) {
	registry, err := token.NewRegistry(store, c, token.WithLogger(logger.With().Str("component", "registry").Logger()))
	if err != nil {
		return nil, err
	}
	return sessions.NewManager(registry, sessions.WithLogger(logger.With().Str("component", "sessions").Logger()))
}

// buildServer wires the session manager, validator and account service into the HTTP API.
// Users live in the in-memory directory; tokens live in the store.
func buildServer(c config.Config, store kvstore.Store, logger zerolog.Logger) (*server.Server, error) {
	manager, err := buildManager(c, store, logger)
	if err != nil {
		return nil, err
	}
	validator, err := authchain.NewValidator(manager, authchain.WithLogger(logger.With().Str("component", "authchain").Logger()))
	if err != nil {
		return nil, err
	}
	accounts, err := account.NewService(fakeuserrepo.NewFakeUserRepo(), manager, account.WithLogger(logger.With().Str("component", "account").Logger()))
	if err != nil {
		return nil, err
	}
	return server.New(c, accounts, manager, validator, store, server.WithLogger(logger.With().Str("component", "server").Logger()))
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Msg("server listening")
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
