package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/spf13/cobra"

	"github.com/pipetunnel/pipetunnel/cmd"
	"github.com/pipetunnel/pipetunnel/pkg/api"
	"github.com/pipetunnel/pipetunnel/pkg/config"
	"github.com/pipetunnel/pipetunnel/pkg/logging"
	"github.com/pipetunnel/pipetunnel/pkg/pages"
	"github.com/pipetunnel/pipetunnel/pkg/relay"
)

// shutdownGracePeriod bounds how long in-flight rendezvous connections get
// to wind down on their own after a termination signal before they're torn
// down forcibly, per the distilled spec's requirement that shutdown
// destroys any in-flight transfers rather than waiting on them forever.
const shutdownGracePeriod = 5 * time.Second

func serveMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 0 {
		return errors.New("unexpected arguments provided")
	}

	cfg, err := config.Load(serveConfiguration.configPath)
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}
	if serveConfiguration.port != 0 {
		cfg.Port = serveConfiguration.port
	}
	if serveConfiguration.host != "" {
		cfg.Host = serveConfiguration.host
	}
	if serveConfiguration.logLevel != "" {
		cfg.LogLevel = serveConfiguration.logLevel
	}

	logger := logging.RootLogger
	if err := config.ApplyLogLevel(cfg, logger); err != nil {
		return err
	}

	pageService, err := pages.New()
	if err != nil {
		return fmt.Errorf("unable to prepare static pages: %w", err)
	}

	router := httprouter.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleMethodNotAllowed = false
	router.HandleOPTIONS = false

	relayService := relay.NewService(pageService, logger.Sublogger("relay"))
	relayService.Register(router)

	handler := http.Handler(router)
	handler = api.AddSecurityHeaders(handler)

	bind := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("unable to bind to %s: %w", bind, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: api.ReadHeaderTimeout,
		IdleTimeout:       api.IdleTimeout,
	}

	logger.Printf("Listening on %s", listener.Addr())

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Serve(listener)
	}()
	defer server.Close()

	signalTermination := make(chan os.Signal, 1)
	signal.Notify(signalTermination, cmd.TerminationSignals...)

	select {
	case sig := <-signalTermination:
		logger.Printf("Received termination signal: %s", sig)
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("premature server termination: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn(fmt.Errorf("graceful shutdown failed, forcing close: %w", err))
		server.Close()
	}

	return nil
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Run the rendezvous relay server",
	Run:   cmd.Mainify(serveMain),
}

var serveConfiguration struct {
	help       bool
	configPath string
	host       string
	port       uint16
	logLevel   string
}

func init() {
	flags := serveCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&serveConfiguration.help, "help", "h", false, "Show help information")
	flags.StringVar(&serveConfiguration.configPath, "config", "", "Path to a YAML configuration file")
	flags.StringVar(&serveConfiguration.host, "host", "", "Override the listen host")
	flags.Uint16Var(&serveConfiguration.port, "port", 0, "Override the listen port")
	flags.StringVar(&serveConfiguration.logLevel, "log-level", "", "Override the log level (disabled, error, warn, info, debug, trace)")
}
