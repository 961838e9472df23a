package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/metrics-ops/ssh-log-exporter/internal/config"
	"github.com/metrics-ops/ssh-log-exporter/internal/metric"
	"github.com/metrics-ops/ssh-log-exporter/internal/supervisor"
	"github.com/metrics-ops/ssh-log-exporter/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/version"
	toolkitweb "github.com/prometheus/exporter-toolkit/web"
)

type returnCode = int

const (
	returnCodeNoError returnCode = -2
	returnCodeReload  returnCode = -1
	returnCodeOK      returnCode = 0
	returnCodeError   returnCode = 1
)

var errReload = errors.New("reload")

func main() {
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)

	os.Exit(execute(os.Args, os.Stdout, termCh)) //nolint:forbidigo // entry point
}

func execute(args []string, stdout io.Writer, termCh <-chan os.Signal) int {
	ctx := context.Background()

	for {
		if rc := run(ctx, args, stdout, termCh); rc != returnCodeReload {
			return rc
		}
	}
}

//nolint:cyclop
func run(ctx context.Context, args []string, stdout io.Writer, termCh <-chan os.Signal) returnCode {
	conf, logger, rc := initializeConfigAndLogger(args, stdout)
	if rc != returnCodeNoError {
		return rc
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	logger.LogAttrs(ctx, slog.LevelDebug, "config", slog.String("config", conf.String()))

	if conf.VerifyConfig {
		return returnCodeOK
	}

	reg := metric.NewRegistry(conf.Global.Prefix, time.Duration(conf.Global.TTL)*time.Second)

	readers, err := config.BuildReaders(conf.Global)
	if err != nil {
		logger.ErrorContext(ctx, "building column schema", slog.Any("error", err))

		return returnCodeError
	}

	if err := config.RegisterFamilies(reg, conf.Global, readers); err != nil {
		logger.ErrorContext(ctx, "registering metric families", slog.Any("error", err))

		return returnCodeError
	}

	factory := supervisor.NewWorkerFactory(readers, reg, logger)
	sup := supervisor.New(conf.SSH, conf.Script, time.Duration(conf.ReloadInterval)*time.Second, factory, logger)

	supDone := make(chan error, 1)

	go func() { supDone <- sup.Run(ctx) }()

	server := newServer(conf, logger, reg)

	serverErrCh := make(chan error, 1)

	toolkitFlags := &toolkitweb.FlagConfig{
		WebListenAddresses: &[]string{conf.Web.ListenAddress},
		WebSystemdSocket:   boolPtr(false),
		WebConfigFile:      &conf.Web.ConfigFile,
	}

	go func() {
		if err := toolkitweb.ListenAndServe(server, toolkitFlags, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err

			return
		}

		serverErrCh <- nil
	}()

	logger.InfoContext(ctx, "scraper exporter started", slog.String("address", conf.Web.ListenAddress))

	return waitForShutdown(ctx, cancel, termCh, serverErrCh, server, logger)
}

//nolint:cyclop
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	termCh <-chan os.Signal,
	serverErrCh <-chan error,
	server *http.Server,
	logger *slog.Logger,
) returnCode {
	for {
		select {
		case err := <-serverErrCh:
			if err != nil {
				cancel(err)
			}
		case sig := <-termCh:
			logger.InfoContext(ctx, "received signal", slog.String("signal", sig.String()))

			if sig == syscall.SIGHUP {
				cancel(errReload)
			} else {
				cancel(nil)
			}
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil { //nolint:contextcheck
				logger.ErrorContext(ctx, "shutting down http server", slog.Any("error", err))
			}

			switch {
			case errors.Is(context.Cause(ctx), errReload):
				return returnCodeReload
			case errors.Is(context.Cause(ctx), context.Canceled), context.Cause(ctx) == nil:
				return returnCodeOK
			default:
				logger.ErrorContext(ctx, "shutting down", slog.Any("error", context.Cause(ctx)))

				return returnCodeError
			}
		}
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func newServer(conf config.Config, logger *slog.Logger, reg *metric.Registry) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewBuildInfoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector("scraper_exporter"),
	)

	mux.Handle("GET /metrics", web.MetricsHandler(reg, promReg, logger))

	if conf.Debug.Enable {
		mux.Handle("GET /", http.RedirectHandler("/debug/pprof/", http.StatusTemporaryRedirect))
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	}

	return &http.Server{
		Addr:              conf.Web.ListenAddress,
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       3 * time.Second,
		WriteTimeout:      10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		Handler:           mux,
	}
}

func initializeConfigAndLogger(args []string, stdout io.Writer) (config.Config, *slog.Logger, returnCode) {
	conf, err := setupConfiguration(args, stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return config.Config{}, nil, returnCodeOK
		}

		if errors.Is(err, config.ErrVersion) {
			printVersion(stdout)

			return config.Config{}, nil, returnCodeOK
		}

		_, _ = fmt.Fprintln(stdout, err.Error())

		return config.Config{}, nil, returnCodeError
	}

	logger, err := setupLogger(conf, stdout)
	if err != nil {
		_, _ = fmt.Fprintln(stdout, fmt.Errorf("setting up logging: %w", err).Error())

		return config.Config{}, nil, returnCodeError
	}

	return conf, logger, returnCodeNoError
}

func setupConfiguration(args []string, stdout io.Writer) (config.Config, error) {
	conf, err := config.New(args, stdout)
	if err != nil {
		return config.Config{}, err //nolint:wrapcheck
	}

	if err := config.Validate(conf); err != nil {
		return config.Config{}, fmt.Errorf("configuration validation error: %w", err)
	}

	return conf, nil
}

func setupLogger(conf config.Config, stdout io.Writer) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: conf.Log.Level}

	switch conf.Log.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(stdout, opts)), nil
	case "console":
		return slog.New(slog.NewTextHandler(stdout, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", conf.Log.Format)
	}
}

func printVersion(stdout io.Writer) {
	if version.Version == "" {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			_, _ = fmt.Fprintf(stdout, "version: %s\ngo: %s\n", buildInfo.Main.Version, buildInfo.GoVersion)

			return
		}
	}

	_, _ = fmt.Fprintf(stdout, "version: %s\ncommit: %s\ndate: %s\n", version.Version, version.GetRevision(), version.BuildDate)
}
