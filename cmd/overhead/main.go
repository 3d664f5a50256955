package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/overhead/internal/adsb"
	"github.com/yegors/overhead/internal/api"
	"github.com/yegors/overhead/internal/config"
	"github.com/yegors/overhead/internal/engine"
	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/render"
	"github.com/yegors/overhead/internal/sink"
	"github.com/yegors/overhead/internal/storage/sqlite"
	"github.com/yegors/overhead/internal/websocket"
	"github.com/yegors/overhead/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

const (
	messageBuffer   = 256
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Hour
)

func main() {
	flags := config.NewFlags("overhead")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if flags.Help {
		flags.Usage()
		return
	}

	// Load configuration with fallback logic, then let flags override it
	cfg, err := config.LoadWithFallback(flags.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	flags.Apply(cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting overhead",
		logger.String("version", Version),
		logger.String("config_path", cfg.Source),
		logger.String("stream", cfg.Stream.Source),
	)

	if err := run(cfg, log); err != nil {
		log.Error("Exiting with error", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}
	log.Info("Stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callsigns := render.NewCallsigns()
	if path := cfg.Tracking.AirlineDBPath; path != "" {
		n, err := callsigns.LoadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load airline database: %w", err)
		}
		log.Info("Loaded airline database", logger.String("path", path), logger.Int("airlines", n))
	}

	var journal *sqlite.AlertStorage
	if path := cfg.Storage.JournalPath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create journal directory: %w", err)
		}
		var err error
		journal, err = sqlite.NewAlertStorage(path, log)
		if err != nil {
			return fmt.Errorf("failed to open alert journal: %w", err)
		}
		defer journal.Close()
	}

	wsServer := websocket.NewServer(log)

	recent, err := sink.NewRecent(cfg.Storage.RecentAlerts)
	if err != nil {
		return err
	}

	dispatcher := sink.NewDispatcher(sink.Options{
		QueueSize:   cfg.Dispatch.QueueSize,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		Backoff:     time.Duration(cfg.Dispatch.BackoffMs) * time.Millisecond,
	}, log)
	if err := registerSinks(dispatcher, cfg, log, wsServer, recent, journal); err != nil {
		return err
	}

	eng := engine.New(engine.Config{
		Observer:      cfg.ObserverSettings(),
		StaleAfter:    time.Duration(cfg.Tracking.StaleAfterSecs) * time.Second,
		SweepInterval: time.Duration(cfg.Tracking.SweepIntervalSecs) * time.Second,
		Callsigns:     callsigns,
		OnEvict: func(ids []string) {
			wsServer.Broadcast(&websocket.Message{
				Type: websocket.MessageTypeFlightEvicted,
				Data: map[string]any{"flight_ids": ids},
			})
		},
	}, dispatcher, log)

	source, status, err := newSource(cfg, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	messages := make(chan flight.RawPositionMessage, messageBuffer)

	g.Go(func() error {
		defer close(messages)
		return source(gctx, messages)
	})

	// A finished replay closes the channel; stop everything else with it
	g.Go(func() error {
		defer stop()
		return eng.Run(gctx, messages)
	})

	g.Go(func() error {
		wsServer.Run(gctx)
		return nil
	})

	if journal != nil && cfg.Storage.RetentionDays > 0 {
		g.Go(func() error {
			pruneJournal(gctx, journal, cfg.Storage.RetentionDays, log)
			return nil
		})
	}

	if !cfg.Server.Disabled {
		router := api.NewRouter(api.Deps{
			Tracker:  eng,
			Recent:   recent,
			Journal:  journalHistory(journal),
			Sinks:    dispatcher,
			Source:   status,
			WSServer: wsServer,
		}, cfg.Server.CORSAllowedOrigins, log)

		server := &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      router.Routes(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}

		g.Go(func() error {
			log.Info("Starting HTTP server", logger.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			log.Info("Shutting down HTTP server...")
			return server.Shutdown(shutdownCtx)
		})
	}

	runErr := g.Wait()

	log.Info("Draining alert sinks...")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		log.Warn("Alert sinks did not drain before the deadline", logger.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// registerSinks attaches every configured output. The console, live feed and
// recent list always run.
func registerSinks(d *sink.Dispatcher, cfg *config.Config, log *logger.Logger,
	ws *websocket.Server, recent *sink.Recent, journal *sqlite.AlertStorage) error {
	register := func(s sink.Sink, opts ...sink.RegisterOption) error {
		if err := d.Register(s, opts...); err != nil {
			return fmt.Errorf("failed to register %s sink: %w", s.Name(), err)
		}
		log.Info("Registered alert sink", logger.String("sink", s.Name()))
		return nil
	}

	if err := register(sink.NewConsole(os.Stdout, log)); err != nil {
		return err
	}
	if err := register(sink.NewFeed(ws)); err != nil {
		return err
	}
	if err := register(recent); err != nil {
		return err
	}
	if cfg.Observer.Announce {
		if err := register(sink.NewSpeech(cfg.Sinks.Speech.Command)); err != nil {
			return err
		}
	}
	if display := cfg.Sinks.Display; display.URL != "" {
		if err := register(sink.NewDisplay(display.URL, display.Timeout()), sink.WithAttempts(1)); err != nil {
			return err
		}
	}
	if webhook := cfg.Sinks.Webhook; webhook.URL != "" {
		if err := register(sink.NewWebhook(webhook.URL, webhook.Timeout())); err != nil {
			return err
		}
	}
	if journal != nil {
		if err := register(sink.NewJournal(journal)); err != nil {
			return err
		}
	}
	return nil
}

// newSource returns the function that feeds the engine, plus a status
// reporter when the source has one
func newSource(cfg *config.Config, log *logger.Logger) (func(context.Context, chan<- flight.RawPositionMessage) error, api.SourceStatus, error) {
	if cfg.Stream.Source == config.StreamReplay {
		var r io.Reader = os.Stdin
		var closer io.Closer
		if cfg.Replay.Path != "-" {
			f, err := os.Open(cfg.Replay.Path)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open replay file: %w", err)
			}
			r, closer = f, f
		}
		replay := adsb.NewReplay(r, cfg.Replay.Speed, log)
		return func(ctx context.Context, out chan<- flight.RawPositionMessage) error {
			if closer != nil {
				defer closer.Close()
			}
			return replay.Run(ctx, out)
		}, nil, nil
	}

	observer := cfg.ObserverSettings()
	client := adsb.NewClient(adsb.ClientConfig{
		SourceType:  cfg.ADSB.SourceType,
		LocalURL:    cfg.ADSB.LocalSourceURL,
		ExternalURL: cfg.ADSB.ExternalSourceURL,
		APIHost:     cfg.ADSB.APIHost,
		APIKey:      cfg.ADSB.APIKey,
		Latitude:    observer.Location.Lat,
		Longitude:   observer.Location.Lon,
		RadiusNM:    cfg.ADSB.SearchRadiusNM,
		Timeout:     time.Duration(cfg.ADSB.TimeoutSecs) * time.Second,
	}, log)
	converter := adsb.Converter{
		CorrectMagnetic: cfg.ADSB.CorrectMagnetic,
		IncludeGround:   cfg.ADSB.IncludeGround,
	}
	poller := adsb.NewPoller(client, converter, time.Duration(cfg.ADSB.FetchIntervalSecs)*time.Second, log)
	return poller.Run, poller, nil
}

// journalHistory keeps a nil store from becoming a non-nil interface
func journalHistory(s *sqlite.AlertStorage) api.AlertHistory {
	if s == nil {
		return nil
	}
	return s
}

func pruneJournal(ctx context.Context, journal *sqlite.AlertStorage, retentionDays int, log *logger.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		n, err := journal.Prune(ctx, cutoff)
		if err != nil && ctx.Err() == nil {
			log.Error("Failed to prune alert journal", logger.Error(err))
		} else if n > 0 {
			log.Info("Pruned alert journal", logger.Int64("removed", n), logger.Time("cutoff", cutoff))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
