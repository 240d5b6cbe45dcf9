package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/plado/internal/api"
	"github.com/gyaneshwarpardhi/plado/internal/config"
	"github.com/gyaneshwarpardhi/plado/internal/engine"
	"github.com/gyaneshwarpardhi/plado/internal/event"
	"github.com/gyaneshwarpardhi/plado/internal/job"
	"github.com/gyaneshwarpardhi/plado/internal/logging"
	"github.com/gyaneshwarpardhi/plado/internal/remote"
	"github.com/gyaneshwarpardhi/plado/internal/store"
)

// daemon ties the loaded configuration to the running scheduler and keeps
// them in step across reloads.
type daemon struct {
	loader    *config.Loader
	settings  *config.Settings
	scheduler *engine.Scheduler
	logger    *slog.Logger

	// applyMu orders reloads coming from the watcher, SIGHUP and the API.
	applyMu sync.Mutex

	mu      sync.Mutex
	lastDoc *config.Document
	lastErr error
}

// load reads the config file and builds everything that depends on it.
// Any error here is fatal.
func load(path string) (*config.Loader, *config.Settings, []*event.Definition, error) {
	loader, err := config.NewLoader(path, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	settings, err := config.DecodeSettings(loader.Document().Global)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config %s: %w", path, err)
	}
	defs, err := event.BuildAll(loader.Document().Events, defaults(settings))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config %s: %w", path, err)
	}
	return loader, settings, defs, nil
}

func defaults(s *config.Settings) event.Defaults {
	return event.Defaults{PollInterval: s.PollInterval, JobTimeout: s.JobTimeout}
}

func openStore(s *config.Settings) (store.Store, error) {
	if s.StoragePath == "" {
		return store.NewMemory(), nil
	}
	return store.OpenSQLite(s.StoragePath)
}

func runMonitor(ctx context.Context, path, metricsAddr string) error {
	loader, settings, defs, err := load(path)
	if err != nil {
		return err
	}
	logger, err := logging.Setup(settings.LogLevel, settings.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if len(def.Jobs) == 0 {
			logger.Warn("event has no jobs, detections are only logged", "definition", def.Name)
		}
	}

	st, err := openStore(settings)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", "err", err)
		}
	}()

	client, err := remote.NewHTTPClient(settings.RemoteURL, settings.RemoteToken, 0)
	if err != nil {
		return err
	}

	dispatcher := job.New(job.Options{
		Workers:    settings.JobWorkers,
		QueueDepth: settings.JobQueueDepth,
		Logger:     logger.With("component", "job"),
	})
	scheduler := engine.New(defs, client, st, dispatcher, engine.Options{
		MaxConcurrency: settings.MaxConcurrency,
		ShutdownGrace:  settings.ShutdownGrace,
		Logger:         logger.With("component", "scheduler"),
	})

	d := &daemon{loader: loader, settings: settings, scheduler: scheduler, logger: logger}
	loader.OnChange(d.apply)
	stopWatch, err := loader.Watch()
	if err != nil {
		logger.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	if err := scheduler.Start(); err != nil {
		return err
	}
	logger.Info("monitoring started", "config", path, "definitions", len(defs),
		"storage", settings.StoragePath, "max_concurrency", settings.MaxConcurrency)

	if metricsAddr == "" {
		metricsAddr = settings.MetricsAddr
	}
	var srv *http.Server
	if metricsAddr != "" {
		srv = &http.Server{
			Addr:         metricsAddr,
			Handler:      api.New(scheduler, dispatcher, d, logger.With("component", "api")),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info("status server starting", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server error", "err", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-hup:
			if err := d.Reload(); err != nil {
				logger.Warn("reload on SIGHUP failed, keeping previous config", "err", err)
			}
		}
	}
	logger.Info("shutting down")

	if srv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutCtx)
		cancel()
	}
	scheduler.Stop()

	jobCtx, cancel := context.WithTimeout(context.Background(), settings.JobTimeout+settings.ShutdownGrace)
	defer cancel()
	if err := dispatcher.Shutdown(jobCtx); err != nil {
		logger.Warn("queued jobs dropped on shutdown", "err", err)
	}
	logger.Info("goodbye")
	return nil
}

// apply swaps in the definitions of a freshly loaded document. A document
// that does not build leaves the running definitions untouched.
func (d *daemon) apply(doc *config.Document) {
	d.applyMu.Lock()
	defer d.applyMu.Unlock()
	err := d.rebuild(doc)
	d.mu.Lock()
	d.lastDoc, d.lastErr = doc, err
	d.mu.Unlock()
	if err != nil {
		d.logger.Warn("hot-reload skipped: config invalid", "path", doc.Path, "err", err)
	}
}

func (d *daemon) rebuild(doc *config.Document) error {
	settings, err := config.DecodeSettings(doc.Global)
	if err != nil {
		return err
	}
	defs, err := event.BuildAll(doc.Events, defaults(d.settings))
	if err != nil {
		return err
	}
	if *settings != *d.settings {
		d.logger.Warn("global settings changed, restart required for them to take effect", "path", doc.Path)
	}
	d.scheduler.Replace(defs)
	d.logger.Info("event definitions reloaded", "definitions", len(defs))
	return nil
}

// Reload re-reads the config file now and reports whether it was applied.
func (d *daemon) Reload() error {
	doc, err := d.loader.Reload()
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastDoc == doc {
		return d.lastErr
	}
	return nil
}
