// Package engine drives the monitoring loop: it polls every event definition
// on its own schedule, diffs the result against the store and hands detected
// events to the job dispatcher.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/plado/internal/event"
	"github.com/gyaneshwarpardhi/plado/internal/job"
	"github.com/gyaneshwarpardhi/plado/internal/metrics"
	"github.com/gyaneshwarpardhi/plado/internal/pool"
	"github.com/gyaneshwarpardhi/plado/internal/remote"
	"github.com/gyaneshwarpardhi/plado/internal/store"
)

// Dispatcher receives every detected event that passed its filters.
type Dispatcher interface {
	Dispatch(inst *event.Instance) ([]*job.Future, error)
}

// Options configures a Scheduler.
type Options struct {
	// MaxConcurrency bounds how many definitions are sampled at once.
	MaxConcurrency int
	// ShutdownGrace is how long Stop lets in-flight polls finish before
	// their contexts are cancelled.
	ShutdownGrace time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// Report summarizes one poll of one definition.
type Report struct {
	Definition string
	ObservedAt time.Time
	Entities   int
	Instances  []*event.Instance
	Futures    []*job.Future
}

// Scheduler polls definitions. Polls of one definition never overlap;
// different definitions run concurrently up to MaxConcurrency.
type Scheduler struct {
	client     remote.Client
	store      store.Store
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
	grace      time.Duration
	workers    int

	// replaceMu serializes Replace so that every driver set it installs is
	// stopped by the next one.
	replaceMu sync.Mutex

	mu      sync.Mutex
	drivers map[string]*driver
	running bool
	stopped bool
	runCtx  context.Context
	stopRun context.CancelFunc
	abort   context.CancelFunc
	pool    *pool.Pool[*pollTask]
	wg      sync.WaitGroup
}

type pollTask struct {
	d    *driver
	done chan struct{}
}

// New creates a Scheduler for defs. Nothing runs until Start.
func New(defs []*event.Definition, client remote.Client, st store.Store, dispatcher Dispatcher, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	s := &Scheduler{
		client:     client,
		store:      st,
		dispatcher: dispatcher,
		logger:     opts.Logger,
		now:        opts.Now,
		grace:      opts.ShutdownGrace,
		workers:    opts.MaxConcurrency,
		drivers:    make(map[string]*driver, len(defs)),
	}
	for _, def := range defs {
		s.drivers[def.Name] = newDriver(def)
	}
	metrics.Definitions.Set(float64(len(defs)))
	return s
}

// Start launches one driver goroutine per definition. The first poll of
// each definition happens immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.stopped {
		return errors.New("scheduler already started")
	}
	s.running = true

	pollCtx, abort := context.WithCancel(context.Background())
	s.abort = abort
	s.pool = pool.New(pollCtx, s.workers, s.workers, s.runTask)
	s.runCtx, s.stopRun = context.WithCancel(context.Background())
	for _, d := range s.drivers {
		s.launch(d)
	}
	s.logger.Info("scheduler started", "definitions", len(s.drivers), "max_concurrency", s.workers)
	return nil
}

// launch must be called with s.mu held.
func (s *Scheduler) launch(d *driver) {
	ctx, cancel := context.WithCancel(s.runCtx)
	d.cancel = cancel
	d.done = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.drive(ctx, d)
	}()
	s.logger.Info("monitoring event", "definition", d.def.Name, "kind", d.def.Kind,
		"subkind", d.def.Subkind, "schedule", d.def.ScheduleSpec, "jobs", len(d.def.Jobs))
}

func (s *Scheduler) drive(ctx context.Context, d *driver) {
	defer close(d.done)
	next := s.now()
	for {
		d.setNext(next)
		if wait := next.Sub(s.now()); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return
		}

		started := s.now()
		t := &pollTask{d: d, done: make(chan struct{})}
		if err := s.pool.SubmitWait(ctx, t); err != nil {
			return
		}
		<-t.done
		// A poll that overran its slot yields a next time in the past, which
		// polls again right away instead of replaying the missed ticks.
		next = d.def.Schedule.Next(started)
	}
}

func (s *Scheduler) runTask(ctx context.Context, t *pollTask) {
	defer close(t.done)
	if ctx.Err() != nil {
		return
	}
	_, _ = s.poll(ctx, t.d)
}

// Poll runs one poll of the named definition synchronously. It waits for any
// poll of the same definition already in flight.
func (s *Scheduler) Poll(ctx context.Context, name string) (*Report, error) {
	s.mu.Lock()
	d, ok := s.drivers[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown event definition %q", name)
	}
	return s.poll(ctx, d)
}

func (s *Scheduler) poll(ctx context.Context, d *driver) (report *Report, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	def := d.def
	start := s.now()
	observedAt := start
	if !observedAt.After(d.lastObserved) {
		observedAt = d.lastObserved.Add(time.Nanosecond)
	}
	d.lastObserved = observedAt
	report = &Report{Definition: def.Name, ObservedAt: observedAt}
	logger := s.logger.With("definition", def.Name)

	metrics.PollsInFlight.Inc()
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			err = fmt.Errorf("poll %s panicked: %v", def.Name, r)
			logger.Error("poll panicked", "panic", r, "stack", string(debug.Stack()))
		}
		metrics.PollsInFlight.Dec()
		metrics.PollsTotal.WithLabelValues(def.Name, result).Inc()
		metrics.PollDuration.WithLabelValues(def.Name).Observe(s.now().Sub(start).Seconds())
		d.record(start, result, err, len(report.Instances), report.Entities)
	}()

	snaps, err := def.Sample(ctx, s.client, observedAt)
	if err != nil {
		result = "error"
		var fe *remote.FetchError
		if errors.As(err, &fe) {
			result = "fetch_error"
		}
		logger.Warn("poll failed, retrying next interval", "err", err)
		return report, err
	}
	report.Entities = len(snaps)

	seeding := def.IgnoreExisting && !d.seeded
	for _, snap := range snaps {
		key := store.KeyOf(def.Name, snap)
		prev, err := s.store.Get(ctx, key)
		if err != nil {
			result = "error"
			logger.Error("state store read failed", "entity_id", snap.EntityID, "err", err)
			return report, err
		}
		inst := def.Detect(prev, snap, s.now())
		if prev == nil || !event.Equal(prev.Attributes, snap.Attributes) {
			if err := s.store.Put(ctx, key, snap); err != nil {
				result = "error"
				attrs := []any{"entity_id", snap.EntityID, "err", err}
				if inst != nil {
					// The store was not advanced, so the next poll detects it again.
					attrs = append(attrs, "event_id", inst.ID, "dropped", true)
					metrics.DispatchFailures.WithLabelValues(def.Name, "store").Inc()
				}
				logger.Error("state store write failed", attrs...)
				return report, err
			}
		}
		if inst == nil {
			continue
		}
		if seeding {
			logger.Debug("ignoring existing entity", "entity_id", snap.EntityID)
			continue
		}
		report.Instances = append(report.Instances, inst)
		report.Futures = append(report.Futures, s.handle(logger, inst)...)
	}
	d.seeded = true
	logger.Debug("poll complete", "entities", report.Entities, "events", len(report.Instances))
	return report, nil
}

// handle filters and dispatches one instance. Failures are logged and
// counted; they never fail the poll.
func (s *Scheduler) handle(logger *slog.Logger, inst *event.Instance) []*job.Future {
	def := inst.Definition
	logger = logger.With("event_id", inst.ID, "entity_id", inst.EntityID)
	metrics.EventsDetected.WithLabelValues(def.Name).Inc()

	ok, err := def.Accept(inst)
	if err != nil {
		metrics.DispatchFailures.WithLabelValues(def.Name, "filter").Inc()
		logger.Warn("event filter failed, jobs not run", "err", err)
		return nil
	}
	if !ok {
		metrics.EventsFiltered.WithLabelValues(def.Name).Inc()
		logger.Debug("event rejected by filters")
		return nil
	}
	if len(def.Jobs) == 0 || s.dispatcher == nil {
		logger.Info("event detected", "changed", inst.Changed)
		return nil
	}
	futures, err := s.dispatcher.Dispatch(inst)
	if err != nil {
		logger.Error("event dispatch failed", "err", err)
		return nil
	}
	logger.Info("event dispatched", "changed", inst.Changed, "jobs", len(futures))
	return futures
}

// Replace swaps the monitored definitions. Definitions keep their
// observation history and store entries by name. Safe to call while running.
func (s *Scheduler) Replace(defs []*event.Definition) {
	s.replaceMu.Lock()
	defer s.replaceMu.Unlock()

	s.mu.Lock()
	old := s.drivers
	s.mu.Unlock()

	// Stop old drivers outside the lock; each may be finishing a poll.
	if s.isRunning() {
		for _, d := range old {
			d.stop()
		}
	}

	next := make(map[string]*driver, len(defs))
	for _, def := range defs {
		nd := newDriver(def)
		if od, ok := old[def.Name]; ok {
			nd.inherit(od)
		}
		next[def.Name] = nd
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers = next
	if s.running && !s.stopped {
		for _, d := range next {
			s.launch(d)
		}
	}
	metrics.Definitions.Set(float64(len(next)))
	s.logger.Info("event definitions replaced", "definitions", len(next))
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && !s.stopped
}

// Stop halts scheduling. In-flight polls get ShutdownGrace to finish, after
// which their contexts are cancelled. Events detected by those polls are
// still handed to the dispatcher. Stop returns once every driver has exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running || s.stopped {
		s.stopped = true
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.stopRun()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn("shutdown grace period elapsed, aborting in-flight polls", "grace", s.grace)
		s.abort()
		<-done
	}
	s.abort()
	s.pool.Drain()
	s.logger.Info("scheduler stopped")
}

// Names returns the monitored definition names in sorted order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.drivers))
	for name := range s.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definition returns the named definition.
func (s *Scheduler) Definition(name string) (*event.Definition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[name]
	if !ok {
		return nil, false
	}
	return d.def, true
}

// Store returns the state store the scheduler diffs against.
func (s *Scheduler) Store() store.Store { return s.store }
