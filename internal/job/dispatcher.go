// Package job turns detected events into external process invocations.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/plado/internal/event"
	"github.com/gyaneshwarpardhi/plado/internal/metrics"
	"github.com/gyaneshwarpardhi/plado/internal/pool"
)

const (
	outputTail = 4 << 10
	waitDelay  = 2 * time.Second
)

// Options configures a Dispatcher.
type Options struct {
	Workers    int
	QueueDepth int
	Logger     *slog.Logger
	// Environ supplies the base environment of every job; os.Environ when nil.
	Environ func() []string
}

type task struct {
	inv    *Invocation
	future *Future
}

// Dispatcher runs jobs on a bounded worker pool. Dispatch never waits for a
// job to finish; each job's outcome is logged, counted and published on its
// Future.
type Dispatcher struct {
	pool    *pool.Pool[*task]
	cancel  context.CancelFunc
	logger  *slog.Logger
	environ func() []string
}

// New starts a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cancel:  cancel,
		logger:  opts.Logger,
		environ: opts.Environ,
	}
	d.pool = pool.New(ctx, opts.Workers, opts.QueueDepth, d.run)
	return d
}

// Dispatch renders every job of the instance's definition and queues them.
// If any placeholder is unresolved nothing is queued and a *TemplateError is
// returned. Jobs that find the queue full are recorded as Dropped.
func (d *Dispatcher) Dispatch(inst *event.Instance) ([]*Future, error) {
	def := inst.Definition
	if len(def.Jobs) == 0 {
		return nil, nil
	}

	commands := make([][]string, len(def.Jobs))
	var errs []error
	for i, j := range def.Jobs {
		cmd, err := Render(j.Name, j.Args, inst.Fields)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		commands[i] = cmd
	}
	if err := errors.Join(errs...); err != nil {
		metrics.DispatchFailures.WithLabelValues(def.Name, "template").Inc()
		return nil, err
	}

	env := Environment(inst)
	futures := make([]*Future, 0, len(def.Jobs))
	for i, j := range def.Jobs {
		inv := &Invocation{
			ID:          uuid.NewString(),
			Job:         j.Name,
			Definition:  def.Name,
			EventID:     inst.ID,
			EntityID:    inst.EntityID,
			Command:     commands[i],
			Environment: env,
			Dir:         j.RunDir,
			Timeout:     j.Timeout,
		}
		t := &task{inv: inv, future: newFuture(inv)}
		futures = append(futures, t.future)
		if !d.pool.Submit(t) {
			d.finish(t, Dropped, errors.New("job queue full or closed"))
		}
	}
	d.updateQueueGauge()
	return futures, nil
}

// Shutdown stops accepting jobs and waits for queued and running ones.
// When ctx ends first, jobs that have not started are recorded as Dropped;
// running jobs still finish or hit their own timeout before Shutdown returns.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.pool.Drain()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// QueueLen returns how many jobs are waiting for a worker.
func (d *Dispatcher) QueueLen() int { return d.pool.QueueLen() }

// QueueCap returns the job queue capacity.
func (d *Dispatcher) QueueCap() int { return d.pool.QueueCap() }

// Running returns how many jobs are executing right now.
func (d *Dispatcher) Running() int { return d.pool.Running() }

func (d *Dispatcher) run(ctx context.Context, t *task) {
	defer d.updateQueueGauge()
	if ctx.Err() != nil {
		d.finish(t, Dropped, errors.New("daemon shutting down"))
		return
	}

	inv := t.inv
	runCtx, cancel := jobContext(inv.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, inv.Command[0], inv.Command[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = append(d.environ(), envList(inv.Environment)...)
	out := &tailBuffer{max: outputTail}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = waitDelay
	detach(cmd)

	inv.StartedAt = time.Now()
	if err := cmd.Start(); err != nil {
		inv.EndedAt = time.Now()
		d.finish(t, SpawnError, err)
		return
	}
	d.logger.Debug("job started", "job_id", inv.ID, "job", inv.Job,
		"definition", inv.Definition, "pid", cmd.Process.Pid, "command", inv.Command)

	err := cmd.Wait()
	inv.EndedAt = time.Now()
	inv.Output = out.String()

	var exitErr *exec.ExitError
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		d.finish(t, TimedOut, fmt.Errorf("killed after %s", inv.Timeout))
	case err == nil:
		code := 0
		inv.ExitStatus = &code
		d.finish(t, Success, nil)
	case errors.As(err, &exitErr):
		if code := exitErr.ExitCode(); code >= 0 {
			inv.ExitStatus = &code
		}
		d.finish(t, Failure, err)
	default:
		d.finish(t, Failure, err)
	}
}

// jobContext is detached from the daemon's lifetime: shutdown never kills a
// running job, only its own timeout does.
func jobContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

func (d *Dispatcher) finish(t *task, outcome Outcome, err error) {
	inv := t.inv
	inv.Outcome = outcome
	inv.Err = err

	metrics.JobsTotal.WithLabelValues(inv.Definition, string(outcome)).Inc()
	if !inv.StartedAt.IsZero() && outcome != SpawnError {
		metrics.JobDuration.WithLabelValues(inv.Definition).Observe(inv.Duration().Seconds())
	}

	attrs := []any{
		"job_id", inv.ID,
		"job", inv.Job,
		"definition", inv.Definition,
		"event_id", inv.EventID,
		"entity_id", inv.EntityID,
		"outcome", outcome,
		"duration_ms", inv.Duration().Milliseconds(),
	}
	if inv.ExitStatus != nil {
		attrs = append(attrs, "exit_status", *inv.ExitStatus)
	}
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	switch outcome {
	case Success:
		d.logger.Info("job finished", attrs...)
	default:
		if inv.Output != "" {
			attrs = append(attrs, "output", inv.Output)
		}
		d.logger.Warn("job failed", attrs...)
	}
	t.future.resolve()
}

func (d *Dispatcher) updateQueueGauge() {
	if c := d.pool.QueueCap(); c > 0 {
		metrics.JobQueueUtilization.Set(float64(d.pool.QueueLen()) / float64(c))
	}
}

// Environment returns the variables a job receives in addition to the
// daemon's own environment.
func Environment(inst *event.Instance) map[string]string {
	def := inst.Definition
	env := map[string]string{
		"PLADO_EVENT_ID":      inst.ID,
		"PLADO_EVENT_NAME":    def.Name,
		"PLADO_EVENT_KIND":    string(def.Kind),
		"PLADO_EVENT_SUBKIND": string(def.Subkind),
		"PLADO_ENTITY_ID":     inst.EntityID,
	}
	if data, err := json.Marshal(inst.Fields); err == nil {
		env["PLADO_EVENT_JSON"] = string(data)
	}
	for k, v := range inst.Fields {
		env["PLADO_FIELD_"+envName(k)] = FormatValue(v)
	}
	return env
}

func envName(field string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, field)
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return strings.TrimSpace(string(b.buf)) }
