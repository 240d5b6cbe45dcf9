package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/plado/internal/event"
)

// Status is the externally visible state of one monitored definition.
type Status struct {
	Definition string    `json:"definition"`
	Kind       string    `json:"kind"`
	Subkind    string    `json:"subkind"`
	Schedule   string    `json:"schedule"`
	Jobs       int       `json:"jobs"`
	Polls      uint64    `json:"polls"`
	Failures   uint64    `json:"failures"`
	Events     uint64    `json:"events"`
	Entities   int       `json:"entities"`
	LastPoll   time.Time `json:"last_poll,omitempty"`
	LastResult string    `json:"last_result,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	NextPoll   time.Time `json:"next_poll,omitempty"`
}

// driver owns one definition's poll loop. mu is held for the whole of a
// poll, which is what keeps polls of one definition strictly sequential.
type driver struct {
	def *event.Definition

	mu           sync.Mutex
	lastObserved time.Time
	seeded       bool

	cancel context.CancelFunc
	done   chan struct{}

	statusMu sync.Mutex
	status   Status
}

func newDriver(def *event.Definition) *driver {
	return &driver{
		def: def,
		status: Status{
			Definition: def.Name,
			Kind:       string(def.Kind),
			Subkind:    string(def.Subkind),
			Schedule:   def.ScheduleSpec,
			Jobs:       len(def.Jobs),
		},
	}
}

// inherit carries poll history over from the driver a reload replaces.
func (d *driver) inherit(old *driver) {
	old.mu.Lock()
	d.lastObserved = old.lastObserved
	d.seeded = old.seeded
	old.mu.Unlock()

	old.statusMu.Lock()
	st := old.status
	old.statusMu.Unlock()
	d.status.Polls, d.status.Failures, d.status.Events = st.Polls, st.Failures, st.Events
	d.status.Entities = st.Entities
	d.status.LastPoll, d.status.LastResult, d.status.LastError = st.LastPoll, st.LastResult, st.LastError
}

func (d *driver) stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
}

func (d *driver) setNext(t time.Time) {
	d.statusMu.Lock()
	d.status.NextPoll = t
	d.statusMu.Unlock()
}

func (d *driver) record(at time.Time, result string, err error, events, entities int) {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	d.status.Polls++
	d.status.LastPoll = at
	d.status.LastResult = result
	d.status.LastError = ""
	if err != nil {
		d.status.Failures++
		d.status.LastError = err.Error()
		return
	}
	d.status.Events += uint64(events)
	d.status.Entities = entities
}

func (d *driver) snapshot() Status {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	return d.status
}

// Statuses reports every definition's status in name order.
func (s *Scheduler) Statuses() []Status {
	s.mu.Lock()
	out := make([]Status, 0, len(s.drivers))
	for _, d := range s.drivers {
		out = append(out, d.snapshot())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Definition < out[j].Definition })
	return out
}

// Status reports one definition's status.
func (s *Scheduler) Status(name string) (Status, bool) {
	s.mu.Lock()
	d, ok := s.drivers[name]
	s.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	return d.snapshot(), true
}
