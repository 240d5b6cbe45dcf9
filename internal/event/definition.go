package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/gyaneshwarpardhi/plado/internal/config"
	"github.com/gyaneshwarpardhi/plado/internal/filter"
	"github.com/gyaneshwarpardhi/plado/internal/remote"
)

// Schedule yields the next poll time after a poll started at t.
// cron.Schedule satisfies it.
type Schedule interface {
	Next(t time.Time) time.Time
}

// Interval polls at a fixed period. Unlike cron's @every it keeps
// sub-second precision.
type Interval time.Duration

func (i Interval) Next(t time.Time) time.Time { return t.Add(time.Duration(i)) }

func (i Interval) String() string { return "every " + time.Duration(i).String() }

// Defaults are the global values a declaration falls back to.
type Defaults struct {
	PollInterval time.Duration
	JobTimeout   time.Duration
}

// Definition is one declared, validated event to monitor.
type Definition struct {
	Name           string
	Kind           Kind
	Subkind        Subkind
	Config         *config.Config
	Jobs           []Job
	Filters        []*filter.Filter
	Schedule       Schedule
	ScheduleSpec   string
	IgnoreExisting bool
	Query          remote.Query

	explicitName bool
	watch        []string
	rule         rule
}

// Build validates one entry of the "events" list.
func Build(decl map[string]any, d Defaults) (*Definition, error) {
	head := config.NewFromSchema(config.SchemaEvent)
	if err := head.Load(decl); err != nil {
		return nil, err
	}
	kind := Kind(strings.ToLower(strings.TrimSpace(head.String("kind"))))
	spec, ok := kinds[kind]
	if !ok {
		return nil, &config.ValueError{
			Schema: config.SchemaEvent,
			Name:   "kind",
			Reason: fmt.Sprintf("unknown kind %q, want one of [%s]", head.String("kind"), strings.Join(kindNames(), ", ")),
		}
	}
	sub := Subkind(strings.ToLower(strings.TrimSpace(head.String("subkind"))))
	detect, ok := spec.subkinds[sub]
	if !ok {
		return nil, &config.ValueError{
			Schema: spec.schema,
			Name:   "subkind",
			Reason: fmt.Sprintf("unknown subkind %q for kind %s, want one of [%s]",
				head.String("subkind"), kind, strings.Join(subkindNames(kind), ", ")),
		}
	}

	cfg := config.NewFromSchema(spec.schema)
	if err := cfg.Load(decl); err != nil {
		return nil, err
	}

	def := &Definition{
		Name:           cfg.String("name"),
		Kind:           kind,
		Subkind:        sub,
		Config:         cfg,
		IgnoreExisting: cfg.Bool("ignore_existing"),
		Query:          spec.query(cfg),
		watch:          cfg.Strings("attributes"),
		rule:           detect,
	}
	def.explicitName = def.Name != ""
	if !def.explicitName {
		def.Name = fmt.Sprintf("%s_%s", kind, sub)
	}

	var errs []error
	if def.IgnoreExisting && sub != SubCreate {
		errs = append(errs, &config.ValueError{Schema: spec.schema, Name: "ignore_existing",
			Reason: "only applies to create events"})
	}
	if len(def.watch) > 0 && sub != SubUpdate {
		errs = append(errs, &config.ValueError{Schema: spec.schema, Name: "attributes",
			Reason: "only applies to update events"})
	}
	if err := def.buildJobs(cfg, d.JobTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := def.buildFilters(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := def.buildSchedule(cfg, d.PollInterval); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return def, nil
}

func (d *Definition) buildJobs(cfg *config.Config, defaultTimeout time.Duration) error {
	if cfg.Has("fire_params") {
		args := cfg.Strings("fire_params")
		if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
			return &config.ValueError{Schema: cfg.Schema(), Name: "fire_params",
				Reason: "must contain at least the executable"}
		}
		d.Jobs = append(d.Jobs, Job{Name: "fire_params", Args: args, Timeout: defaultTimeout})
	}

	var errs []error
	for i, entry := range cfg.List("jobs") {
		m, ok := entry.(map[string]any)
		if !ok {
			errs = append(errs, &config.ValueError{Schema: cfg.Schema(), Name: "jobs",
				Reason: fmt.Sprintf("entry %d must be an object", i)})
			continue
		}
		jc := config.NewFromSchema(config.SchemaJob)
		if err := jc.Load(m); err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w", i, err))
			continue
		}
		j := Job{
			Name:    jc.String("name"),
			Args:    jc.Strings("args"),
			RunDir:  jc.String("run_dir"),
			Timeout: defaultTimeout,
		}
		if j.Name == "" {
			j.Name = fmt.Sprintf("job_%d", i+1)
		}
		if jc.Has("timeout") {
			j.Timeout = jc.Seconds("timeout")
		}
		if len(j.Args) == 0 || strings.TrimSpace(j.Args[0]) == "" {
			errs = append(errs, &config.ValueError{Schema: config.SchemaJob, Name: "args",
				Reason: fmt.Sprintf("jobs[%d] must contain at least the executable", i)})
			continue
		}
		if j.Timeout <= 0 {
			errs = append(errs, &config.ValueError{Schema: config.SchemaJob, Name: "timeout",
				Reason: fmt.Sprintf("jobs[%d] timeout must be positive", i)})
			continue
		}
		d.Jobs = append(d.Jobs, j)
	}
	return errors.Join(errs...)
}

func (d *Definition) buildFilters(cfg *config.Config) error {
	var errs []error
	for _, src := range cfg.Strings("filters") {
		f, err := filter.Compile(src)
		if err != nil {
			errs = append(errs, &config.ValueError{Schema: cfg.Schema(), Name: "filters", Reason: err.Error()})
			continue
		}
		d.Filters = append(d.Filters, f)
	}
	return errors.Join(errs...)
}

func (d *Definition) buildSchedule(cfg *config.Config, fallback time.Duration) error {
	if expr := strings.TrimSpace(cfg.String("schedule")); expr != "" {
		s, err := cron.ParseStandard(expr)
		if err != nil {
			return &config.ValueError{Schema: cfg.Schema(), Name: "schedule", Reason: err.Error()}
		}
		d.Schedule, d.ScheduleSpec = s, expr
		return nil
	}
	every := fallback
	if cfg.Has("poll_interval") {
		every = cfg.Seconds("poll_interval")
	}
	if every <= 0 {
		return &config.ValueError{Schema: cfg.Schema(), Name: "poll_interval", Reason: "must be positive"}
	}
	iv := Interval(every)
	d.Schedule, d.ScheduleSpec = iv, iv.String()
	return nil
}

// BuildAll validates every declaration and reports all problems at once.
// Explicit names must be unique; derived names that collide get a numeric
// suffix (pr_create, pr_create_2, ...).
func BuildAll(decls []map[string]any, d Defaults) ([]*Definition, error) {
	defs := make([]*Definition, 0, len(decls))
	var errs []error
	for i, decl := range decls {
		def, err := Build(decl, d)
		if err != nil {
			errs = append(errs, fmt.Errorf("events[%d]: %w", i, err))
			continue
		}
		defs = append(defs, def)
	}

	taken := make(map[string]bool, len(defs))
	for _, def := range defs {
		if !def.explicitName {
			continue
		}
		if taken[def.Name] {
			errs = append(errs, &config.ValueError{Schema: config.SchemaEvent, Name: "name",
				Reason: fmt.Sprintf("duplicate event name %q", def.Name)})
		}
		taken[def.Name] = true
	}
	for _, def := range defs {
		if def.explicitName {
			continue
		}
		base, name := def.Name, def.Name
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		def.Name = name
		taken[name] = true
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return defs, nil
}

// Sample fetches the current state of every entity the definition watches.
// Failures are returned as *remote.FetchError. Entities without an id are
// rejected; a repeated id keeps its last state.
func (d *Definition) Sample(ctx context.Context, client remote.Client, observedAt time.Time) ([]Snapshot, error) {
	entities, err := client.Fetch(ctx, string(d.Kind), d.Query)
	if err != nil {
		var fe *remote.FetchError
		if !errors.As(err, &fe) {
			err = &remote.FetchError{Kind: string(d.Kind), Err: err}
		}
		return nil, err
	}

	index := make(map[string]int, len(entities))
	snaps := make([]Snapshot, 0, len(entities))
	for i, e := range entities {
		if e.ID == "" {
			return nil, &remote.FetchError{Kind: string(d.Kind), Err: fmt.Errorf("entity %d has no id", i)}
		}
		s := Snapshot{EntityID: e.ID, Kind: d.Kind, Attributes: e.Attributes, ObservedAt: observedAt}
		if s.Attributes == nil {
			s.Attributes = map[string]any{}
		}
		if at, ok := index[e.ID]; ok {
			snaps[at] = s
			continue
		}
		index[e.ID] = len(snaps)
		snaps = append(snaps, s)
	}
	return snaps, nil
}

// Detect applies the definition's rule to one entity's transition and
// returns the resulting Instance, or nil when nothing qualifies. All
// qualifying changes are reported in a single Instance.
func (d *Definition) Detect(prev *Snapshot, curr Snapshot, now time.Time) *Instance {
	m, ok := d.rule(prev, curr, d.watch)
	if !ok {
		return nil
	}

	fields := make(map[string]any, len(curr.Attributes)+len(m.changed)+len(m.extra)+5)
	for k, v := range curr.Attributes {
		fields[k] = cloneValue(v)
	}
	if prev != nil {
		for _, k := range m.changed {
			fields["prev_"+k] = cloneValue(prev.Attributes[k])
		}
	}
	for k, v := range m.extra {
		fields[k] = v
	}
	fields["entity_id"] = curr.EntityID
	fields["kind"] = string(d.Kind)
	fields["subkind"] = string(d.Subkind)
	fields["event"] = d.Name
	fields["changed"] = strings.Join(m.changed, ",")

	var from *Snapshot
	if prev != nil {
		p := prev.Clone()
		from = &p
	}
	return &Instance{
		ID:         uuid.NewString(),
		Definition: d,
		EntityID:   curr.EntityID,
		Transition: Transition{From: from, To: curr.Clone()},
		DetectedAt: now,
		Fields:     fields,
		Changed:    m.changed,
	}
}

// Accept reports whether inst passes every filter.
func (d *Definition) Accept(inst *Instance) (bool, error) {
	for _, f := range d.Filters {
		ok, err := f.Match(inst.Fields)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
