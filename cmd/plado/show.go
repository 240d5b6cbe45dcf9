package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gyaneshwarpardhi/plado/internal/config"
	"github.com/gyaneshwarpardhi/plado/internal/event"
	"github.com/gyaneshwarpardhi/plado/internal/logging"
)

// printSummary loads the config at path and lists its event definitions.
func printSummary(w io.Writer, path string) error {
	_, settings, defs, err := load(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "config: %s\nremote: %s\n", path, settings.RemoteURL)
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Name", "Kind", "Subkind", "Schedule", "Jobs", "Filters"})
	for _, def := range defs {
		jobs := make([]string, len(def.Jobs))
		for i, j := range def.Jobs {
			jobs[i] = j.Name
		}
		filters := make([]string, len(def.Filters))
		for i, f := range def.Filters {
			filters[i] = f.String()
		}
		tw.AppendRow(table.Row{def.Name, def.Kind, def.Subkind, def.ScheduleSpec,
			strings.Join(jobs, "\n"), strings.Join(filters, "\n")})
	}
	tw.AppendFooter(table.Row{"", "", "", "Total", len(defs)})
	tw.Render()
	return nil
}

// printSchemas lists every configuration key, one table per schema, then
// the kind/subkind combinations an event may declare.
func printSchemas(w io.Writer) {
	for _, s := range config.Schemas() {
		fmt.Fprintf(w, "\n%s: %s\n", s.Name, s.Description)
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.AppendHeader(table.Row{"Key", "Types", "Required", "Default", "Description"})
		for _, f := range s.Fields() {
			types := make([]string, len(f.Types))
			for i, t := range f.Types {
				types[i] = t.String()
			}
			required := ""
			if f.Required {
				required = "yes"
			}
			def := ""
			if f.Default != nil {
				def = fmt.Sprint(f.Default)
			}
			tw.AppendRow(table.Row{f.Name, strings.Join(types, "|"), required, def, f.Description})
		}
		tw.Render()
	}

	fmt.Fprintln(w, "\nevent kinds:")
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Kind", "Subkind", "Schema"})
	for _, v := range event.Variants() {
		tw.AppendRow(table.Row{v.Kind, v.Subkind, v.Schema})
	}
	tw.Render()
}

// envVars documents every variable the daemon reads or hands to jobs.
var envVars = []struct {
	name, scope, desc string
}{
	{config.EnvConfig, "daemon", "Config file used when --config is not given."},
	{logging.EnvDebug, "daemon", "Set to 1 to force debug logging."},
	{"PLADO_EVENT_ID", "job", "Unique ID of the detected event."},
	{"PLADO_EVENT_NAME", "job", "Name of the event definition that fired."},
	{"PLADO_EVENT_KIND", "job", "Entity kind: pr, work_item, branch or pipeline."},
	{"PLADO_EVENT_SUBKIND", "job", "Transition that was detected."},
	{"PLADO_ENTITY_ID", "job", "ID of the entity that changed."},
	{"PLADO_EVENT_JSON", "job", "Every event field as one JSON object."},
	{"PLADO_FIELD_<NAME>", "job", "One variable per event field, name upper-cased."},
}

func printEnv(w io.Writer) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Variable", "Scope", "Description"})
	for _, v := range envVars {
		tw.AppendRow(table.Row{v.name, v.scope, v.desc})
	}
	tw.Render()
}
