package config

// Schema names used across the daemon.
const (
	SchemaGlobal   = "global"
	SchemaEvent    = "event"
	SchemaJob      = "job"
	SchemaPR       = "event.pr"
	SchemaWorkItem = "event.work_item"
	SchemaBranch   = "event.branch"
	SchemaPipeline = "event.pipeline"
)

func globalFields() []Field {
	return []Field{
		{Name: "remote_url", Types: []Type{String}, Required: true,
			Description: "Base URL of the remote resource feed."},
		{Name: "remote_token", Types: []Type{String},
			Description: "Bearer token sent to the remote resource feed."},
		{Name: "poll_interval", Types: []Type{Int, Float}, Default: 60,
			Description: "Default number of seconds between polls of one event."},
		{Name: "max_concurrency", Types: []Type{Int}, Default: 4,
			Description: "Maximum number of events sampled at the same time."},
		{Name: "job_workers", Types: []Type{Int}, Default: 8,
			Description: "Maximum number of jobs running at the same time."},
		{Name: "job_queue_depth", Types: []Type{Int}, Default: 1000,
			Description: "Number of jobs that may wait for a free worker before new ones are dropped."},
		{Name: "job_timeout", Types: []Type{Int, Float}, Default: 120,
			Description: "Default number of seconds a job may run before it is killed."},
		{Name: "shutdown_grace", Types: []Type{Int, Float}, Default: 10,
			Description: "Seconds in-flight polls get to finish on shutdown."},
		{Name: "storage_path", Types: []Type{String},
			Description: "SQLite file used to keep snapshots across restarts (in-memory when unset)."},
		{Name: "metrics_addr", Types: []Type{String},
			Description: "Listen address for the status and metrics endpoint (disabled when unset)."},
		{Name: "log_level", Types: []Type{String}, Default: "info",
			Description: "One of debug, info, warn, error."},
		{Name: "log_format", Types: []Type{String}, Default: "text",
			Description: "One of text, json."},
		{Name: "events", Types: []Type{List}, Required: true,
			Description: "Ordered list of event definitions to monitor."},
	}
}

func eventFields() []Field {
	return []Field{
		{Name: "kind", Types: []Type{String}, Required: true,
			Description: "Entity kind to watch: pr, work_item, branch, pipeline."},
		{Name: "subkind", Types: []Type{String}, Required: true,
			Description: "Transition to detect, e.g. create, update, status_change."},
		{Name: "name", Types: []Type{String},
			Description: "Optional unique nickname; defaults to <kind>_<subkind>."},
		{Name: "fire_params", Types: []Type{List},
			Description: "Command and argument template run when the event fires, e.g. [\"/bin/echo\", \"{entity_id}\"]."},
		{Name: "jobs", Types: []Type{List},
			Description: "Additional jobs to run when the event fires (see the job schema)."},
		{Name: "poll_interval", Types: []Type{Int, Float},
			Description: "Seconds between polls of this event; overrides the global value."},
		{Name: "schedule", Types: []Type{String},
			Description: "Cron expression or @every descriptor; overrides poll_interval."},
		{Name: "filters", Types: []Type{List},
			Description: "Boolean expressions over event fields that must all hold before jobs run."},
		{Name: "attributes", Types: []Type{List},
			Description: "Attributes watched by update events (all attributes when unset)."},
		{Name: "ignore_existing", Types: []Type{Bool}, Default: false,
			Description: "For create events: record entities seen on the first poll without firing."},
	}
}

func jobFields() []Field {
	return []Field{
		{Name: "args", Types: []Type{List}, Required: true,
			Description: "Command-line arguments to run the job."},
		{Name: "name", Types: []Type{String},
			Description: "An optional nickname to give the job."},
		{Name: "run_dir", Types: []Type{String},
			Description: "Directory from which the job is run."},
		{Name: "timeout", Types: []Type{Int, Float},
			Description: "Seconds the job may run before it is killed; overrides job_timeout."},
	}
}

func prFields() []Field {
	return append(eventFields(),
		Field{Name: "project", Types: []Type{String}, Required: true,
			Description: "Name or ID of the project that contains the pull requests."},
		Field{Name: "repository", Types: []Type{String}, Required: true,
			Description: "Name or ID of the repository that contains the pull requests."},
	)
}

func workItemFields() []Field {
	return append(eventFields(),
		Field{Name: "project", Types: []Type{String}, Required: true,
			Description: "Name or ID of the project that contains the work items."},
		Field{Name: "teams", Types: []Type{List},
			Description: "Names or IDs of the teams whose work items to track."},
		Field{Name: "work_items", Types: []Type{List},
			Description: "IDs of specific work items to track."},
	)
}

func branchFields() []Field {
	return append(eventFields(),
		Field{Name: "project", Types: []Type{String}, Required: true,
			Description: "Name or ID of the project that contains the branches."},
		Field{Name: "repository", Types: []Type{String}, Required: true,
			Description: "Name or ID of the repository that contains the branches."},
		Field{Name: "branch", Types: []Type{String},
			Description: "Name of a single branch to track (all branches when unset)."},
	)
}

func pipelineFields() []Field {
	return append(eventFields(),
		Field{Name: "project", Types: []Type{String}, Required: true,
			Description: "Name or ID of the project that contains the pipelines."},
		Field{Name: "pipeline", Types: []Type{String},
			Description: "Name or ID of a single pipeline to track (all pipelines when unset)."},
	)
}
