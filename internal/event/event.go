// Package event holds the typed event definitions the daemon monitors and the
// values that flow between sampling, detection and dispatch.
package event

import (
	"time"
)

// Kind is the remote entity kind a definition samples.
type Kind string

const (
	KindPR       Kind = "pr"
	KindWorkItem Kind = "work_item"
	KindBranch   Kind = "branch"
	KindPipeline Kind = "pipeline"
)

// Subkind is the transition a definition detects.
type Subkind string

const (
	SubCreate        Subkind = "create"
	SubUpdate        Subkind = "update"
	SubStatusChange  Subkind = "status_change"
	SubStateChange   Subkind = "state_change"
	SubComment       Subkind = "comment"
	SubDraftOn       Subkind = "draft_on"
	SubDraftOff      Subkind = "draft_off"
	SubCommitNewSrc  Subkind = "commit_new_src"
	SubCommitNewDst  Subkind = "commit_new_dst"
	SubReviewerAdded Subkind = "reviewer_added"
	SubReviewerVoted Subkind = "reviewer_voted"
	SubReassigned    Subkind = "reassigned"
	SubCommitNew     Subkind = "commit_new"
)

// Snapshot is the observed state of one entity at one point in time.
type Snapshot struct {
	EntityID   string         `json:"entity_id"`
	Kind       Kind           `json:"kind"`
	Attributes map[string]any `json:"attributes"`
	ObservedAt time.Time      `json:"observed_at"`
}

// Clone returns a deep copy so the caller can hand the snapshot to another
// owner without sharing attribute maps or lists.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Attributes != nil {
		out.Attributes = cloneValue(s.Attributes).(map[string]any)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = cloneValue(x)
		}
		return m
	case []any:
		l := make([]any, len(t))
		for i, x := range t {
			l[i] = cloneValue(x)
		}
		return l
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

// Transition is the pair of snapshots a detection was made from.
// From is nil on the first observation of an entity.
type Transition struct {
	From *Snapshot
	To   Snapshot
}

// Instance is one detected occurrence of a definition's condition.
// It is created only by Definition.Detect and never modified afterwards.
type Instance struct {
	ID         string
	Definition *Definition
	EntityID   string
	Transition Transition
	DetectedAt time.Time
	Fields     map[string]any
	Changed    []string
}

// Job is one external command a definition runs when it fires.
type Job struct {
	Name    string
	Args    []string
	RunDir  string
	Timeout time.Duration
}
