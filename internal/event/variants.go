package event

import (
	"sort"

	"github.com/gyaneshwarpardhi/plado/internal/config"
	"github.com/gyaneshwarpardhi/plado/internal/remote"
)

type kindSpec struct {
	schema   string
	query    func(c *config.Config) remote.Query
	subkinds map[Subkind]rule
}

var kinds = map[Kind]kindSpec{
	KindPR: {
		schema: config.SchemaPR,
		query: func(c *config.Config) remote.Query {
			return remote.Query{Project: c.String("project"), Repository: c.String("repository")}
		},
		subkinds: map[Subkind]rule{
			SubCreate:        created,
			SubUpdate:        changedWatched,
			SubStatusChange:  changed("status"),
			SubDraftOn:       toggled("is_draft", true),
			SubDraftOff:      toggled("is_draft", false),
			SubCommitNewSrc:  changed("source_commit"),
			SubCommitNewDst:  changed("target_commit"),
			SubReviewerAdded: gained("reviewers"),
			SubReviewerVoted: changed("votes"),
			SubComment:       increased("comment_count"),
		},
	},
	KindWorkItem: {
		schema: config.SchemaWorkItem,
		query: func(c *config.Config) remote.Query {
			return remote.Query{
				Project: c.String("project"),
				Teams:   c.Strings("teams"),
				IDs:     c.Strings("work_items"),
			}
		},
		subkinds: map[Subkind]rule{
			SubCreate:      created,
			SubUpdate:      changedWatched,
			SubStateChange: foldChanged("state"),
			SubComment:     increased("comment_count"),
			SubReassigned:  changed("assigned_to"),
		},
	},
	KindBranch: {
		schema: config.SchemaBranch,
		query: func(c *config.Config) remote.Query {
			return remote.Query{
				Project:    c.String("project"),
				Repository: c.String("repository"),
				Branch:     c.String("branch"),
			}
		},
		subkinds: map[Subkind]rule{
			SubCreate:    created,
			SubUpdate:    changedWatched,
			SubCommitNew: changed("commit_id"),
		},
	},
	KindPipeline: {
		schema: config.SchemaPipeline,
		query: func(c *config.Config) remote.Query {
			return remote.Query{Project: c.String("project"), Pipeline: c.String("pipeline")}
		},
		subkinds: map[Subkind]rule{
			SubCreate:       created,
			SubUpdate:       changedWatched,
			SubStatusChange: changed("status", "result"),
		},
	},
}

// Variant is one supported (kind, subkind) pair.
type Variant struct {
	Kind    Kind
	Subkind Subkind
	Schema  string
}

// Variants lists every supported pair, sorted by kind then subkind.
func Variants() []Variant {
	var out []Variant
	for k, spec := range kinds {
		for s := range spec.subkinds {
			out = append(out, Variant{Kind: k, Subkind: s, Schema: spec.schema})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Subkind < out[j].Subkind
	})
	return out
}

func kindNames() []string {
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

func subkindNames(k Kind) []string {
	spec := kinds[k]
	names := make([]string, 0, len(spec.subkinds))
	for s := range spec.subkinds {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}
