package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/graphcache/internal/cache"
	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/queryir"
	"github.com/roach88/graphcache/internal/value"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	Include  []string
}

// QueryResult is the payload of a query run.
type QueryResult struct {
	Type     string       `json:"type"`
	Entities []entityView `json:"entities"`
	// Included holds entities loaded through --include navigations.
	Included []entityView `json:"included,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <schema-dir> <type> [field=value ...]",
		Short: "Query the store through a session",
		Long: `Select entities of a type whose fields equal the given values, merge
them into a fresh session and print them. The literal value null matches
null fields.

--include loads a navigation of every result, so related entities are
fetched and linked as well.

Example:
  graphcache query ./schema Order customerID=1 --db ./cache.db --include lines`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "navigations to load for each result")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// parseFilter builds an Equals conjunction from field=value arguments.
func parseFilter(t *metadata.EntityType, args []string) (queryir.Predicate, error) {
	var preds []queryir.Predicate
	for _, arg := range args {
		field, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q: expected field=value", arg)
		}
		p, ok := t.DataProperty(field)
		if !ok {
			return nil, fmt.Errorf("filter %q: %s has no property %q", arg, t.Name, field)
		}
		var v value.Value = value.Null{}
		if raw != "null" {
			var err error
			if v, err = value.Coerce(raw, p.Type); err != nil {
				return nil, fmt.Errorf("filter %q: %w", arg, err)
			}
		}
		preds = append(preds, queryir.Equals{Field: field, Value: v})
	}
	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return queryir.And{Predicates: preds}, nil
	}
}

func runQuery(opts *QueryOptions, schemaDir, typeName string, filters []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	ws, err := openWorkspace(ctx, schemaDir, opts.Database, logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	t, ok := ws.reg.Type(typeName)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown entity type %q", typeName))
	}
	filter, err := parseFilter(t, filters)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	q := cache.KeyQuery(t)
	q.Filter = filter
	for _, w := range queryir.Validate(q).Warnings {
		logger.Warn("query is not portable", "warning", w)
	}

	ents, err := ws.session.ExecuteQuery(ctx, ws.store, q, cache.PreserveChanges)
	if err != nil {
		return WrapExitError(ExitCommandError, "query failed", err)
	}

	result := QueryResult{Type: t.Name, Entities: make([]entityView, 0, len(ents))}
	for _, e := range ents {
		result.Entities = append(result.Entities, viewOf(e))
	}
	for _, e := range ents {
		for _, nav := range opts.Include {
			related, err := ws.session.LoadNavigationFrom(ctx, ws.store, e, nav)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("load %s.%s", e.Key(), nav), err)
			}
			for _, r := range related {
				result.Included = append(result.Included, viewOf(r))
			}
		}
	}

	return f.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%d %s entit(ies)\n", len(result.Entities), t.Name)
		for _, v := range result.Entities {
			fmt.Fprintf(w, "  %s\n", v)
		}
		if len(result.Included) > 0 {
			fmt.Fprintf(w, "%d included\n", len(result.Included))
			for _, v := range result.Included {
				fmt.Fprintf(w, "  %s\n", v)
			}
		}
	})
}
