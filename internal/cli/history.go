package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/graphcache/internal/store"
	"github.com/roach88/graphcache/internal/value"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database  string
	ChangeSet string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [entity-key]",
		Short: "Show the change-set journal",
		Long: `Read saved change sets back from the store journal.

Without arguments, lists every change set in commit order. With an entity
key such as Customer-1, lists the journaled changes of that entity. With
--changeset, prints the entries of one change set.

Examples:
  graphcache history --db ./cache.db
  graphcache history --db ./cache.db Customer-1
  graphcache history --db ./cache.db --changeset 3f2a...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return runHistory(opts, key, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.ChangeSet, "changeset", "", "show a single change set")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, key string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	st, err := store.Open(opts.Database, store.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	switch {
	case opts.ChangeSet != "":
		rec, found, err := st.ReadChangeSet(ctx, opts.ChangeSet)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read change set", err)
		}
		if !found {
			return f.Error(ExitFailure, "E_NOT_FOUND", fmt.Sprintf("change set %s not found", opts.ChangeSet), nil)
		}
		return f.Success(rec, func(w io.Writer) { writeChangeSet(w, rec) })

	case key != "":
		typeName, _, ok := strings.Cut(key, "-")
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid entity key %q: expected Type-value", key))
		}
		entries, err := st.History(ctx, typeName, key)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read history", err)
		}
		return f.Success(entries, func(w io.Writer) {
			if len(entries) == 0 {
				fmt.Fprintf(w, "No history for %s.\n", key)
				return
			}
			for _, en := range entries {
				writeEntry(w, en)
			}
		})

	default:
		recs, err := st.ReadChangeSets(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read change sets", err)
		}
		return f.Success(recs, func(w io.Writer) {
			if len(recs) == 0 {
				fmt.Fprintln(w, "No change sets found.")
				return
			}
			for _, rec := range recs {
				fmt.Fprintf(w, "#%d %s (%d entries)\n", rec.Seq, rec.ID, len(rec.Entries))
			}
		})
	}
}

func writeChangeSet(w io.Writer, rec store.ChangeSetRecord) {
	fmt.Fprintf(w, "#%d %s\n", rec.Seq, rec.ID)
	for _, en := range rec.Entries {
		writeEntry(w, en)
	}
}

func writeEntry(w io.Writer, en store.JournalEntry) {
	vals, _ := value.MarshalCanonical(en.Values)
	fmt.Fprintf(w, "  #%d %s %s %s", en.Seq, en.State, en.Key, vals)
	if en.Original != nil {
		orig, _ := value.MarshalCanonical(en.Original)
		fmt.Fprintf(w, " original=%s", orig)
	}
	fmt.Fprintln(w)
}
