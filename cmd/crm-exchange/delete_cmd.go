package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/deletebatch"
	"github.com/iota-uz/crm-exchange/modules/crm/services"
)

type deleteOptions struct {
	entity string
	ids    []string
	unlink bool
	yes    bool
}

func newDeleteCmd(build exchangeFactory, global *globalOptions) *cobra.Command {
	var opts deleteOptions

	cmd := &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete records one by one, unlinking referencing documents first",
		Long: "Checks the first id for linked documents. When some are found they can be\n" +
			"unlinked before deleting. Records are deleted in order and the run stops at\n" +
			"the first failure; records deleted before it stay deleted.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ids = args
			x, err := build(global)
			if err != nil {
				return err
			}
			return runDelete(cmd, x, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.entity, "entity", "", "Entity name, slug or doctype (required)")
	cmd.Flags().BoolVar(&opts.unlink, "unlink", false, "Unlink all linked documents without asking")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for the final delete confirmation")
	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func printLinked(w io.Writer, checked string, items []deletebatch.LinkedDocumentRef) {
	fmt.Fprintf(w, "%s is linked to %d document(s):\n", checked, len(items))
	for i, it := range items {
		fmt.Fprintf(w, "  %d. %s %s\n", i+1, it.ReferenceDoctype, it.ReferenceDocname)
	}
}

func runDelete(cmd *cobra.Command, x *services.Exchange, global *globalOptions, opts deleteOptions) error {
	ctx := cmd.Context()
	engine, err := x.Delete(opts.entity)
	if err != nil {
		return withCode(exitUsage, err)
	}

	stderr := cmd.ErrOrStderr()
	st, err := engine.RequestDelete(ctx, opts.ids)
	if err != nil {
		return withCode(exitValidation, err)
	}

	p := newPrompter(cmd.InOrStdin(), stderr)
	for st.Status == deletebatch.StatusAwaitingLinkedItemDecision {
		printLinked(stderr, st.CheckedID, st.LinkedItems)
		proceed := opts.unlink
		if !proceed && !global.noInput {
			proceed = p.confirm("unlink them and continue")
		}
		if !proceed {
			if _, cerr := engine.Cancel(ctx); cerr != nil {
				return withCode(exitFailed, cerr)
			}
			return withCode(exitCancelled, fmt.Errorf("delete cancelled: %s has linked documents", st.CheckedID))
		}

		if opts.yes {
			st, err = engine.UnlinkAndDelete(ctx, st.LinkedItems)
		} else {
			st, err = engine.UnlinkSelected(ctx, st.LinkedItems)
		}
		if errors.Is(err, deletebatch.ErrUnlinkIncomplete) {
			fmt.Fprintln(stderr, err.Error())
			if opts.unlink || global.noInput {
				_, _ = engine.Cancel(ctx)
				return withCode(exitRemote, err)
			}
			continue
		}
		if err != nil {
			return withCode(exitFailed, err)
		}
	}

	if st.Status == deletebatch.StatusAwaitingFinalDeleteConfirm {
		fmt.Fprintln(stderr, st.Message)
		if !global.noInput && !p.confirm("delete %d record(s)", len(st.CandidateIDs)) {
			if _, cerr := engine.Cancel(ctx); cerr != nil {
				return withCode(exitFailed, cerr)
			}
			return withCode(exitCancelled, errors.New("delete cancelled"))
		}
		st, err = engine.ConfirmDelete(ctx)
		if err != nil {
			return withCode(exitFailed, err)
		}
	}

	if global.json {
		if err := writeJSONLine(cmd.OutOrStdout(), st); err != nil {
			return err
		}
	}
	if st.Status == deletebatch.StatusFailed {
		return withCode(exitRemote, errors.New(st.Message))
	}
	if !global.json {
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d record(s)\n", len(st.Deleted))
	}
	return nil
}
