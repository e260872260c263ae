package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/importjob"
	"github.com/iota-uz/crm-exchange/modules/crm/services"
)

type importOptions struct {
	entity            string
	file              string
	mappings          []string
	acceptSuggestions bool
}

func newImportCmd(build exchangeFactory, global *globalOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Upload a CSV or XLSX file and start the import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.file = args[0]
			x, err := build(global)
			if err != nil {
				return err
			}
			return runImport(cmd, x, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.entity, "entity", "", "Entity name, slug or doctype (required)")
	cmd.Flags().StringArrayVar(&opts.mappings, "map", nil, "Column mapping as \"Column=field\"; repeatable")
	cmd.Flags().BoolVar(&opts.acceptSuggestions, "accept-suggestions", false, "Use the suggested field for columns without --map")
	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func parseMappings(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, item := range raw {
		col, field, ok := strings.Cut(item, "=")
		col, field = strings.TrimSpace(col), strings.TrimSpace(field)
		if !ok || col == "" || field == "" {
			return nil, fmt.Errorf("invalid --map %q, want Column=field", item)
		}
		out[col] = field
	}
	return out, nil
}

func runImport(cmd *cobra.Command, x *services.Exchange, global *globalOptions, opts importOptions) error {
	ctx := cmd.Context()
	given, err := parseMappings(opts.mappings)
	if err != nil {
		return withCode(exitUsage, err)
	}
	engine, err := x.Import(opts.entity)
	if err != nil {
		return withCode(exitUsage, err)
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("read %s: %w", opts.file, err))
	}

	stderr := cmd.ErrOrStderr()
	engine.Observe(func(st services.ImportState) {
		fmt.Fprintf(stderr, "import %s: %s (%d%%)\n", st.Entity, st.Status, st.Progress)
	})
	defer engine.Observe(nil)

	st, err := engine.BeginImport(ctx, importjob.SourceFile{Name: filepath.Base(opts.file), Data: data})
	if err != nil {
		return withCode(exitValidation, err)
	}

	p := newPrompter(cmd.InOrStdin(), stderr)
	for st.Status == importjob.StatusAwaitingMapping {
		mappings, complete := resolveMappings(p, st.UnmappedColumns, given, opts.acceptSuggestions, global.noInput)
		if !complete {
			if _, cerr := engine.Cancel(ctx); cerr != nil {
				return withCode(exitFailed, cerr)
			}
			return withCode(exitCancelled, errors.New("import cancelled: unmapped columns left"))
		}
		st, err = engine.SubmitMapping(ctx, mappings)
		if errors.Is(err, importjob.ErrMissingMappings) && !global.noInput {
			fmt.Fprintln(stderr, err.Error())
			given = mappings
			continue
		}
		if err != nil {
			_, _ = engine.Cancel(ctx)
			return withCode(exitValidation, err)
		}
	}

	if global.json {
		if err := writeJSONLine(cmd.OutOrStdout(), st); err != nil {
			return err
		}
	}
	if st.Status == importjob.StatusFailed {
		return withCode(exitRemote, errors.New(st.Message))
	}
	if !global.json {
		fmt.Fprintf(cmd.OutOrStdout(), "import started: %s\n", st.Reference)
	}
	return nil
}

// resolveMappings fills a value for every column from the flags, the
// suggestions or the prompt. complete is false when the user gave up.
func resolveMappings(
	p *prompter,
	cols []importjob.UnmappedColumn,
	given map[string]string,
	acceptSuggestions bool,
	noInput bool,
) (map[string]string, bool) {
	out := make(map[string]string, len(cols))
	for _, col := range cols {
		if v := strings.TrimSpace(given[col.ColumnName]); v != "" {
			out[col.ColumnName] = v
			continue
		}
		suggestion := ""
		if col.SuggestedField != nil {
			suggestion = *col.SuggestedField
		}
		if acceptSuggestions && suggestion != "" {
			out[col.ColumnName] = suggestion
			continue
		}
		if noInput {
			return nil, false
		}
		answer, ok := p.ask("map column %q to field [%s] (q to cancel): ", col.ColumnName, suggestion)
		if !ok || answer == "q" {
			return nil, false
		}
		if answer == "" {
			answer = suggestion
		}
		out[col.ColumnName] = answer
	}
	return out, true
}
