package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newEntitiesCmd(build exchangeFactory, global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the entities records can be imported into or deleted from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := build(global)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range x.Entities() {
				if global.json {
					if err := writeJSONLine(out, e); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", e.Name, e.Slug, e.Doctype, strings.Join(e.FieldNames(), ","))
			}
			return nil
		},
	}
}
