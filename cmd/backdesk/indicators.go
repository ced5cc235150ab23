package main

import (
	"fmt"
	"strings"

	"backdesk/internal/app"
	"backdesk/internal/indicator"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func (c *cli) indicatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indicators",
		Short: "List the indicator catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := app.BuildCatalog(c.cfg.Catalog)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"ID", "Name", "Parameters"})
			table.SetAutoWrapText(false)
			for _, d := range catalog.List() {
				table.Append([]string{d.ID, d.Label, describeParams(d.Params)})
			}
			table.Render()
			return nil
		},
	}
}

func describeParams(params []indicator.ParamSpec) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		s := fmt.Sprintf("%s=%s", p.Name, p.Default)
		if p.Min != nil && p.Max != nil {
			s += fmt.Sprintf(" [%g..%g]", *p.Min, *p.Max)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}
