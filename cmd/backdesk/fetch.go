package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"backdesk/internal/app"
	"backdesk/internal/gateway/remote"
	"backdesk/internal/ingest"
	"backdesk/internal/session"
	"backdesk/internal/workflow"

	"github.com/spf13/cobra"
)

func (c *cli) newManager() (*workflow.Manager, error) {
	catalog, err := app.BuildCatalog(c.cfg.Catalog)
	if err != nil {
		return nil, err
	}
	client, err := remote.NewClient(c.cfg.Remote)
	if err != nil {
		return nil, err
	}
	return workflow.NewManager(client, session.NewMemoryKV(), app.WorkflowOptions(c.cfg, catalog)), nil
}

func (c *cli) fetchCmd() *cobra.Command {
	var (
		form     ingest.FetchForm
		out      string
		download bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch historical data from the service and save it as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := c.newManager()
			if err != nil {
				return err
			}
			sess := mgr.Create()
			info, err := sess.Fetch(cmd.Context(), form)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d records (%s .. %s), %d dropped\n",
				info.Ticker, info.Interval, info.Count, info.First, info.Last, info.Dropped)

			var data []byte
			name := fmt.Sprintf("%s_historical.json", info.Ticker)
			if download {
				file, err := sess.Download(cmd.Context())
				if err != nil {
					return err
				}
				data, name = file.Data, file.Name
			} else {
				ds, _ := sess.Dataset(cmd.Context())
				if data, err = json.MarshalIndent(ds, "", "  "); err != nil {
					return err
				}
			}
			path := out
			if path == "" {
				path = name
			} else if st, err := os.Stat(path); err == nil && st.IsDir() {
				path = filepath.Join(path, name)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&form.Ticker, "ticker", "t", "", "ticker symbol")
	f.StringVar(&form.StartDate, "start", "", "start date (YYYY-MM-DD)")
	f.StringVar(&form.EndDate, "end", "", "end date (default today)")
	f.StringVarP(&form.Interval, "interval", "i", "", "bar interval (default from config)")
	f.StringVarP(&out, "out", "o", "", "output file or directory")
	f.BoolVar(&download, "download", false, "save the file produced by the service download endpoint")
	return cmd
}
