package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/docudata/pkg/export"
	"github.com/hazyhaar/docudata/pkg/session"
)

var historyRun int64

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded searches, or the results of one with --run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.HistoryDB == "" {
			return errors.New("no history database configured (--history or history_db)")
		}
		h, err := export.OpenHistory(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer h.Close()
		return runHistory(cmd.OutOrStdout(), h, historyRun)
	},
}

func init() {
	historyCmd.Flags().Int64Var(&historyRun, "run", 0, "run id whose results to print")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(w io.Writer, h *export.History, run int64) error {
	if run > 0 {
		views, err := h.Results(run)
		if err != nil {
			return err
		}
		renderResponse(w, session.Response{Results: views, Total: len(views)})
		return nil
	}
	runs, err := h.Runs()
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run", "When", "Dataset", "Results", "Query"})
	for _, r := range runs {
		table.Append([]string{
			strconv.FormatInt(r.ID, 10),
			time.Unix(r.CreatedAt, 0).Format(time.DateTime),
			orDash(r.Dataset),
			strconv.Itoa(r.Results),
			r.Query,
		})
	}
	table.Render()
	fmt.Fprintf(w, "%d runs\n", len(runs))
	return nil
}
