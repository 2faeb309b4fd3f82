package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/export"
	"github.com/hazyhaar/docudata/pkg/session"
	"github.com/hazyhaar/docudata/pkg/units"
)

// source names the data a one-shot command loads into its session.
type source struct {
	Data         string // file path
	Dataset      string // library id
	Encoding     string
	Jurisdiction string // applied to records that carry none
}

func (s *source) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.Data, "data", "", "JSON, YAML or IFC file to load")
	f.StringVar(&s.Dataset, "dataset", "", "library dataset id to load instead of --data")
	f.StringVar(&s.Encoding, "encoding", "", "character encoding of --data (e.g. windows-1252)")
	f.StringVar(&s.Jurisdiction, "default-jurisdiction", "", "jurisdiction for records that carry none")
}

// load fills session id from the source.
func (s source) load(store *session.Store, id string) (catalog.Stats, error) {
	switch {
	case s.Dataset != "" && s.Data != "":
		return catalog.Stats{}, errors.New("--data and --dataset are mutually exclusive")
	case s.Dataset != "":
		return store.LoadDataset(id, s.Dataset)
	case s.Data != "":
		data, err := os.ReadFile(s.Data)
		if err != nil {
			return catalog.Stats{}, err
		}
		return store.Load(id, data, catalog.LoadOptions{
			Name:         filepath.Base(s.Data),
			Encoding:     s.Encoding,
			Jurisdiction: s.Jurisdiction,
			Logger:       logger,
		})
	}
	return catalog.Stats{}, errors.New("one of --data or --dataset is required")
}

type queryOptions struct {
	source
	Jurisdiction string
	System       string
	Limit        int
	Export       string
	JSON         bool
}

var queryOpts queryOptions

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a query against a dataset file or a library dataset",
	Example: `  docudata query --data tower.json "walls greater than 3m height in California"
  docudata query --dataset reference-codes "stairs riser height less than 8 inches"
  docudata query --data tower.json --export doors.xlsx doors`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()
		return runQuery(cmd.OutOrStdout(), store, strings.Join(args, " "), queryOpts)
	},
}

func init() {
	queryOpts.register(queryCmd)
	f := queryCmd.Flags()
	f.StringVar(&queryOpts.Jurisdiction, "jurisdiction", "", "only records of this jurisdiction (plus untagged ones)")
	f.StringVar(&queryOpts.System, "system", "metric", "display units: metric or imperial")
	f.IntVar(&queryOpts.Limit, "limit", 0, "maximum number of results (0 for all)")
	f.StringVar(&queryOpts.Export, "export", "", "write results to a .csv, .json or .xlsx file")
	f.BoolVar(&queryOpts.JSON, "json", false, "print the full response as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(w io.Writer, store *session.Store, text string, o queryOptions) error {
	if o.Limit < 0 {
		return errors.New("--limit must not be negative")
	}
	id := store.Create().ID
	if _, err := o.load(store, id); err != nil {
		return err
	}
	resp, err := store.Search(id, text, session.Options{
		Jurisdiction: o.Jurisdiction,
		System:       units.ParseSystem(o.System),
		Limit:        o.Limit,
	})
	if err != nil {
		return err
	}

	switch {
	case o.Export != "":
		if err := exportFile(o.Export, resp); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %d results to %s\n", resp.Total, o.Export)
	case o.JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		renderResponse(w, resp)
	}
	return nil
}

func exportFile(path string, resp session.Response) error {
	format, err := export.ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(f, format, resp.Results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func renderResponse(w io.Writer, resp session.Response) {
	in := resp.Interpretation
	fmt.Fprintf(w, "target: %s\n", orDash(string(in.Target)))
	fmt.Fprintf(w, "clauses: %s\n", orDash(strings.Join(in.Clauses, ", ")))
	fmt.Fprintf(w, "jurisdiction: %s\n", orDash(in.Jurisdiction))
	fmt.Fprintf(w, "keywords: %s\n", orDash(strings.Join(in.Keywords, " ")))
	for _, warn := range resp.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	fmt.Fprintln(w)

	if resp.Total == 0 {
		fmt.Fprintln(w, "no matching records")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Type", "ID", "Score", "Attributes", "Jurisdiction", "Reference"})
	table.SetAutoWrapText(false)
	for _, r := range export.Rows(resp.Results) {
		table.Append([]string{
			strconv.Itoa(r.Rank),
			r.Type,
			r.ID,
			strconv.FormatFloat(r.Score, 'f', -1, 64),
			r.Matched,
			orDash(r.Jurisdiction),
			orDash(r.CodeReference),
		})
	}
	table.Render()
	fmt.Fprintf(w, "%d results\n", resp.Total)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
