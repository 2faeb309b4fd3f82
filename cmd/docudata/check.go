package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/docudata/pkg/compliance"
	"github.com/hazyhaar/docudata/pkg/session"
	"github.com/hazyhaar/docudata/pkg/units"
)

type checkOptions struct {
	source
	Against      string
	Jurisdiction string
	System       string
	JSON         bool
	Strict       bool
}

var checkOpts checkOptions

// errNonCompliant makes --strict runs exit non-zero.
var errNonCompliant = errors.New("components are not compliant")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check components against code requirements",
	Long: "Check every component of a dataset against the requirements of its type.\n" +
		"Requirements come from --against, else from the dataset itself, else from\n" +
		"the built-in reference codes.",
	Example: `  docudata check --data tower.json --system imperial
  docudata check --data tower.json --against my-city-codes --strict`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, _, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()
		return runCheck(cmd.OutOrStdout(), store, checkOpts)
	},
}

func init() {
	checkOpts.register(checkCmd)
	f := checkCmd.Flags()
	f.StringVar(&checkOpts.Against, "against", "", "library dataset holding the requirements")
	f.StringVar(&checkOpts.Jurisdiction, "jurisdiction", "", "only apply requirements of this jurisdiction")
	f.StringVar(&checkOpts.System, "system", "metric", "units used in messages: metric or imperial")
	f.BoolVar(&checkOpts.JSON, "json", false, "print the report as JSON")
	f.BoolVar(&checkOpts.Strict, "strict", false, "exit non-zero when a component is non-compliant")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(w io.Writer, store *session.Store, o checkOptions) error {
	id := store.Create().ID
	if _, err := o.load(store, id); err != nil {
		return err
	}
	report, err := store.Compliance(id, o.Against, compliance.Options{
		Jurisdiction: o.Jurisdiction,
		System:       units.ParseSystem(o.System),
	})
	if err != nil {
		return err
	}

	if o.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		renderReport(w, report)
	}
	if o.Strict && len(report.NonCompliant) > 0 {
		return fmt.Errorf("%w: %d of %d", errNonCompliant, len(report.NonCompliant), report.Total())
	}
	return nil
}

func renderReport(w io.Writer, r compliance.Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Status", "Type", "ID", "Details", "Recommendations"})
	table.SetAutoWrapText(false)
	for _, group := range [][]compliance.Finding{r.NonCompliant, r.Warnings, r.Compliant} {
		for _, f := range group {
			table.Append([]string{
				string(f.Status),
				string(f.Component),
				f.ID,
				orDash(strings.Join(f.Details, "; ")),
				orDash(strings.Join(f.Recommendations, "; ")),
			})
		}
	}
	table.Render()
	fmt.Fprintf(w, "%d compliant, %d non-compliant, %d warnings\n",
		len(r.Compliant), len(r.NonCompliant), len(r.Warnings))
	if len(r.Unchecked) > 0 {
		fmt.Fprintf(w, "no requirements for: %s\n", strings.Join(r.Unchecked, ", "))
	}
}
