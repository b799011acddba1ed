package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rentdesk/rentdesk/pkg/norma43"
	"github.com/spf13/cobra"
)

func norma43Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "norma43",
		Short: "Work with Norma 43 bank statements",
	}
	cmd.AddCommand(norma43InspectCmd())
	return cmd
}

func norma43InspectCmd() *cobra.Command {
	var (
		lenient bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Parse a statement and print its accounts and movements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var opts []norma43.Option
			if lenient {
				opts = append(opts, norma43.Lenient())
			}
			st, err := norma43.Parse(f, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			for _, a := range st.Accounts {
				fmt.Fprintf(out, "account %s  %s  %s..%s  opening %s %s\n",
					a.ID(), a.Name,
					a.StartDate.Format("2006-01-02"), a.EndDate.Format("2006-01-02"),
					a.InitialBalance, a.Currency)

				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "  LINE\tDATE\tVALUE\tAMOUNT\tREF1\tREF2\n")
				for _, m := range a.Movements {
					fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\t%s\n",
						m.Line, m.OperationDate.Format("2006-01-02"), m.ValueDate.Format("2006-01-02"),
						m.Amount, m.Reference1, m.Reference2)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if a.Totals != nil {
					fmt.Fprintf(out, "  closing %s  (%d debits, %d credits)\n",
						a.Totals.FinalBalance, a.Totals.DebitCount, a.Totals.CreditCount)
				}
			}
			for _, w := range st.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			fmt.Fprintf(out, "%d records, %d movements\n", st.RecordCount, len(st.Movements()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&lenient, "lenient", false, "report totals mismatches as warnings instead of failing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parsed statement as JSON")

	return cmd
}
