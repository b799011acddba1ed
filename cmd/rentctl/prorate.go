package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rentdesk/rentdesk/internal/proration"
	"github.com/spf13/cobra"
)

type prorationFile struct {
	Total  float64               `json:"total"`
	Method string                `json:"method"`
	Rooms  []proration.RoomInput `json:"rooms"`
}

func prorateCmd() *cobra.Command {
	var (
		total  float64
		method string
		rooms  []string
		file   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "prorate",
		Short: "Split a utility bill between rooms",
		Long: `Split a utility bill between the rooms of a unit without a server.

Rooms are given either as repeated --room flags in the form
id:occupants:area_m2, or as a JSON file with total, method and rooms.`,
		Example: `  rentctl prorate --total 120.50 --method mixed --room A:1:12 --room B:2:18
  rentctl prorate --file bill.json --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := prorationFile{Total: total, Method: method}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				if err := json.Unmarshal(data, &in); err != nil {
					return fmt.Errorf("decode %s: %w", file, err)
				}
			} else {
				for _, spec := range rooms {
					r, err := parseRoomSpec(spec)
					if err != nil {
						return err
					}
					in.Rooms = append(in.Rooms, r)
				}
			}

			m, err := proration.ParseMethod(in.Method)
			if err != nil {
				return err
			}
			res, err := proration.Split(in.Total, in.Rooms, m)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "ROOM\tWEIGHT\tPERCENT\tAMOUNT\n")
			for _, s := range res.Shares {
				fmt.Fprintf(tw, "%s\t%g\t%.2f%%\t%.2f\n", s.RoomID, s.Weight, s.Percentage, s.Amount)
			}
			fmt.Fprintf(tw, "TOTAL\t\t\t%.2f\n", res.Total)
			if err := tw.Flush(); err != nil {
				return err
			}
			if res.AppliedMethod != res.RequestedMethod {
				fmt.Fprintf(out, "method %s fell back to %s\n", res.RequestedMethod, res.AppliedMethod)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&total, "total", 0, "bill amount to split")
	cmd.Flags().StringVar(&method, "method", "equal", "equal, by_occupants, by_surface or mixed")
	cmd.Flags().StringArrayVar(&rooms, "room", nil, "room as id:occupants:area_m2 (repeatable)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with total, method and rooms")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.MarkFlagsMutuallyExclusive("file", "room")

	return cmd
}

// parseRoomSpec parses id[:occupants[:area_m2]].
func parseRoomSpec(spec string) (proration.RoomInput, error) {
	parts := strings.Split(spec, ":")
	if len(parts) > 3 || parts[0] == "" {
		return proration.RoomInput{}, fmt.Errorf("invalid room %q: want id:occupants:area_m2", spec)
	}
	r := proration.RoomInput{ID: parts[0]}
	if len(parts) > 1 && parts[1] != "" {
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return proration.RoomInput{}, fmt.Errorf("invalid occupants in room %q: %w", spec, err)
		}
		r.Occupants = n
	}
	if len(parts) > 2 && parts[2] != "" {
		a, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return proration.RoomInput{}, fmt.Errorf("invalid area in room %q: %w", spec, err)
		}
		r.AreaM2 = a
	}
	return r, nil
}
