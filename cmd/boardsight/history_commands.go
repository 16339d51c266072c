package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/boardsight/internal/store"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent cups runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				runs, err := st.Runs().List(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("list runs: %w", err)
				}

				out := cmd.OutOrStdout()
				if asJSON {
					if runs == nil {
						runs = []*store.Run{}
					}
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}

				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{
						r.ID,
						r.Status,
						strconv.Itoa(r.Required),
						orDash(r.Result),
						r.StartedAt.Local().Format(time.DateTime),
						runDuration(r),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "Required", "Result", "Started", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newRequestsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var game string

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List recent /process requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				reqs, err := st.Requests().List(cmd.Context(), game, limit)
				if err != nil {
					return fmt.Errorf("list requests: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(reqs) == 0 {
					fmt.Fprintln(out, "No requests recorded")
					return nil
				}

				rows := make([][]string, 0, len(reqs))
				for _, r := range reqs {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						r.Game,
						strconv.Itoa(r.Status),
						orDash(r.Result),
						strconv.FormatInt(r.DurationMs, 10) + "ms",
						r.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Game", "Status", "Result", "Took", "At"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of requests to show")
	cmd.Flags().StringVarP(&game, "game", "g", "", "Only show requests for this game")
	return cmd
}

func runDuration(r *store.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
