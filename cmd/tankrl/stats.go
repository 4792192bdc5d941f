package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/milk9111/tankrl/store"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var (
		db    string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print a summary of stored episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			st, err := store.Open(db, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			sum, err := st.Summary(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("episodes:            %d\n", sum.Episodes)
			fmt.Printf("successes:           %d\n", sum.Successes)
			fmt.Printf("success rate:        %s\n", orDash(sum.SuccessRate, "%.3f"))
			fmt.Printf("avg time to target:  %s\n", orDash(sum.AverageTimeToTarget, "%.2fs"))
			fmt.Printf("avg reward:          %s\n", orDash(sum.AverageReward, "%.4f"))

			if limit <= 0 {
				return nil
			}
			eps, err := st.ListEpisodes(ctx, limit, 0)
			if err != nil {
				return err
			}
			fmt.Println()
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NUMBER\tRESULT\tREASON\tSCORE\tREWARD\tTICKS\tDURATION")
			for _, ep := range eps {
				result := "failure"
				if ep.Success {
					result = "success"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.4f\t%d\t%.2fs\n",
					ep.Number, result, ep.Reason, ep.FinalScore, ep.TotalReward, ep.Ticks, ep.Duration)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&db, "db", envOr("TANKRL_DB", "tankrl.db"), "SQLite episode store")
	cmd.Flags().IntVar(&limit, "limit", 10, "recent episodes to list")
	return cmd
}

func orDash(v float64, format string) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf(format, v)
}
