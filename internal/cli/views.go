package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	heatmapCmd.Flags().IntVarP(&heatmapWeeks, "weeks", "w", 16, "Weeks to show")
	activityCmd.Flags().IntVarP(&activityLimit, "limit", "n", 10, "Entries to show")
	leaderboardCmd.Flags().IntVarP(&leaderboardLimit, "limit", "n", 3, "Institutions to show")
	rootCmd.AddCommand(statusCmd, heatmapCmd, activityCmd, leaderboardCmd, catalogCmd)
}

var (
	heatmapWeeks     int
	activityLimit    int
	leaderboardLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show points, level, streak and badges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s session) error {
			pr, err := s.d.Dashboard.Progress(ctx, s.user, s.track)
			if err != nil {
				return err
			}
			renderProgress(cmd.OutOrStdout(), newPainter(cmd.OutOrStdout()), pr)
			return nil
		})
	},
}

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Show the attendance heatmap",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s session) error {
			hm, err := s.d.Dashboard.Heatmap(ctx, s.user, s.track, heatmapWeeks)
			if err != nil {
				return err
			}
			renderHeatmap(cmd.OutOrStdout(), newPainter(cmd.OutOrStdout()), hm)
			return nil
		})
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s session) error {
			items, err := s.d.Dashboard.Activity(ctx, s.user, s.track, activityLimit)
			if err != nil {
				return err
			}
			return renderActivity(cmd.OutOrStdout(), items, time.Now())
		})
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the top institutions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s session) error {
			rows, err := s.d.Dashboard.Leaderboard(ctx, leaderboardLimit)
			if err != nil {
				return err
			}
			return renderLeaderboard(cmd.OutOrStdout(), rows)
		})
	},
}

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	Aliases: []string{"ls"},
	Short:   "List missions, quizzes and challenges",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s session) error {
			return renderCatalog(cmd.OutOrStdout(), newPainter(cmd.OutOrStdout()), s.d.Catalog.Content())
		})
	},
}
