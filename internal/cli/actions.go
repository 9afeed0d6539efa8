package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecolearn/ecolearn/internal/infra/catalog"
)

func init() {
	quizCmd.Flags().StringVarP(&quizAnswers, "answers", "a", "", "Comma-separated option indexes, e.g. 1,2 (use - to skip a question)")
	rootCmd.AddCommand(loginCmd, missionCmd, quizCmd, challengeCmd, refreshCmd)
}

var quizAnswers string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Record today's check-in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s session) error {
			res, err := s.d.Dashboard.Login(ctx, s.user, s.track)
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), newPainter(cmd.OutOrStdout()), "Daily check-in", res)
			fmt.Fprintf(cmd.OutOrStdout(), "Streak: %d\n", res.State.Streak)
			return nil
		})
	},
}

var missionCmd = &cobra.Command{
	Use:   "mission <id>",
	Short: "Complete a mission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s session) error {
			res, err := s.d.Dashboard.CompleteMission(ctx, s.user, s.track, args[0])
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), newPainter(cmd.OutOrStdout()), "Mission "+args[0], res)
			return nil
		})
	},
}

var quizCmd = &cobra.Command{
	Use:   "quiz <id>",
	Short: "Submit quiz answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		answers, err := parseAnswers(quizAnswers)
		if err != nil {
			return err
		}
		return withSession(cmd, true, func(ctx context.Context, s session) error {
			res, err := s.d.Dashboard.FinishQuiz(ctx, s.user, s.track, args[0], answers)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Score: %d/%d (%d%%)\n", res.Correct, res.Total, res.ScorePercent)
			renderResult(cmd.OutOrStdout(), newPainter(cmd.OutOrStdout()), "Quiz "+args[0], res.Result)
			return nil
		})
	},
}

var challengeCmd = &cobra.Command{
	Use:   "challenge <id>",
	Short: "Join a challenge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s session) error {
			res, err := s.d.Dashboard.JoinChallenge(ctx, s.user, s.track, args[0])
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), newPainter(cmd.OutOrStdout()), "Challenge "+args[0], res)
			return nil
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Adopt a higher point total from the remote backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s session) error {
			res, err := s.d.Dashboard.Refresh(ctx, s.user, s.track)
			if err != nil {
				return err
			}
			if res.Effects.PointsAwarded == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Already up to date at %d points.\n", res.State.Points)
				return nil
			}
			renderResult(cmd.OutOrStdout(), newPainter(cmd.OutOrStdout()), "Remote merge", res)
			return nil
		})
	},
}

// parseAnswers turns "1,2,-" into []int{1, 2, Unanswered}.
func parseAnswers(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "-" || p == "" {
			out[i] = catalog.Unanswered
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("answer %d: %q is not an option index", i+1, p)
		}
		out[i] = n
	}
	return out, nil
}
