// Package cli implements the EcoLearn command-line interface using Cobra.
// Each subcommand maps to one dashboard action or view.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecolearn/ecolearn/internal/daemon"
	"github.com/ecolearn/ecolearn/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "ecolearn",
	Short: "EcoLearn: eco points, streaks and badges",
	Long: `EcoLearn tracks environmental learning progress.
Check in daily, complete missions, take quizzes and join challenges to earn
eco points, level up and unlock badges.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagUser  string
	flagTrack string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "User id or email (default from config [user])")
	rootCmd.PersistentFlags().StringVarP(&flagTrack, "track", "t", "eco", "Progress track: eco or xp")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version
	daemon.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// session is what a user command runs against.
type session struct {
	d     *daemon.Daemon
	user  string
	track domain.Track
}

// withSession opens the runtime, resolves --user and --track, runs fn and
// flushes queued remote pushes before returning.
func withSession(cmd *cobra.Command, needUser bool, fn func(ctx context.Context, s session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	track, err := domain.ParseTrack(flagTrack)
	if err != nil {
		return err
	}

	d, err := daemon.New(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(ctx); cerr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", cerr)
		}
	}()

	user := flagUser
	if user == "" {
		user = d.Config.DefaultUser()
	}
	if needUser && user == "" {
		return errors.New("no user: pass --user or set [user] email in config.toml")
	}
	return fn(ctx, session{d: d, user: user, track: track})
}
