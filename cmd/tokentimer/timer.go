package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goodtune/tokentimer/internal/format"
	"github.com/goodtune/tokentimer/internal/wallet"
	"github.com/spf13/cobra"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Control the countdown session",
	Long: `Start, pause, resume and end the countdown session. Starting redeems
tokens from the wallet; ending early returns whole unused tokens.`,
}

var timerStartCmd = &cobra.Command{
	Use:     "start TOKENS",
	Short:   "Redeem tokens and start a session",
	Example: `  tokentimer timer start 2`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := strconv.Atoi(args[0])
		if err != nil || tokens <= 0 {
			return fmt.Errorf("invalid token count: %s", args[0])
		}
		return withApp(func(ctx context.Context, a *app) error {
			session, err := a.svc.StartTimer(ctx, tokens)
			if errors.Is(err, wallet.ErrInsufficientTokens) {
				return fmt.Errorf("not enough tokens: have %d, need %d", a.svc.Status().Balance, tokens)
			}
			if err != nil {
				return err
			}
			display := a.svc.Settings().TimeDisplay
			green.Printf("Started %s session, ends at %s\n",
				format.TotalTime(session.TotalMinutes, display),
				session.EndTime().Local().Format("15:04:05"))
			return nil
		})(cmd, args)
	},
}

var timerPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the running session",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		if err := a.svc.PauseTimer(ctx); err != nil {
			return err
		}
		st := a.svc.Status()
		yellow.Printf("Paused with %s remaining\n", format.Countdown(st.Remaining, st.Settings.TimeDisplay))
		return nil
	}),
}

var timerResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the paused session",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		if err := a.svc.ResumeTimer(ctx); err != nil {
			return err
		}
		st := a.svc.Status()
		green.Printf("Resumed, ends at %s\n", st.Session.EndTime().Local().Format("15:04:05"))
		return nil
	}),
}

var timerEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the session early",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		split, ended := a.svc.EndTimerEarly(ctx)
		if !ended {
			fmt.Println("No active session")
			return nil
		}
		if split.InGracePeriod {
			green.Printf("Ended within the grace period, %d tokens returned\n", split.Returned)
			return nil
		}
		fmt.Printf("Ended early: %d tokens returned, %d used\n", split.Returned, split.Redeemed)
		return nil
	}),
}

var timerFastForwardCmd = &cobra.Command{
	Use:    "ffwd",
	Short:  "Make the session finish within seconds",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		if err := a.svc.FastForward(ctx); err != nil {
			return err
		}
		fmt.Println("Session fast-forwarded")
		return nil
	}),
}

func init() {
	timerCmd.AddCommand(timerStartCmd)
	timerCmd.AddCommand(timerPauseCmd)
	timerCmd.AddCommand(timerResumeCmd)
	timerCmd.AddCommand(timerEndCmd)
	timerCmd.AddCommand(timerFastForwardCmd)
	rootCmd.AddCommand(timerCmd)
}
