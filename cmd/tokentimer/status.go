package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/tokentimer/internal/format"
	"github.com/goodtune/tokentimer/internal/service"
	"github.com/goodtune/tokentimer/internal/timer"
	"github.com/goodtune/tokentimer/internal/wallet"
	"github.com/spf13/cobra"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

var (
	cyan   = color.New(color.FgCyan, color.Bold)
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow)
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wallet balance and timer state",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		printStatus(a.svc.Status())
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// printHeader prints a boxed section title
func printHeader(title string) {
	fmt.Println()
	cyan.Println(rule)
	cyan.Println(title)
	cyan.Println(rule)
	fmt.Println()
}

func printFooter() {
	fmt.Println()
	cyan.Println(rule)
	fmt.Println()
}

// printStatus prints the wallet and timer state with colors
func printStatus(st service.Status) {
	display := st.Settings.TimeDisplay

	printHeader("TOKEN TIMER STATUS")

	fmt.Printf("Balance:    %d tokens (%s)\n", st.Balance, format.TotalTime(st.Balance*wallet.MinutesPerToken, display))

	cyan.Print("Timer:      ")
	switch st.State {
	case timer.StateRunning:
		green.Println("RUNNING")
	case timer.StatePaused:
		yellow.Println("PAUSED")
	default:
		fmt.Println("IDLE")
	}

	if st.Session != nil {
		s := st.Session
		fmt.Printf("Session:    %s\n", s.ID)
		fmt.Printf("Tokens:     %d (%s)\n", s.OriginalTokens, format.TotalTime(s.TotalMinutes, display))
		fmt.Printf("Started:    %s\n", s.StartTime.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Remaining:  %s\n", format.Countdown(st.Remaining, display))
		if !s.IsPaused {
			fmt.Printf("Ends:       %s\n", s.EndTime().Local().Format("15:04:05"))
		}
		if st.InGracePeriod {
			yellow.Printf("Grace:      ending now refunds all %d tokens\n", s.OriginalTokens)
		}
	}

	printFooter()
}
