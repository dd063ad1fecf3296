package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/tokentimer/internal/schedule"
	"github.com/goodtune/tokentimer/internal/service"
	"github.com/goodtune/tokentimer/internal/settings"
	"github.com/spf13/cobra"
)

var (
	grantTokens     int
	grantDate       string
	grantTitle      string
	grantNotes      string
	grantRecurrence string
	grantMax        int
	grantInactive   bool
)

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Manage scheduled token grants",
	Long: `Scheduled grants credit the wallet on a daily, weekly or monthly
recurrence. Periods missed while the daemon was not running are credited
together the next time grants are processed.`,
}

var grantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled grants",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		printGrants(a.svc.ScheduledGrants(), a.loc)
		return nil
	}),
}

var grantAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a scheduled grant",
	Example: `  tokentimer grant add --tokens 4 --recurrence daily --date "2025-07-22 07:00" --title "School day"
  tokentimer grant add --tokens 8 --recurrence weekly --date 2025-07-26 --max 12`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		recurrence, err := schedule.ParseRecurrence(grantRecurrence)
		if err != nil {
			return err
		}
		date, err := parseGrantDate(grantDate, a.loc)
		if err != nil {
			return err
		}

		g := schedule.Grant{
			TokenCount:    grantTokens,
			ScheduledDate: date,
			Title:         grantTitle,
			Notes:         grantNotes,
			Recurrence:    recurrence,
			IsActive:      !grantInactive,
		}
		if grantMax > 0 {
			g.MaxWalletTokens = settings.Limit(grantMax)
		}

		added, err := a.svc.AddScheduledGrant(ctx, g)
		if err != nil {
			return err
		}
		green.Printf("Added grant %s\n", added.ID)
		return nil
	}),
}

var grantUpdateCmd = &cobra.Command{
	Use:   "update [flags] ID",
	Short: "Change a scheduled grant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			g, err := findGrant(a, args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("tokens") {
				g.TokenCount = grantTokens
			}
			if flags.Changed("date") {
				if g.ScheduledDate, err = parseGrantDate(grantDate, a.loc); err != nil {
					return err
				}
			}
			if flags.Changed("title") {
				g.Title = grantTitle
			}
			if flags.Changed("notes") {
				g.Notes = grantNotes
			}
			if flags.Changed("recurrence") {
				if g.Recurrence, err = schedule.ParseRecurrence(grantRecurrence); err != nil {
					return err
				}
			}
			if flags.Changed("max") {
				g.MaxWalletTokens = nil
				if grantMax > 0 {
					g.MaxWalletTokens = settings.Limit(grantMax)
				}
			}
			if flags.Changed("inactive") {
				g.IsActive = !grantInactive
			}

			if err := a.svc.UpdateScheduledGrant(ctx, g); err != nil {
				return err
			}
			green.Printf("Updated grant %s\n", g.ID)
			return nil
		})(cmd, args)
	},
}

var grantRemoveCmd = &cobra.Command{
	Use:     "remove ID",
	Aliases: []string{"rm"},
	Short:   "Delete a scheduled grant",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.svc.RemoveScheduledGrant(ctx, args[0]); err != nil {
				return err
			}
			green.Printf("Removed grant %s\n", args[0])
			return nil
		})(cmd, args)
	},
}

var grantToggleCmd = &cobra.Command{
	Use:   "toggle ID",
	Short: "Enable or disable a scheduled grant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			active, err := a.svc.ToggleScheduledGrant(ctx, args[0])
			if err != nil {
				return err
			}
			if active {
				green.Printf("Grant %s enabled\n", args[0])
			} else {
				yellow.Printf("Grant %s disabled\n", args[0])
			}
			return nil
		})(cmd, args)
	},
}

func init() {
	for _, c := range []*cobra.Command{grantAddCmd, grantUpdateCmd} {
		c.Flags().IntVar(&grantTokens, "tokens", 0, "Tokens credited per period")
		c.Flags().StringVar(&grantDate, "date", "", "First fire time (YYYY-MM-DD or \"YYYY-MM-DD HH:MM\")")
		c.Flags().StringVar(&grantTitle, "title", "", "Short label")
		c.Flags().StringVar(&grantNotes, "notes", "", "Free-form notes")
		c.Flags().StringVar(&grantRecurrence, "recurrence", "weekly", "daily, weekly or monthly")
		c.Flags().IntVar(&grantMax, "max", 0, "Wallet cap for this grant (0 for none)")
		c.Flags().BoolVar(&grantInactive, "inactive", false, "Create or mark the grant as disabled")
	}
	grantAddCmd.MarkFlagRequired("tokens")
	grantAddCmd.MarkFlagRequired("date")

	grantCmd.AddCommand(grantListCmd)
	grantCmd.AddCommand(grantAddCmd)
	grantCmd.AddCommand(grantUpdateCmd)
	grantCmd.AddCommand(grantRemoveCmd)
	grantCmd.AddCommand(grantToggleCmd)
	rootCmd.AddCommand(grantCmd)
}

func findGrant(a *app, id string) (schedule.Grant, error) {
	for _, gs := range a.svc.ScheduledGrants() {
		if gs.ID == id {
			return gs.Grant, nil
		}
	}
	return schedule.Grant{}, fmt.Errorf("grant %s: %w", id, schedule.ErrGrantNotFound)
}

// parseGrantDate accepts a date or a date and time in loc
func parseGrantDate(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or \"YYYY-MM-DD HH:MM\"", s)
}

func printGrants(grants []service.GrantStatus, loc *time.Location) {
	printHeader("SCHEDULED GRANTS")

	if len(grants) == 0 {
		fmt.Println("No scheduled grants")
	}
	for i, g := range grants {
		if i > 0 {
			fmt.Println()
		}
		cyan.Printf("%s", g.ID)
		if g.Title != "" {
			fmt.Printf("  %s", g.Title)
		}
		fmt.Println()

		fmt.Printf("Tokens:     %d %s\n", g.TokenCount, g.Recurrence)
		if g.IsActive {
			green.Println("Status:     ACTIVE")
		} else {
			yellow.Println("Status:     DISABLED")
		}
		if g.Next != nil {
			fmt.Printf("Next:       %s (%s)\n", g.Next.In(loc).Format("2006-01-02 15:04"), g.Next.In(loc).Weekday())
		}
		if g.MaxWalletTokens != nil {
			fmt.Printf("Cap:        %d tokens\n", *g.MaxWalletTokens)
		}
		if g.Notes != "" {
			fmt.Printf("Notes:      %s\n", g.Notes)
		}
	}

	printFooter()
}
