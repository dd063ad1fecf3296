package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goodtune/tokentimer/internal/format"
	"github.com/goodtune/tokentimer/internal/wallet"
	"github.com/spf13/cobra"
)

var (
	walletUpToMax    bool
	walletJournalMax int
	walletResetYes   bool
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the token wallet",
	Long:  `Show, credit and reset the token wallet. Each token is worth 15 minutes.`,
}

var walletShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the wallet balance",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		st := a.svc.Status()
		fmt.Printf("%d tokens (%s)\n", st.Balance, format.TotalTime(st.Balance*wallet.MinutesPerToken, st.Settings.TimeDisplay))
		return nil
	}),
}

var walletAddCmd = &cobra.Command{
	Use:   "add [flags] COUNT",
	Short: "Add tokens to the wallet",
	Example: `  tokentimer wallet add 4
  tokentimer wallet add --up-to-max 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := strconv.Atoi(args[0])
		if err != nil || count <= 0 {
			return fmt.Errorf("invalid token count: %s", args[0])
		}
		return withApp(func(ctx context.Context, a *app) error {
			if walletUpToMax {
				added, err := a.svc.AddTokensUpToMax(ctx, count)
				if err != nil {
					return err
				}
				if added < count {
					yellow.Printf("Wallet cap reached: added %d of %d tokens\n", added, count)
				}
			} else if _, err := a.svc.AddTokens(ctx, count); err != nil {
				return err
			}
			green.Printf("Balance: %d tokens\n", a.svc.Status().Balance)
			return nil
		})(cmd, args)
	},
}

var walletResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Set the balance to zero",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		if !walletResetYes {
			return fmt.Errorf("refusing to reset the wallet without --yes")
		}
		a.svc.ResetWallet(ctx)
		green.Println("Wallet reset")
		return nil
	}),
}

var walletJournalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recent wallet movements",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		entries, err := a.svc.Journal(ctx, walletJournalMax)
		if err != nil {
			return err
		}

		printHeader("WALLET JOURNAL")
		if len(entries) == 0 {
			fmt.Println("No wallet movements recorded")
		}
		for _, e := range entries {
			sign := "+"
			c := green
			if e.Kind == wallet.EntryDebit {
				sign = "-"
				c = red
			}
			fmt.Printf("%s  ", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
			c.Printf("%s%-4d", sign, e.Amount)
			fmt.Printf("  %-8s balance %d\n", e.Reason, e.Balance)
		}
		printFooter()
		return nil
	}),
}

func init() {
	walletAddCmd.Flags().BoolVar(&walletUpToMax, "up-to-max", false, "Stop at the configured wallet cap")
	walletResetCmd.Flags().BoolVar(&walletResetYes, "yes", false, "Confirm the reset")
	walletJournalCmd.Flags().IntVarP(&walletJournalMax, "limit", "n", 20, "Maximum entries to show (0 for all)")

	walletCmd.AddCommand(walletShowCmd)
	walletCmd.AddCommand(walletAddCmd)
	walletCmd.AddCommand(walletResetCmd)
	walletCmd.AddCommand(walletJournalCmd)
	rootCmd.AddCommand(walletCmd)
}
