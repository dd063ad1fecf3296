package main

import (
	"context"
	"fmt"

	"github.com/goodtune/tokentimer/internal/format"
	"github.com/goodtune/tokentimer/internal/wallet"
	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest a session size from past usage",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		recs := a.svc.GetRecommendations()
		display := a.svc.Settings().TimeDisplay

		printHeader("RECOMMENDATIONS")
		if len(recs) == 0 {
			fmt.Println("Not enough history yet")
		}
		for i, r := range recs {
			if i > 0 {
				fmt.Println()
			}
			green.Printf("%d tokens", r.SuggestedTokens)
			fmt.Printf(" (%s)  %s\n", format.TotalTime(r.SuggestedTokens*wallet.MinutesPerToken, display), r.Message)
			yellow.Printf("            %s\n", r.Reason)
		}
		printFooter()
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(recommendCmd)
}
