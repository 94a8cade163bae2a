package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "options-signal",
	Short: "RSI and implied volatility call option signals",
	Long: "Computes RSI from daily closes and the average implied volatility of the nearest\n" +
		"expiration's call chain, and flags BUY_CALL when the stock is oversold and options are cheap.",
	SilenceUsage: true,
}

func init() {
	signalCmd.Flags().Float64("max-iv", 0, "hide calls with implied volatility at or above this value (0.1-1.0, default MAX_IV_FILTER)")

	rootCmd.AddCommand(serveCmd, signalCmd, tickersCmd)
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
