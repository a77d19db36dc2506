package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the trendbot CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("trendbot version %s\n", version)
		fmt.Println("A trend-following spot trading bot for Bithumb altcoins")
		fmt.Println("https://github.com/rustyeddy/trendbot")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
