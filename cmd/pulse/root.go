package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "undefined"
	GitHash   = "undefined"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "pulse",
	Short:         "DIGIY Pulse real-time transaction stream",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and is called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to YAML config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMintCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pulse %s (built %s, commit %s)\n", Version, BuildTime, GitHash)
		},
	}
}
