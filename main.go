package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/qw4990/online_index_advisor/cmd"
)

var (
	rootCmd = &cobra.Command{
		Use:   "TiDB-online-index-advisor",
		Short: "TiDB online index advisor",
		Long:  `TiDB online index advisor, which keeps recommending indexes while queries arrive`,
	}
)

func init() {
	cobra.OnInitialize()
	rootCmd.AddCommand(cmd.NewTuneCmd())
	rootCmd.AddCommand(cmd.NewPreCheckCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
