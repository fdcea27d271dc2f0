package main

import (
	"fmt"

	"github.com/inkwellhq/quotad/bootstrap"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("quotad %s\n", bootstrap.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
