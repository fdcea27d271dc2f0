package main

import (
	"fmt"

	"github.com/inkwellhq/quotad/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		plans := cfg.BuildPlans()
		fmt.Println("Configuration valid")
		fmt.Printf("  Database: %s (%s)\n", cfg.Database.Driver, cfg.Database.Path)
		fmt.Printf("  Timezone: %s\n", cfg.Quota.Timezone)
		fmt.Printf("  Plans:    %d\n", len(plans))
		for _, p := range plans {
			if p.DailyQuestions.IsUnlimited() {
				fmt.Printf("    %-10s unlimited\n", p.ID)
			} else {
				fmt.Printf("    %-10s %d/day\n", p.ID, int64(p.DailyQuestions))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
