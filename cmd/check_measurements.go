package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkMeasurementsCmd = &cobra.Command{
	Use:   "check-measurements",
	Short: "Email reminders about unfinished measurements",
	Long:  "Finds unfinished measurements due within 3 days, due tomorrow, or just expired, and emails each creator once. Meant to run daily.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "check-measurements")
		if err != nil {
			return err
		}
		defer env.Close()

		sent, err := env.Checker().Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d reminder(s) sent\n", sent)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkMeasurementsCmd)
}
