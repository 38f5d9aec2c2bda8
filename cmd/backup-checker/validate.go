package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the rule file",
	Long:  "Load the rule file and build every rule, failing on the first configuration error.",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, reg, err := loadRegistry(settings.ConfigPath)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK: %d rule(s) in %d environment(s)\n",
		reg.Len(), len(reg.Environments()))
	return nil
}
