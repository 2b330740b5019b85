/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"github.com/spf13/cobra"

	workspace "github.com/suparena/workspace"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wsctl",
		Short:         "Inspect workspace configuration and policy documents",
		Version:       workspace.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	cmd.AddCommand(
		newVersionCmd(),
		newPolicyCmd(),
		newConfigCmd(),
	)

	return cmd
}
