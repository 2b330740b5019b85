/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/suparena/workspace/errors"
	"github.com/suparena/workspace/policy"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Work with initialization policy documents",
	}
	cmd.AddCommand(newPolicyValidateCmd())
	return cmd
}

func newPolicyValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a policy document",
		Args:  cobra.ExactArgs(1),
		RunE:  runPolicyValidate,
	}
	cmd.Flags().StringSlice("kind", nil, "Known kind names; when set, every kind in the document must be one of them")
	return cmd
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	known, _ := cmd.Flags().GetStringSlice("kind")

	doc, err := policy.LoadDocument(args[0])
	if err != nil {
		return err
	}
	if len(known) > 0 {
		for _, name := range slices.Concat(doc.Disabled, doc.Enabled) {
			if !slices.Contains(known, name) {
				return errors.NewUnknownKindError(name)
			}
		}
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d disabled, %d enabled)\n",
		args[0], len(doc.Disabled), len(doc.Enabled))
	return err
}
