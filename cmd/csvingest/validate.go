package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"csvingest/internal/config"
)

func newValidateCmd(_ *globals) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Lint a format config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := config.LoadFormat(path)
			if err != nil {
				return err
			}
			issues := config.ValidateFormat(f)
			out := cmd.OutOrStdout()
			for _, iss := range issues {
				fmt.Fprintln(out, iss.Error())
			}
			if config.HasErrors(issues) {
				return errors.Errorf("%s: format has errors", path)
			}
			if len(issues) == 0 {
				fmt.Fprintln(out, "ok")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "format", "", "format config file (.yaml, .yml or .json)")
	_ = cmd.MarkFlagRequired("format")
	return cmd
}
