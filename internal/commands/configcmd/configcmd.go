// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package configcmd implements the `trackerbridgectl config` subcommands.
package configcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/trackerbridge/internal/action"
	"github.com/tombee/trackerbridge/internal/config"
)

// NewCommand builds the `config` command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate trackerbridge's configuration",
	}
	cmd.AddCommand(newValidateCommand())
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load environment configuration and the action registry, reporting any errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if _, err := action.Load(cfg.Actions.Path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "queue dsn: %s\n", cfg.Queue.DSN)
			fmt.Fprintf(cmd.OutOrStdout(), "retry timeout: %s\n", cfg.Queue.RetryTimeout)
			fmt.Fprintf(cmd.OutOrStdout(), "constant retry: %v\n", cfg.Queue.ConstantRetry)
			fmt.Fprintf(cmd.OutOrStdout(), "bugzilla: %s\n", cfg.Bugzilla.BaseURL)
			fmt.Fprintf(cmd.OutOrStdout(), "jira: %s (user %s)\n", cfg.Jira.BaseURL, cfg.Jira.Username)
			fmt.Fprintf(cmd.OutOrStdout(), "actions loaded from %s\n", cfg.Actions.Path)
			fmt.Fprintln(cmd.OutOrStdout(), "config OK")
			return nil
		},
	}
}
