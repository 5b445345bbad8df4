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

// Package cli builds the trackerbridgectl root command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

// SetVersion records build-time version information for the `version` command.
func SetVersion(v, c string) {
	version, commit = v, c
}

// NewRootCommand creates the root Cobra command for trackerbridgectl.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trackerbridgectl",
		Short: "Operate the trackerbridge dead-letter queue and action registry",
		Long: `trackerbridgectl is the operator CLI for trackerbridge, the one-way
sync bridge between a Bugzilla-style source tracker and a Jira-style target
tracker. Use it to inspect the dead-letter queue, drive an out-of-band
retry pass, and validate configuration before restarting the daemon.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trackerbridgectl %s (commit: %s)\n", version, commit)
		},
	})

	return cmd
}

// HandleExitError prints err to stderr and exits with status 1.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
