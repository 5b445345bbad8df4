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

// Package queue implements the `trackerbridgectl queue` subcommands for
// inspecting and managing the dead-letter queue.
package queue

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tombee/trackerbridge/internal/config"
	"github.com/tombee/trackerbridge/internal/queue"
)

// NewCommand builds the `queue` command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the dead-letter queue",
	}
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newRemoveCommand())
	cmd.AddCommand(newClearCommand())
	return cmd
}

func openBackend() (*queue.FileBackend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return queue.NewFileBackend(cfg.Queue.DSN)
}

func newListCommand() *cobra.Command {
	var bugID int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued items, optionally filtered to one bug",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := openBackend()
			if err != nil {
				return err
			}

			if bugID != 0 {
				items, errs := backend.Get(bugID)
				for _, e := range errs {
					fmt.Fprintln(cmd.ErrOrStderr(), e)
				}
				for _, item := range items {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", bugID, item.Identifier())
				}
				return nil
			}

			all, errs := backend.GetAll()
			for _, e := range errs {
				fmt.Fprintln(cmd.ErrOrStderr(), e)
			}
			bugIDs := make([]int, 0, len(all))
			for id := range all {
				bugIDs = append(bugIDs, id)
			}
			sort.Ints(bugIDs)
			for _, id := range bugIDs {
				for _, item := range all[id] {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", id, item.Identifier())
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&bugID, "bug-id", 0, "Limit listing to a single bug ID")
	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <bug-id> <identifier>",
		Short: "Print the queued payload and error for one item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := openBackend()
			if err != nil {
				return err
			}

			bugID, identifier := 0, args[1]
			if _, err := fmt.Sscanf(args[0], "%d", &bugID); err != nil {
				return fmt.Errorf("invalid bug id %q: %w", args[0], err)
			}

			items, errs := backend.Get(bugID)
			for _, e := range errs {
				fmt.Fprintln(cmd.ErrOrStderr(), e)
			}
			for _, item := range items {
				if item.Identifier() == identifier {
					fmt.Fprintf(cmd.OutOrStdout(), "bug_id: %d\n", bugID)
					fmt.Fprintf(cmd.OutOrStdout(), "identifier: %s\n", item.Identifier())
					fmt.Fprintf(cmd.OutOrStdout(), "enqueued_at: %s\n", item.EnqueuedAt)
					if item.Error != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "error: %s: %s\n", item.Error.Type, item.Error.Description)
					}
					return nil
				}
			}
			return fmt.Errorf("no item %s found for bug %d", identifier, bugID)
		},
	}
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <bug-id> <identifier>",
		Short: "Remove one queued item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := openBackend()
			if err != nil {
				return err
			}

			bugID := 0
			if _, err := fmt.Sscanf(args[0], "%d", &bugID); err != nil {
				return fmt.Errorf("invalid bug id %q: %w", args[0], err)
			}
			return backend.Remove(bugID, args[1])
		},
	}
}

func newClearCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every queued item",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to clear the queue without --yes")
			}
			backend, err := openBackend()
			if err != nil {
				return err
			}
			return backend.Clear()
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the destructive clear operation")
	return cmd
}
