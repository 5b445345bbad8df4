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

// Package retry implements the `trackerbridgectl retry` subcommands, meant
// to be driven by an external scheduler (cron, systemd timer) when
// CONSTANT_RETRY is left disabled.
package retry

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/tombee/trackerbridge/internal/action/steps"
	"github.com/tombee/trackerbridge/internal/config"
	"github.com/tombee/trackerbridge/internal/queue"
	"github.com/tombee/trackerbridge/internal/retry"
	"github.com/tombee/trackerbridge/internal/runner"
	actionpkg "github.com/tombee/trackerbridge/internal/action"
	"github.com/tombee/trackerbridge/pkg/sourcetracker"
	"github.com/tombee/trackerbridge/pkg/targettracker"
)

// NewCommand builds the `retry` command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Drive the dead-letter queue's retry pass",
	}
	cmd.AddCommand(newRunOnceCommand())
	return cmd
}

func newRunOnceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run a single retry pass over every queued bug",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := slog.Default()

			registry, err := actionpkg.Load(cfg.Actions.Path)
			if err != nil {
				return err
			}

			source, err := sourcetracker.NewHTTPClient(sourcetracker.Config{
				BaseURL: cfg.Bugzilla.BaseURL,
				APIKey:  cfg.Bugzilla.APIKey,
			})
			if err != nil {
				return err
			}

			target, err := targettracker.NewHTTPClient(targettracker.Config{
				BaseURL:  cfg.Jira.BaseURL,
				Username: cfg.Jira.Username,
				APIKey:   cfg.Jira.APIKey,
			})
			if err != nil {
				return err
			}

			targetHost := ""
			if u, err := url.Parse(cfg.Jira.BaseURL); err == nil {
				targetHost = u.Host
			}

			backend, err := queue.NewFileBackend(cfg.Queue.DSN)
			if err != nil {
				return err
			}

			r := runner.Runner{
				Registry:   registry,
				TargetHost: targetHost,
				Logger:     logger,
				Clients: steps.Clients{
					Source:     source,
					Target:     target,
					TargetHost: targetHost,
					FaviconURL: cfg.Bugzilla.BaseURL + "/favicon.ico",
					Logger:     logger,
				},
			}

			worker := &retry.Worker{
				Queue:        backend,
				RetryTimeout: cfg.Queue.RetryTimeout,
				Logger:       logger,
				Run: func(ctx context.Context, item queue.Item) error {
					_, _, err := r.Execute(ctx, item.Payload)
					return err
				},
			}
			worker.RunOnce(cmd.Context())
			return nil
		},
	}
}
