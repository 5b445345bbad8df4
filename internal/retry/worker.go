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

// Package retry runs the dead-letter queue's replay loop: one pass walks
// every bug's queued items in order, re-executing each through the runner,
// expiring stale entries, and stopping at the first failure per bug so a
// later item never runs ahead of an earlier one.
package retry

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/tombee/trackerbridge/internal/clock"
	"github.com/tombee/trackerbridge/internal/metrics"
	"github.com/tombee/trackerbridge/internal/queue"
	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
)

// Worker runs the retry algorithm against a queue.Backend. Queue is the
// durable backend; Run is called once per queued item and returns an error
// that satisfies errors.As(*errors.IgnoreInvalidRequestError) for permanent
// skips, or any other error to block the rest of that bug's items this pass.
type Worker struct {
	Queue          queue.Backend
	Run            func(ctx context.Context, item queue.Item) error
	RetryTimeout   time.Duration
	ConstantRetry  bool
	TickInterval   time.Duration
	Clock          clock.Clock
	Logger         *slog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func (w *Worker) clockOrReal() clock.Clock {
	if w.Clock != nil {
		return w.Clock
	}
	return clock.New()
}

// RunOnce performs a single pass of the retry algorithm: expire items older
// than RetryTimeout, then for each bug with remaining items, attempt them in
// ascending timestamp order, stopping at the first failure for that bug.
func (w *Worker) RunOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.RetryPassDuration.Observe(time.Since(start).Seconds())
	}()

	cutoff := w.clockOrReal().Now().Add(-w.RetryTimeout)

	all, errs := w.Queue.GetAll()
	for _, err := range errs {
		w.logger().Warn("error reading queue item during retry pass", "error", err)
	}

	failedBugs := make(map[int]bool, len(all))
	for bugID, items := range all {
		for _, item := range items {
			if failedBugs[bugID] {
				continue
			}

			if item.Timestamp().Before(cutoff) {
				w.logger().Warn("expiring queue item past retry timeout", "bug_id", bugID, "identifier", item.Identifier())
				if err := w.Queue.Remove(bugID, item.Identifier()); err != nil {
					w.logger().Error("failed to remove expired queue item", "bug_id", bugID, "error", err)
				}
				continue
			}

			err := w.Run(ctx, item)
			if err == nil {
				if err := w.Queue.Remove(bugID, item.Identifier()); err != nil {
					w.logger().Error("failed to remove processed queue item", "bug_id", bugID, "error", err)
				}
				continue
			}

			var ignore *trackererrors.IgnoreInvalidRequestError
			if trackererrors.As(err, &ignore) {
				w.logger().Warn("dropping permanently invalid queue item", "bug_id", bugID, "identifier", item.Identifier(), "reason", err)
				if removeErr := w.Queue.Remove(bugID, item.Identifier()); removeErr != nil {
					w.logger().Error("failed to remove invalid queue item", "bug_id", bugID, "error", removeErr)
				}
				continue
			}

			w.logger().Warn("queue item failed, blocking remaining items for bug this pass", "bug_id", bugID, "identifier", item.Identifier(), "error", err)
			failedBugs[bugID] = true
		}
	}

	for bugID := range all {
		size, err := w.Queue.Size(bugID)
		if err != nil {
			w.logger().Warn("failed to read queue size for metrics", "bug_id", bugID, "error", err)
			continue
		}
		metrics.QueueSize.WithLabelValues(strconv.Itoa(bugID)).Set(float64(size))
	}
}

// Start begins the ticker loop when ConstantRetry is set, running RunOnce
// repeatedly until Stop is called or ctx is cancelled. If ConstantRetry is
// false, Start does nothing; callers drive RunOnce directly (e.g. a
// `retry run-once` CLI subcommand packaged as a cron job).
func (w *Worker) Start(ctx context.Context) {
	if !w.ConstantRetry {
		return
	}

	w.mu.Lock()
	if w.stopCh != nil {
		w.mu.Unlock()
		return
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop halts the ticker loop started by Start and waits for the in-flight
// pass, if any, to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopCh == nil {
		w.mu.Unlock()
		return
	}
	stopCh := w.stopCh
	doneCh := w.doneCh
	w.stopCh = nil
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (w *Worker) run(ctx context.Context) {
	w.mu.Lock()
	doneCh := w.doneCh
	stopCh := w.stopCh
	w.mu.Unlock()
	defer close(doneCh)

	interval := w.TickInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}
