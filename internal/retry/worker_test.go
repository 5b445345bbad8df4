package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tombee/trackerbridge/internal/clock"
	"github.com/tombee/trackerbridge/internal/queue"
	"github.com/tombee/trackerbridge/internal/retry"
	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
	"github.com/tombee/trackerbridge/pkg/sourcetracker"
)

func newBackend(t *testing.T) *queue.FileBackend {
	t.Helper()
	backend, err := queue.NewFileBackend("file://" + t.TempDir())
	require.NoError(t, err)
	return backend
}

func itemFor(bugID int, when time.Time, action string) queue.Item {
	return queue.Item{
		Payload: sourcetracker.WebhookRequest{
			Bug:   sourcetracker.Bug{ID: bugID},
			Event: sourcetracker.Event{Time: when, Action: action},
		},
	}
}

func TestRunOnce_SucceedsRemovesItem(t *testing.T) {
	backend := newBackend(t)
	require.NoError(t, backend.Put(itemFor(1, time.Now(), "create")))

	worker := &retry.Worker{
		Queue:        backend,
		RetryTimeout: 7 * 24 * time.Hour,
		Run:          func(context.Context, queue.Item) error { return nil },
	}
	worker.RunOnce(context.Background())

	size, err := backend.Size(1)
	require.NoError(t, err)
	require.Equal(t, 0, size)
}

func TestRunOnce_HeadOfLineBlocksLaterItemsForSameBug(t *testing.T) {
	backend := newBackend(t)
	base := time.Now()
	require.NoError(t, backend.Put(itemFor(1, base, "create")))
	require.NoError(t, backend.Put(itemFor(1, base.Add(time.Minute), "modify")))

	var attempted []string
	worker := &retry.Worker{
		Queue:        backend,
		RetryTimeout: 7 * 24 * time.Hour,
		Run: func(_ context.Context, item queue.Item) error {
			attempted = append(attempted, item.Identifier())
			return errors.New("transient failure")
		},
	}
	worker.RunOnce(context.Background())

	require.Len(t, attempted, 1, "only the first item for the bug should be attempted once it fails")

	size, err := backend.Size(1)
	require.NoError(t, err)
	require.Equal(t, 2, size, "both items remain queued since the first failed")
}

func TestRunOnce_ExpiredItemsRemovedEvenWhenBugHeadBlocked(t *testing.T) {
	backend := newBackend(t)
	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, backend.Put(itemFor(1, old, "create")))
	require.NoError(t, backend.Put(itemFor(2, time.Now(), "create")))

	worker := &retry.Worker{
		Queue:        backend,
		RetryTimeout: 7 * 24 * time.Hour,
		Run:          func(context.Context, queue.Item) error { return errors.New("should not matter for expired item") },
	}
	worker.RunOnce(context.Background())

	size, err := backend.Size(1)
	require.NoError(t, err)
	require.Equal(t, 0, size, "expired item removed regardless of outcome")
}

func TestRunOnce_IgnoreInvalidRequestRemovesItem(t *testing.T) {
	backend := newBackend(t)
	require.NoError(t, backend.Put(itemFor(1, time.Now(), "create")))

	worker := &retry.Worker{
		Queue:        backend,
		RetryTimeout: 7 * 24 * time.Hour,
		Run: func(context.Context, queue.Item) error {
			return &trackererrors.IgnoreInvalidRequestError{Reason: "no action matched"}
		},
	}
	worker.RunOnce(context.Background())

	size, err := backend.Size(1)
	require.NoError(t, err)
	require.Equal(t, 0, size)
}

func TestStartStop_WhenConstantRetryFalseDoesNothing(t *testing.T) {
	backend := newBackend(t)
	worker := &retry.Worker{Queue: backend, ConstantRetry: false, Run: func(context.Context, queue.Item) error { return nil }}
	worker.Start(context.Background())
	worker.Stop()
}

func TestStartStop_RunsAtLeastOncePerTick(t *testing.T) {
	backend := newBackend(t)
	require.NoError(t, backend.Put(itemFor(1, time.Now(), "create")))

	done := make(chan struct{})
	worker := &retry.Worker{
		Queue:         backend,
		ConstantRetry: true,
		TickInterval:  10 * time.Millisecond,
		RetryTimeout:  7 * 24 * time.Hour,
		Clock:         clock.New(),
		Run: func(context.Context, queue.Item) error {
			select {
			case <-done:
			default:
				close(done)
			}
			return nil
		},
	}

	worker.Start(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not run within timeout")
	}
	worker.Stop()
}
