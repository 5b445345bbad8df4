package queue_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tombee/trackerbridge/internal/queue"
	"github.com/tombee/trackerbridge/pkg/sourcetracker"
)

func newBackend(t *testing.T) (*queue.FileBackend, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := queue.NewFileBackend("file://" + dir)
	require.NoError(t, err)
	return backend, dir
}

func itemFor(bugID int, when time.Time, action string) queue.Item {
	return queue.Item{
		Payload: sourcetracker.WebhookRequest{
			Bug:   sourcetracker.Bug{ID: bugID},
			Event: sourcetracker.Event{Time: when, Action: action},
		},
	}
}

func TestParseDSN_RejectsNonFileScheme(t *testing.T) {
	_, err := queue.ParseDSN("postgres://localhost/db")
	require.Error(t, err)
}

func TestFileBackend_PutGetOrdersByTimestamp(t *testing.T) {
	backend, _ := newBackend(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, backend.Put(itemFor(1, base.Add(2*time.Minute), "modify")))
	require.NoError(t, backend.Put(itemFor(1, base, "create")))
	require.NoError(t, backend.Put(itemFor(1, base.Add(time.Minute), "modify")))

	items, errs := backend.Get(1)
	require.Empty(t, errs)
	require.Len(t, items, 3)
	require.True(t, items[0].Timestamp().Equal(base))
	require.True(t, items[1].Timestamp().Equal(base.Add(time.Minute)))
	require.True(t, items[2].Timestamp().Equal(base.Add(2 * time.Minute)))
}

func TestFileBackend_RemoveLastItemRemovesDirectory(t *testing.T) {
	backend, dir := newBackend(t)
	item := itemFor(1, time.Now(), "create")
	require.NoError(t, backend.Put(item))

	size, err := backend.Size(1)
	require.NoError(t, err)
	require.Equal(t, 1, size)

	require.NoError(t, backend.Remove(1, item.Identifier()))

	size, err = backend.Size(1)
	require.NoError(t, err)
	require.Equal(t, 0, size)

	_, statErr := os.Stat(filepath.Join(dir, "1"))
	require.True(t, os.IsNotExist(statErr))
}

func TestFileBackend_RemoveIsIdempotent(t *testing.T) {
	backend, _ := newBackend(t)
	require.NoError(t, backend.Remove(1, "nonexistent"))
}

func TestFileBackend_GetAllReportsCorruptFileWithoutHalting(t *testing.T) {
	backend, dir := newBackend(t)
	require.NoError(t, backend.Put(itemFor(1, time.Now(), "create")))
	require.NoError(t, backend.Put(itemFor(2, time.Now(), "create")))

	list, err := backend.List(1)
	require.NoError(t, err)
	require.Len(t, list, 1)

	corruptPath := filepath.Join(dir, strconv.Itoa(1), list[0]+".json")
	require.NoError(t, os.WriteFile(corruptPath, []byte("not json"), 0o640))

	all, errs := backend.GetAll()
	require.NotEmpty(t, errs)
	require.Len(t, all[2], 1)
}

func TestFileBackend_Ping(t *testing.T) {
	backend, _ := newBackend(t)
	require.NoError(t, backend.Ping())
}

func TestFileBackend_Clear(t *testing.T) {
	backend, _ := newBackend(t)
	require.NoError(t, backend.Put(itemFor(1, time.Now(), "create")))
	require.NoError(t, backend.Put(itemFor(2, time.Now(), "create")))

	require.NoError(t, backend.Clear())

	all, err := backend.ListAll()
	require.NoError(t, err)
	require.Empty(t, all)
}
