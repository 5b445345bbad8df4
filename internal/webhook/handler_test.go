package webhook_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tombee/trackerbridge/internal/queue"
	"github.com/tombee/trackerbridge/internal/webhook"
	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
	"github.com/tombee/trackerbridge/pkg/sourcetracker"
)

const validBody = `{
  "webhook_id": 1,
  "webhook_name": "jira-sync",
  "bug": {"id": 42, "summary": "crash", "whiteboard": "[devtest]"},
  "event": {"action": "create", "time": "2026-01-01T00:00:00Z", "target": "bug"}
}`

func newQueueBackend(t *testing.T) *queue.FileBackend {
	t.Helper()
	backend, err := queue.NewFileBackend("file://" + t.TempDir())
	require.NoError(t, err)
	return backend
}

func TestServeHTTP_MalformedEnvelopeReturns422(t *testing.T) {
	backend := newQueueBackend(t)
	handler := &webhook.Handler{Queue: backend, Process: func(*http.Request, sourcetracker.WebhookRequest) error { return nil }}

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(`{"bug": {}}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServeHTTP_ProcessesLiveWhenQueueEmpty(t *testing.T) {
	backend := newQueueBackend(t)
	var processed bool
	handler := &webhook.Handler{
		Queue: backend,
		Process: func(_ *http.Request, request sourcetracker.WebhookRequest) error {
			processed = true
			require.Equal(t, 42, request.Bug.ID)
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(validBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, processed)

	size, err := backend.Size(42)
	require.NoError(t, err)
	require.Equal(t, 0, size)
}

func TestServeHTTP_PostponesWhenQueueNonEmpty(t *testing.T) {
	backend := newQueueBackend(t)
	require.NoError(t, backend.Put(queue.Item{Payload: sourcetracker.WebhookRequest{Bug: sourcetracker.Bug{ID: 42}}}))

	var processed bool
	handler := &webhook.Handler{
		Queue:   backend,
		Process: func(*http.Request, sourcetracker.WebhookRequest) error { processed = true; return nil },
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(validBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, processed, "should postpone rather than process live when queue is non-empty")

	size, err := backend.Size(42)
	require.NoError(t, err)
	require.Equal(t, 2, size)
}

func TestServeHTTP_EnqueuesOnNonIgnoreProcessingError(t *testing.T) {
	backend := newQueueBackend(t)
	handler := &webhook.Handler{
		Queue:   backend,
		Process: func(*http.Request, sourcetracker.WebhookRequest) error { return assertError },
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(validBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	size, err := backend.Size(42)
	require.NoError(t, err)
	require.Equal(t, 1, size)
}

func TestServeHTTP_DoesNotEnqueueOnIgnoreInvalidRequest(t *testing.T) {
	backend := newQueueBackend(t)
	handler := &webhook.Handler{
		Queue: backend,
		Process: func(*http.Request, sourcetracker.WebhookRequest) error {
			return &trackererrors.IgnoreInvalidRequestError{Reason: "no action matched"}
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(validBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	size, err := backend.Size(42)
	require.NoError(t, err)
	require.Equal(t, 0, size)
}

var assertError = &trackererrors.TransientTrackerError{Tracker: "target", Operation: "CreateIssue", Cause: errPlaceholder}

type placeholderErr struct{}

func (placeholderErr) Error() string { return "transient failure" }

var errPlaceholder = placeholderErr{}
