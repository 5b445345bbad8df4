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

package errors

import "fmt"

// IgnoreInvalidRequestError signals that a webhook cannot and should not be
// processed: no action matched, a private bug is not allowed by the matched
// action, the event is unclassifiable, or the source bug could not be
// re-fetched. Callers drop the request, answer 200, and count it as ignored.
type IgnoreInvalidRequestError struct {
	// Reason is a short, human-readable explanation.
	Reason string

	// Cause is the underlying error, if any (e.g. a fetch failure).
	Cause error
}

func (e *IgnoreInvalidRequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ignoring invalid request: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("ignoring invalid request: %s", e.Reason)
}

func (e *IgnoreInvalidRequestError) Unwrap() error {
	return e.Cause
}

// ActionNotFoundError means no configured action's whiteboard tag matched any
// of the bug's tags. The runner wraps this as IgnoreInvalidRequestError.
type ActionNotFoundError struct {
	// Tags is the set of whiteboard tags that were checked against the registry.
	Tags []string
}

func (e *ActionNotFoundError) Error() string {
	return fmt.Sprintf("no action configured for tags %v", e.Tags)
}

// CreateError means the target tracker's create-issue response carried a
// non-empty errors/errorMessages envelope. This is not transient: the runner
// surfaces it so the caller enqueues for a later retry, since the underlying
// project/field configuration is unlikely to change on its own but a human
// may fix it.
type CreateError struct {
	// ProjectKey is the target project the issue was being created in.
	ProjectKey string

	// Errors holds the field-keyed error envelope returned by the tracker.
	Errors map[string]string

	// ErrorMessages holds the free-form error envelope returned by the tracker.
	ErrorMessages []string
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("create issue in project %s failed: errors=%v errorMessages=%v", e.ProjectKey, e.Errors, e.ErrorMessages)
}

// QueueItemRetrievalError wraps a corrupt or unreadable queue item
// encountered while iterating a bug's queue directory. The retry worker logs
// and skips the item; it does not halt enumeration of the bug's remaining
// items or of other bugs.
type QueueItemRetrievalError struct {
	// BugID is the bug whose queue directory the bad item was found in.
	BugID int

	// Path is the file path of the offending item, if known.
	Path string

	// Cause is the underlying decode/read error.
	Cause error
}

func (e *QueueItemRetrievalError) Error() string {
	return fmt.Sprintf("retrieving queue item for bug %d at %s: %v", e.BugID, e.Path, e.Cause)
}

func (e *QueueItemRetrievalError) Unwrap() error {
	return e.Cause
}

// InvalidQueueDSNError means the configured queue storage URI has an
// unsupported scheme. This is fatal at startup.
type InvalidQueueDSNError struct {
	// DSN is the offending URI.
	DSN string

	// Reason explains what's wrong with it.
	Reason string
}

func (e *InvalidQueueDSNError) Error() string {
	return fmt.Sprintf("invalid queue dsn %q: %s", e.DSN, e.Reason)
}

// TransientTrackerError wraps a transport failure or 5xx response from
// either tracker client, signalling the caller should enqueue the request for
// a later retry rather than drop it or escalate to an operator.
type TransientTrackerError struct {
	// Tracker names which client the error came from ("source" or "target").
	Tracker string

	// Operation names the client method that failed (e.g. "GetBug", "CreateIssue").
	Operation string

	// StatusCode is the HTTP status code, or 0 for a transport-level failure.
	StatusCode int

	// Cause is the underlying error.
	Cause error
}

func (e *TransientTrackerError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient %s tracker error in %s (HTTP %d): %v", e.Tracker, e.Operation, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("transient %s tracker error in %s: %v", e.Tracker, e.Operation, e.Cause)
}

func (e *TransientTrackerError) Unwrap() error {
	return e.Cause
}
