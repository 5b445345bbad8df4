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

// Package queue implements the durable dead-letter queue: a per-bug ordered
// list of webhook requests that failed or were postponed for head-of-line
// reasons, persisted so the retry worker can replay them later.
package queue

import (
	"fmt"
	"time"

	"github.com/tombee/trackerbridge/pkg/sourcetracker"
)

// ItemError captures a failure that caused an item to be enqueued, for
// operator visibility. It is nil for an item enqueued purely for the
// postpone (head-of-line) case.
type ItemError struct {
	Type        string
	Description string
	Details     string
}

// Item is one durable queue entry: a webhook request plus the circumstances
// that put it in the queue.
type Item struct {
	Payload    sourcetracker.WebhookRequest
	Error      *ItemError
	EnqueuedAt time.Time
}

// identifierTimeLayout is RFC3339 in UTC with a fixed nine-digit fraction, so
// every timestamp prefix has the same width and byte order matches time order.
const identifierTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Identifier is the item's stable, lexicographically sortable name. Because
// it's prefixed with the event's fixed-width RFC3339 UTC timestamp, sorting
// identifiers lexicographically reproduces ascending time order.
func (i Item) Identifier() string {
	kind := "postponed"
	if i.Error != nil {
		kind = "error"
	}
	return fmt.Sprintf("%s-%d-%s-%s", i.Payload.Event.Time.UTC().Format(identifierTimeLayout), i.Payload.Bug.ID, i.Payload.Event.Action, kind)
}

// Timestamp is the item's ordering key: the originating event's time.
func (i Item) Timestamp() time.Time {
	return i.Payload.Event.Time
}

// Backend is the durable queue's storage abstraction. All methods must be
// safe for concurrent use; the retry worker and the webhook intake path call
// into the same backend concurrently.
type Backend interface {
	// Put appends item, preserving per-bug ordering.
	Put(item Item) error

	// Remove deletes the item named identifier from bugID's queue. Removing
	// the last item for a bug also removes the bug's container. Idempotent:
	// removing an already-absent identifier is not an error.
	Remove(bugID int, identifier string) error

	// Get returns bugID's items in ascending (timestamp, identifier) order.
	// A corrupt item surfaces as a *errors.QueueItemRetrievalError in errs
	// without halting enumeration of the remaining items.
	Get(bugID int) (items []Item, errs []error)

	// GetAll returns every bug id's items, keyed by bug id. Iteration order
	// across bugs is unspecified; within a bug, items are ascending as in Get.
	GetAll() (items map[int][]Item, errs []error)

	// List returns bugID's item identifiers in ascending order.
	List(bugID int) ([]string, error)

	// ListAll returns every bug id's item identifiers.
	ListAll() (map[int][]string, error)

	// Size returns the number of items queued for bugID.
	Size(bugID int) (int, error)

	// Clear removes every item for every bug. Intended for tests and admin
	// tooling, not normal operation.
	Clear() error

	// Ping proves the backend is writable without corrupting existing state.
	Ping() error
}
