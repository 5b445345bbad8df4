package queue

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tombee/trackerbridge/internal/clock"
	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
)

// FileBackend is the filesystem-backed Backend: one directory per bug id
// under root, one file per item named "<identifier>.json". Lexicographic
// filename sort reproduces ascending time order because Item.Identifier is
// prefixed with a fixed-width RFC3339 UTC timestamp.
type FileBackend struct {
	root  string
	clock clock.Clock
	mu    sync.Mutex
}

// ParseDSN validates dsn as a queue storage location. Only the "file" scheme
// is supported; anything else is a fatal startup error.
func ParseDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", &trackererrors.InvalidQueueDSNError{DSN: dsn, Reason: "not a valid URI"}
	}
	if u.Scheme != "file" {
		return "", &trackererrors.InvalidQueueDSNError{DSN: dsn, Reason: fmt.Sprintf("unsupported scheme %q, only file:// is supported", u.Scheme)}
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	if path == "" {
		return "", &trackererrors.InvalidQueueDSNError{DSN: dsn, Reason: "file:// URI has no path"}
	}
	return path, nil
}

// NewFileBackend opens a FileBackend rooted at dsn, a "file://" URI. The
// root directory is created if it doesn't already exist.
func NewFileBackend(dsn string) (*FileBackend, error) {
	root, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, trackererrors.Wrap(err, "creating queue root directory")
	}
	return &FileBackend{root: root, clock: clock.New()}, nil
}

func (b *FileBackend) bugDir(bugID int) string {
	return filepath.Join(b.root, strconv.Itoa(bugID))
}

func (b *FileBackend) itemPath(bugID int, identifier string) string {
	return filepath.Join(b.bugDir(bugID), identifier+".json")
}

func (b *FileBackend) Put(item Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = b.clock.Now()
	}

	dir := b.bugDir(item.Payload.Bug.ID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return trackererrors.Wrap(err, "creating bug queue directory")
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return trackererrors.Wrap(err, "encoding queue item")
	}

	path := b.itemPath(item.Payload.Bug.ID, item.Identifier())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o640); err != nil {
		return trackererrors.Wrap(err, "writing queue item file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return trackererrors.Wrap(err, "renaming queue item file")
	}
	return nil
}

func (b *FileBackend) Remove(bugID int, identifier string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.itemPath(bugID, identifier)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return trackererrors.Wrap(err, "removing queue item file")
	}

	dir := b.bugDir(bugID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return trackererrors.Wrap(err, "reading bug queue directory")
	}
	if len(entries) == 0 {
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			return trackererrors.Wrap(err, "removing empty bug queue directory")
		}
	}
	return nil
}

func (b *FileBackend) Get(bugID int) ([]Item, []error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(bugID)
}

func (b *FileBackend) get(bugID int) ([]Item, []error) {
	dir := b.bugDir(bugID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{trackererrors.Wrap(err, "reading bug queue directory")}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var items []Item
	var errs []error
	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, &trackererrors.QueueItemRetrievalError{BugID: bugID, Path: path, Cause: err})
			continue
		}
		var item Item
		if err := json.Unmarshal(raw, &item); err != nil {
			errs = append(errs, &trackererrors.QueueItemRetrievalError{BugID: bugID, Path: path, Cause: err})
			continue
		}
		items = append(items, item)
	}
	return items, errs
}

func (b *FileBackend) GetAll() (map[int][]Item, []error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bugIDs, err := b.bugIDs()
	if err != nil {
		return nil, []error{err}
	}

	result := make(map[int][]Item, len(bugIDs))
	var errs []error
	for _, id := range bugIDs {
		items, itemErrs := b.get(id)
		result[id] = items
		errs = append(errs, itemErrs...)
	}
	return result, errs
}

func (b *FileBackend) List(bugID int) ([]string, error) {
	items, errs := b.Get(bugID)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Identifier())
	}
	return ids, nil
}

func (b *FileBackend) ListAll() (map[int][]string, error) {
	b.mu.Lock()
	bugIDs, err := b.bugIDs()
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := make(map[int][]string, len(bugIDs))
	for _, id := range bugIDs {
		ids, err := b.List(id)
		if err != nil {
			return nil, err
		}
		result[id] = ids
	}
	return result, nil
}

func (b *FileBackend) Size(bugID int) (int, error) {
	items, errs := b.Get(bugID)
	if len(errs) > 0 {
		return 0, errs[0]
	}
	return len(items), nil
}

func (b *FileBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return trackererrors.Wrap(err, "reading queue root directory")
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(b.root, e.Name())); err != nil {
			return trackererrors.Wrap(err, "clearing queue directory entry")
		}
	}
	return nil
}

func (b *FileBackend) Ping() error {
	probe := filepath.Join(b.root, ".ping")
	if err := os.WriteFile(probe, []byte("ok"), 0o640); err != nil {
		return trackererrors.Wrap(err, "queue backend not writable")
	}
	return os.Remove(probe)
}

// bugIDs lists the bug id directories under root. Must be called with mu held.
func (b *FileBackend) bugIDs() ([]int, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, trackererrors.Wrap(err, "reading queue root directory")
	}

	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
