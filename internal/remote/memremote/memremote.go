// Package memremote is a complete in-memory implementation of the remote
// document store contract. It backs the test suite and the simulator binary:
// server-assigned ids, a monotonic server clock for timestamp sentinels, and
// per-subscription ordered asynchronous delivery.
package memremote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmartinez-dev/hilo/internal/remote"
)

type subscription struct {
	query  remote.Query
	docKey string // "path/id" for single-document watches, empty otherwise
	prev   []remote.Doc
	ch     chan remote.Snapshot
	docCh  chan remote.Doc
}

// Store is an in-memory remote.Store. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	cols    map[string]map[string]map[string]any // path -> id -> fields
	clock   int64
	subs    map[int]*subscription
	nextSub int

	writeErr error
	readErr  error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		cols: make(map[string]map[string]map[string]any),
		subs: make(map[int]*subscription),
	}
}

// SetWriteError makes every subsequent write fail with err until reset with
// nil. Test hook.
func (s *Store) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// SetReadError makes every subsequent read fail with err until reset with
// nil. Test hook.
func (s *Store) SetReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// serverNow returns a strictly increasing unix-milli value, mimicking the
// remote store's non-decreasing write timestamps even when writes land
// within the same millisecond.
func (s *Store) serverNow() int64 {
	now := time.Now().UnixMilli()
	if now <= s.clock {
		now = s.clock + 1
	}
	s.clock = now
	return now
}

func (s *Store) Get(ctx context.Context, path, id string) (remote.Doc, bool, error) {
	if err := ctx.Err(); err != nil {
		return remote.Doc{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return remote.Doc{}, false, s.readErr
	}
	fields, ok := s.cols[path][id]
	if !ok {
		return remote.Doc{}, false, nil
	}
	return remote.Doc{ID: id, Fields: copyFields(fields)}, true, nil
}

func (s *Store) Query(ctx context.Context, q remote.Query) ([]remote.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.runQuery(q), nil
}

func (s *Store) Create(ctx context.Context, path string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return "", s.writeErr
	}
	id := uuid.NewString()
	s.put(path, id, fields)
	s.fanOut()
	return id, nil
}

func (s *Store) Set(ctx context.Context, path, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.put(path, id, fields)
	s.fanOut()
	return nil
}

func (s *Store) Update(ctx context.Context, path, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	existing, ok := s.cols[path][id]
	if !ok {
		return fmt.Errorf("document %s/%s does not exist", path, id)
	}
	merged := copyFields(existing)
	for k, v := range fields {
		merged[k] = v
	}
	s.put(path, id, merged)
	s.fanOut()
	return nil
}

func (s *Store) Subscribe(q remote.Query, fn func(remote.Snapshot)) (remote.CancelFunc, error) {
	s.mu.Lock()
	if s.readErr != nil {
		s.mu.Unlock()
		return nil, s.readErr
	}
	sub := &subscription{query: q, ch: make(chan remote.Snapshot, 64)}
	window := s.runQuery(q)
	sub.prev = window
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub

	// Queue the initial snapshot while still holding the lock so no
	// concurrent write can slip a delta in front of it.
	initial := remote.Snapshot{Docs: window, Initial: true}
	for i, d := range window {
		initial.Changes = append(initial.Changes, remote.Change{Kind: remote.Added, Doc: d, NewIndex: i})
	}
	sub.ch <- initial
	s.mu.Unlock()

	go func() {
		for snap := range sub.ch {
			fn(snap)
		}
	}()

	return s.cancelFunc(id), nil
}

func (s *Store) SubscribeDoc(path, id string, fn func(remote.Doc)) (remote.CancelFunc, error) {
	s.mu.Lock()
	if s.readErr != nil {
		s.mu.Unlock()
		return nil, s.readErr
	}
	sub := &subscription{docKey: path + "/" + id, docCh: make(chan remote.Doc, 64)}
	subID := s.nextSub
	s.nextSub++
	s.subs[subID] = sub
	if fields, ok := s.cols[path][id]; ok {
		sub.docCh <- remote.Doc{ID: id, Fields: copyFields(fields)}
	}
	s.mu.Unlock()

	go func() {
		for doc := range sub.docCh {
			fn(doc)
		}
	}()

	return s.cancelFunc(subID), nil
}

func (s *Store) cancelFunc(id int) remote.CancelFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			sub, ok := s.subs[id]
			delete(s.subs, id)
			s.mu.Unlock()
			if !ok {
				return
			}
			if sub.ch != nil {
				close(sub.ch)
			}
			if sub.docCh != nil {
				close(sub.docCh)
			}
		})
	}
}

// put stores fields (with sentinel substitution) under path/id. Caller holds
// the lock.
func (s *Store) put(path, id string, fields map[string]any) {
	stored := copyFields(fields)
	for k, v := range stored {
		if v == remote.ServerTimestamp {
			stored[k] = s.serverNow()
		}
	}
	col := s.cols[path]
	if col == nil {
		col = make(map[string]map[string]any)
		s.cols[path] = col
	}
	col[id] = stored
}

// fanOut recomputes every live window and queues deltas. Caller holds the
// lock; delivery itself happens on each subscription's goroutine, preserving
// per-subscription order.
func (s *Store) fanOut() {
	for _, sub := range s.subs {
		if sub.docKey != "" {
			i := strings.LastIndex(sub.docKey, "/")
			path, id := sub.docKey[:i], sub.docKey[i+1:]
			if fields, ok := s.cols[path][id]; ok {
				select {
				case sub.docCh <- remote.Doc{ID: id, Fields: copyFields(fields)}:
				default:
				}
			}
			continue
		}

		window := s.runQuery(sub.query)
		changes := diff(sub.prev, window)
		if len(changes) == 0 {
			sub.prev = window
			continue
		}
		// Advance prev only on a successful enqueue. A delta dropped on a
		// full channel is then re-derived on the next write, diffed against
		// the last window the subscriber actually received.
		select {
		case sub.ch <- remote.Snapshot{Docs: window, Changes: changes}:
			sub.prev = window
		default:
		}
	}
}

func diff(prev, next []remote.Doc) []remote.Change {
	prevByID := make(map[string]remote.Doc, len(prev))
	for _, d := range prev {
		prevByID[d.ID] = d
	}
	nextIDs := make(map[string]bool, len(next))
	var changes []remote.Change
	for i, d := range next {
		nextIDs[d.ID] = true
		old, ok := prevByID[d.ID]
		switch {
		case !ok:
			changes = append(changes, remote.Change{Kind: remote.Added, Doc: d, NewIndex: i})
		case !equalFields(old.Fields, d.Fields):
			changes = append(changes, remote.Change{Kind: remote.Modified, Doc: d, NewIndex: i})
		}
	}
	for _, d := range prev {
		if !nextIDs[d.ID] {
			changes = append(changes, remote.Change{Kind: remote.Removed, Doc: d, NewIndex: -1})
		}
	}
	return changes
}

// runQuery evaluates a query against current contents. Caller holds the lock.
func (s *Store) runQuery(q remote.Query) []remote.Doc {
	var docs []remote.Doc
	for id, fields := range s.cols[q.Path] {
		if matches(fields, q.Filters) {
			docs = append(docs, remote.Doc{ID: id, Fields: copyFields(fields)})
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			c := compare(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy])
			if c == 0 {
				// Order on equal keys is unspecified at this layer; fall back
				// to id so results are at least deterministic.
				c = strings.Compare(docs[i].ID, docs[j].ID)
			}
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if q.StartAfter != nil && q.OrderBy != "" {
		cut := 0
		for cut < len(docs) {
			c := compare(docs[cut].Fields[q.OrderBy], q.StartAfter)
			if (q.Descending && c < 0) || (!q.Descending && c > 0) {
				break
			}
			cut++
		}
		docs = docs[cut:]
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

func matches(fields map[string]any, filters []remote.Filter) bool {
	for _, f := range filters {
		v := fields[f.Field]
		switch f.Op {
		case "==":
			if compare(v, f.Value) != 0 {
				return false
			}
		case "!=":
			if compare(v, f.Value) == 0 {
				return false
			}
		case "array-contains":
			if !contains(v, f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func contains(v, want any) bool {
	switch arr := v.(type) {
	case []string:
		for _, e := range arr {
			if compare(e, want) == 0 {
				return true
			}
		}
	case []any:
		for _, e := range arr {
			if compare(e, want) == 0 {
				return true
			}
		}
	}
	return false
}

// compare orders two field values. Numeric values compare numerically,
// strings lexically, booleans false<true; mismatched kinds compare by kind
// name so ordering stays total.
func compare(a, b any) int {
	an, aok := toInt64(a)
	bn, bok := toInt64(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs)
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		switch {
		case !ab && bb:
			return -1
		case ab && !bb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func equalFields(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", av) != fmt.Sprintf("%v", bv) {
			return false
		}
	}
	return true
}
