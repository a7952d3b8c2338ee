// Package timeline holds the ordered, deduplicated in-memory message
// sequence for exactly one conversation. All mutation goes through a single
// mutex so that remote change callbacks, pagination prepends and send
// confirmations never interleave mid-operation.
package timeline

import (
	"sync"
	"time"

	"github.com/dmartinez-dev/hilo/internal/model"
)

// Store is the timeline for one conversation, ordered oldest to newest.
type Store struct {
	mu    sync.Mutex
	msgs  []model.Message
	index map[string]int // message id -> position in msgs
}

// New creates an empty timeline.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Replace installs the initial snapshot window. The input arrives
// newest-first from the remote query and is reversed to oldest-first here.
// Any previous contents are discarded.
func (s *Store) Replace(newestFirst []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = s.msgs[:0]
	s.index = make(map[string]int, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		m := newestFirst[i]
		if _, dup := s.index[m.ID]; dup {
			continue
		}
		s.index[m.ID] = len(s.msgs)
		s.msgs = append(s.msgs, m)
	}
}

// Append adds a message at the tail. Duplicate suppression is purely
// identifier-based: a message whose id is already present is a no-op.
// Reports whether the message was inserted.
func (s *Store) Append(m model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.index[m.ID]; dup {
		return false
	}
	s.index[m.ID] = len(s.msgs)
	s.msgs = append(s.msgs, m)
	return true
}

// Prepend inserts an older page at the head. The page arrives newest-first
// and is reversed before splicing. Messages already present are skipped, so
// pagination overlap on equal timestamps is absorbed here.
func (s *Store) Prepend(newestFirst []model.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var older []model.Message
	for i := len(newestFirst) - 1; i >= 0; i-- {
		m := newestFirst[i]
		if _, dup := s.index[m.ID]; dup {
			continue
		}
		older = append(older, m)
	}
	if len(older) == 0 {
		return 0
	}
	s.msgs = append(older, s.msgs...)
	s.index = make(map[string]int, len(s.msgs))
	for i, m := range s.msgs {
		s.index[m.ID] = i
	}
	return len(older)
}

// Update replaces a message in place by identifier. Unknown identifiers are
// treated as absent and ignored. Reports whether anything changed.
func (s *Store) Update(m model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[m.ID]
	if !ok {
		return false
	}
	s.msgs[i] = m
	return true
}

// Len returns the number of messages held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// Messages returns a copy of the timeline, oldest first.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// OldestTimestamp returns the timestamp of the oldest acknowledged message,
// used as the pagination cursor for the next older page. Returns 0 when the
// timeline is empty or holds only pending messages.
func (s *Store) OldestTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.Timestamp > 0 {
			return m.Timestamp
		}
	}
	return 0
}

// Entry pairs a message with its rendering metadata.
type Entry struct {
	Message   model.Message
	DayHeader bool // show a date separator before this message
}

// Entries returns the timeline with day-boundary separators derived: a
// separator precedes the first message and any message whose calendar day
// (local time) differs from its predecessor's. Pending messages (zero
// timestamp) count as "now" and never trigger a separator themselves.
func (s *Store) Entries() []Entry {
	return entriesAt(s.Messages(), time.Now())
}

func entriesAt(msgs []model.Message, now time.Time) []Entry {
	out := make([]Entry, len(msgs))
	for i, m := range msgs {
		out[i] = Entry{Message: m}
		if m.Timestamp == 0 {
			continue
		}
		if i == 0 {
			out[i].DayHeader = true
			continue
		}
		prev := msgs[i-1].Timestamp
		prevDay := now
		if prev > 0 {
			prevDay = time.UnixMilli(prev)
		}
		if !sameDay(prevDay, time.UnixMilli(m.Timestamp)) {
			out[i].DayHeader = true
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
