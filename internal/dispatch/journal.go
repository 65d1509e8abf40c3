package dispatch

import (
	"sort"
	"time"

	"github.com/bluele/gcache"
	"go.uber.org/atomic"
)

// DefaultJournalSize is how many results a journal keeps by default
const DefaultJournalSize = 64

// Entry is one journaled dispatch, as served to operators
type Entry struct {
	ID        uint64    `json:"id"`
	At        time.Time `json:"at"`
	Outcome   string    `json:"outcome"`
	Encoding  string    `json:"encoding"`
	Sequence  uint32    `json:"sequence,omitempty"`
	Sequenced bool      `json:"sequenced"`
	Error     string    `json:"error,omitempty"`
}

// Journal keeps the most recent dispatch results in an LRU
type Journal struct {
	cache gcache.Cache
	next  atomic.Uint64
}

// NewJournal creates a journal holding up to size entries
func NewJournal(size int) *Journal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	return &Journal{cache: gcache.New(size).LRU().Build()}
}

// Record adds r to the journal, evicting the oldest entry when full
func (j *Journal) Record(r Result) {
	e := Entry{
		ID:        j.next.Inc(),
		At:        r.At,
		Outcome:   r.Outcome.String(),
		Encoding:  r.Encoding.String(),
		Sequence:  r.Sequence,
		Sequenced: r.Sequenced,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	_ = j.cache.Set(e.ID, e)
}

// Recent returns the retained entries, oldest first
func (j *Journal) Recent() []Entry {
	all := j.cache.GetALL(false)
	entries := make([]Entry, 0, len(all))
	for _, v := range all {
		if e, ok := v.(Entry); ok {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].ID < entries[b].ID
	})
	return entries
}
