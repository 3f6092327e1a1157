/*
merge.go - Streaming k-way merge-join by member key

PURPOSE:
  One regeneration pass reads six independently sorted sequences (members,
  titles, transactions, purchases, prior artifacts, balances) and needs
  every record for one member in hand before that member's statement can
  be decided. Merge does exactly that: it consumes k sequences, each
  already sorted ascending by member key, and emits one group per
  distinct key, in ascending key order.

COMPLEXITY:
  O(total records × log k) time, O(k) auxiliary space. Only one head
  record per sequence is held; nothing is materialized up front, so
  memory stays bounded for large ledgers.

GUARANTEES:
  - Every distinct key present in ANY input produces exactly one group.
  - A group contains every record sharing that key, across all inputs,
    even when sequences have different lengths or lack the key entirely.
  - Within a group, records keep input order: sequence index first, then
    position within the sequence.

SEE ALSO:
  - store.go: Store methods return member-ordered Sequences
  - statement/aggregate.go: reduces each group to a StatementInput
*/
package ledger

import "container/heap"

// =============================================================================
// SEQUENCE - A member-ordered stream of records
// =============================================================================

// Sequence yields records in ascending member-key order. Next returns
// ok=false after the last record. Close releases underlying resources
// (database cursors); closing an exhausted sequence is a no-op.
type Sequence interface {
	Next() (Record, bool, error)
	Close() error
}

// SliceSequence adapts an already sorted slice. Used by the in-memory
// store and by tests.
type SliceSequence struct {
	records []Record
	pos     int
}

func NewSliceSequence(records []Record) *SliceSequence {
	return &SliceSequence{records: records}
}

func (s *SliceSequence) Next() (Record, bool, error) {
	if s.pos >= len(s.records) {
		return nil, false, nil
	}
	r := s.records[s.pos]
	s.pos++
	return r, true, nil
}

func (s *SliceSequence) Close() error { return nil }

// =============================================================================
// GROUP - All records for one member
// =============================================================================

type Group struct {
	Member  MemberID
	Records []Record
}

// =============================================================================
// MERGE - k-way merge over sorted sequences
// =============================================================================

type mergeItem struct {
	rec Record
	seq int // index of the source sequence, for stable ordering
	ord int // arrival counter, keeps same-sequence records in order
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	ki, kj := h[i].rec.MemberKey(), h[j].rec.MemberKey()
	if ki != kj {
		return ki < kj
	}
	if h[i].seq != h[j].seq {
		return h[i].seq < h[j].seq
	}
	return h[i].ord < h[j].ord
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(mergeItem)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Merge groups k member-ordered sequences into per-member batches.
type Merge struct {
	seqs []Sequence
	heap mergeHeap
	ord  int
	err  error
}

// NewMerge primes the merge with the head of every sequence. On error
// the sequences are closed and the error returned.
func NewMerge(seqs ...Sequence) (*Merge, error) {
	m := &Merge{seqs: seqs}
	for i := range seqs {
		if err := m.advance(i); err != nil {
			m.Close()
			return nil, err
		}
	}
	heap.Init(&m.heap)
	return m, nil
}

// advance pulls the next record from sequence i onto the heap.
func (m *Merge) advance(i int) error {
	rec, ok, err := m.seqs[i].Next()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	m.ord++
	m.heap = append(m.heap, mergeItem{rec: rec, seq: i, ord: m.ord})
	return nil
}

// Next emits the group for the smallest remaining member key. It pops
// every record sharing that key, refilling each source sequence as its
// head is consumed, so at most one record per sequence is buffered.
func (m *Merge) Next() (Group, bool, error) {
	if m.err != nil {
		return Group{}, false, m.err
	}
	if m.heap.Len() == 0 {
		return Group{}, false, nil
	}

	key := m.heap[0].rec.MemberKey()
	g := Group{Member: key}
	for m.heap.Len() > 0 && m.heap[0].rec.MemberKey() == key {
		it := heap.Pop(&m.heap).(mergeItem)
		g.Records = append(g.Records, it.rec)

		rec, ok, err := m.seqs[it.seq].Next()
		if err != nil {
			m.err = err
			return Group{}, false, err
		}
		if ok {
			m.ord++
			heap.Push(&m.heap, mergeItem{rec: rec, seq: it.seq, ord: m.ord})
		}
	}
	return g, true, nil
}

// Close closes all underlying sequences, returning the first error.
func (m *Merge) Close() error {
	var first error
	for _, s := range m.seqs {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
