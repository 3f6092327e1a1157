package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(ids ...MemberID) Sequence {
	records := make([]Record, len(ids))
	for i, id := range ids {
		records[i] = Member{ID: id, Name: string(id)}
	}
	return NewSliceSequence(records)
}

func collect(t *testing.T, m *Merge) []Group {
	t.Helper()
	var groups []Group
	for {
		g, ok, err := m.Next()
		require.NoError(t, err)
		if !ok {
			return groups
		}
		groups = append(groups, g)
	}
}

func TestMergeCoversEveryKey(t *testing.T) {
	m, err := NewMerge(
		seq("a", "b", "c"),
		seq("b", "c", "d"),
		seq("a", "d"),
	)
	require.NoError(t, err)
	defer m.Close()

	groups := collect(t, m)
	require.Len(t, groups, 4)

	assert.Equal(t, MemberID("a"), groups[0].Member)
	assert.Equal(t, MemberID("b"), groups[1].Member)
	assert.Equal(t, MemberID("c"), groups[2].Member)
	assert.Equal(t, MemberID("d"), groups[3].Member)

	assert.Len(t, groups[0].Records, 2)
	assert.Len(t, groups[1].Records, 2)
	assert.Len(t, groups[2].Records, 2)
	assert.Len(t, groups[3].Records, 2)
}

func TestMergeSingleSequence(t *testing.T) {
	m, err := NewMerge(seq("a", "b"))
	require.NoError(t, err)
	defer m.Close()

	groups := collect(t, m)
	require.Len(t, groups, 2)
	assert.Equal(t, MemberID("a"), groups[0].Member)
	assert.Equal(t, MemberID("b"), groups[1].Member)
}

func TestMergeEmptySequences(t *testing.T) {
	m, err := NewMerge(seq(), seq(), seq())
	require.NoError(t, err)
	defer m.Close()

	groups := collect(t, m)
	assert.Empty(t, groups)
}

func TestMergeGroupKeepsInputOrder(t *testing.T) {
	// Two titles for the same member inside one sequence must come out in
	// sequence order, and records from an earlier sequence come first.
	titles := NewSliceSequence([]Record{
		Title{Member: "a", Period: 2012, Kind: RankBoard, Root: "FORM"},
		Title{Member: "a", Period: 2013, Kind: RankBoard, Root: "INKA"},
	})
	m, err := NewMerge(seq("a"), titles)
	require.NoError(t, err)
	defer m.Close()

	groups := collect(t, m)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Records, 3)

	_, isMember := groups[0].Records[0].(Member)
	assert.True(t, isMember)
	assert.Equal(t, "FORM", groups[0].Records[1].(Title).Root)
	assert.Equal(t, "INKA", groups[0].Records[2].(Title).Root)
}

func TestMergeRecordsPresentOnlyInOneSequence(t *testing.T) {
	m, err := NewMerge(seq("a"), seq("z"))
	require.NoError(t, err)
	defer m.Close()

	groups := collect(t, m)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Records, 1)
	assert.Len(t, groups[1].Records, 1)
}

type failingSequence struct {
	err    error
	closed bool
}

func (f *failingSequence) Next() (Record, bool, error) { return nil, false, f.err }
func (f *failingSequence) Close() error {
	f.closed = true
	return nil
}

func TestMergeClosesSequencesOnPrimeError(t *testing.T) {
	healthy := &failingSequence{err: nil}
	broken := &failingSequence{err: errors.New("cursor gone")}

	_, err := NewMerge(healthy, broken)
	require.Error(t, err)
	assert.True(t, healthy.closed)
	assert.True(t, broken.closed)
}

func TestMergeNextPropagatesSequenceError(t *testing.T) {
	boom := errors.New("read failed")
	failing := &stepFailSequence{records: []Record{Member{ID: "a"}}, failAfter: 1, err: boom}

	m, err := NewMerge(failing)
	require.NoError(t, err)
	defer m.Close()

	_, ok, err := m.Next()
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)

	// The error is sticky.
	_, ok, err = m.Next()
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

type stepFailSequence struct {
	records   []Record
	pos       int
	failAfter int
	err       error
}

func (s *stepFailSequence) Next() (Record, bool, error) {
	if s.pos >= s.failAfter {
		return nil, false, s.err
	}
	r := s.records[s.pos]
	s.pos++
	return r, true, nil
}

func (s *stepFailSequence) Close() error { return nil }
