package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klubkasse/statement-engine/ledger"
)

func seededRun(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	m.PutRun(ledger.Run{ID: "r1", Period: 2026, CreatedAt: time.Now()})
	return m
}

func TestMemorySequencesAreMemberOrdered(t *testing.T) {
	m := seededRun(t)
	m.AddMember(ledger.Member{ID: "c"})
	m.AddMember(ledger.Member{ID: "a"})
	m.AddMember(ledger.Member{ID: "b"})

	seq, err := m.Members(context.Background())
	require.NoError(t, err)
	defer seq.Close()

	var order []ledger.MemberID
	for {
		rec, ok, err := seq.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		order = append(order, rec.MemberKey())
	}
	assert.Equal(t, []ledger.MemberID{"a", "b", "c"}, order)
}

func TestMemoryApplyArtifactOpsValidatesBeforeMutating(t *testing.T) {
	m := seededRun(t)
	m.SeedArtifact(ledger.StatementArtifact{ID: "a1", Run: "r1", Member: "jens", Body: "v1"})

	// The create precedes the bad delete; neither must take effect.
	err := m.ApplyArtifactOps(context.Background(), "r1", []ledger.ArtifactOp{
		{Kind: ledger.OpCreate, Artifact: ledger.StatementArtifact{ID: "a2", Run: "r1", Member: "mette"}},
		{Kind: ledger.OpDelete, Artifact: ledger.StatementArtifact{ID: "ghost", Run: "r1", Member: "x"}},
	})
	require.ErrorIs(t, err, ledger.ErrArtifactNotFound)

	seq, err := m.Artifacts(context.Background(), "r1")
	require.NoError(t, err)
	defer seq.Close()

	count := 0
	for {
		_, ok, err := seq.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 1, count, "failed op set must leave artifacts untouched")
}

func TestMemoryFinalizeGuardsApply(t *testing.T) {
	m := seededRun(t)
	require.NoError(t, m.FinalizeRun(context.Background(), "r1", time.Now()))

	err := m.ApplyArtifactOps(context.Background(), "r1", []ledger.ArtifactOp{
		{Kind: ledger.OpCreate, Artifact: ledger.StatementArtifact{ID: "a1", Run: "r1", Member: "jens"}},
	})
	assert.ErrorIs(t, err, ledger.ErrRunFinalized)
}

func TestMemoryUnknownRun(t *testing.T) {
	m := NewMemory()
	_, err := m.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrRunNotFound)

	assert.ErrorIs(t, m.FinalizeRun(context.Background(), "missing", time.Now()), ledger.ErrRunNotFound)
	assert.ErrorIs(t, m.ApplyArtifactOps(context.Background(), "missing", nil), ledger.ErrRunNotFound)
}
