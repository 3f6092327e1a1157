// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/klubkasse/statement-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	members      []ledger.Member
	titles       []ledger.Title
	transactions []ledger.Transaction
	purchases    []ledger.Purchase
	artifacts    map[ledger.RunID][]ledger.StatementArtifact
	runs         map[ledger.RunID]ledger.Run
}

func NewMemory() *Memory {
	return &Memory{
		artifacts: make(map[ledger.RunID][]ledger.StatementArtifact),
		runs:      make(map[ledger.RunID]ledger.Run),
	}
}

// =============================================================================
// SEEDING - used by tests and development fixtures
// =============================================================================

func (m *Memory) AddMember(member ledger.Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = append(m.members, member)
}

func (m *Memory) AddTitle(title ledger.Title) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles = append(m.titles, title)
}

func (m *Memory) AddTransaction(tx ledger.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, tx)
}

func (m *Memory) AddPurchase(p ledger.Purchase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchases = append(m.purchases, p)
}

func (m *Memory) PutRun(run ledger.Run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
}

// SeedArtifact installs a prior artifact, bypassing ApplyArtifactOps.
func (m *Memory) SeedArtifact(a ledger.StatementArtifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[a.Run] = append(m.artifacts[a.Run], a)
}

// =============================================================================
// READS - member-ordered sequences
// =============================================================================

// sequence copies the filtered records under the read lock and sorts
// them by member key. The in-memory store may materialize; streaming
// matters only for the database-backed store.
func (m *Memory) sequence(records []ledger.Record) ledger.Sequence {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].MemberKey() < records[j].MemberKey()
	})
	return ledger.NewSliceSequence(records)
}

func (m *Memory) Members(_ context.Context) (ledger.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]ledger.Record, 0, len(m.members))
	for _, member := range m.members {
		records = append(records, member)
	}
	return m.sequence(records), nil
}

func (m *Memory) Titles(_ context.Context) (ledger.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]ledger.Record, 0, len(m.titles))
	for _, t := range m.titles {
		records = append(records, t)
	}
	return m.sequence(records), nil
}

func (m *Memory) Transactions(_ context.Context, run ledger.RunID) (ledger.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []ledger.Record
	for _, tx := range m.transactions {
		if tx.Run == run {
			records = append(records, tx)
		}
	}
	return m.sequence(records), nil
}

func (m *Memory) Purchases(_ context.Context, run ledger.RunID) (ledger.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []ledger.Record
	for _, p := range m.purchases {
		if p.Run == run {
			records = append(records, p)
		}
	}
	return m.sequence(records), nil
}

func (m *Memory) Artifacts(_ context.Context, run ledger.RunID) (ledger.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]ledger.Record, 0, len(m.artifacts[run]))
	for _, a := range m.artifacts[run] {
		records = append(records, a)
	}
	return m.sequence(records), nil
}

func (m *Memory) AllPurchases(_ context.Context) (ledger.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]ledger.Record, 0, len(m.purchases))
	for _, p := range m.purchases {
		records = append(records, p)
	}
	return m.sequence(records), nil
}

func (m *Memory) AllTransactions(_ context.Context) (ledger.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]ledger.Record, 0, len(m.transactions))
	for _, tx := range m.transactions {
		records = append(records, tx)
	}
	return m.sequence(records), nil
}

func (m *Memory) PurchasePrices(_ context.Context, run ledger.RunID) ([]ledger.CategoryPrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var prices []ledger.CategoryPrice
	for _, p := range m.purchases {
		if p.Run != run || !p.UnitPrice.Valid {
			continue
		}
		key := p.Category + "\x00" + p.UnitPrice.Decimal.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		prices = append(prices, ledger.CategoryPrice{Name: p.Category, UnitPrice: p.UnitPrice.Decimal})
	}
	sort.Slice(prices, func(i, j int) bool {
		if prices[i].Name != prices[j].Name {
			return prices[i].Name < prices[j].Name
		}
		return prices[i].UnitPrice.LessThan(prices[j].UnitPrice)
	})
	return prices, nil
}

// =============================================================================
// RUN LIFECYCLE
// =============================================================================

func (m *Memory) Run(_ context.Context, id ledger.RunID) (ledger.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return ledger.Run{}, ledger.ErrRunNotFound
	}
	return run, nil
}

func (m *Memory) FinalizeRun(_ context.Context, id ledger.RunID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return ledger.ErrRunNotFound
	}
	if run.Finalized() {
		return ledger.ErrRunFinalized
	}
	run.FinalizedAt = &at
	m.runs[id] = run
	return nil
}

// =============================================================================
// ARTIFACT WRITES
// =============================================================================

// ApplyArtifactOps applies a whole regeneration's op set atomically. The
// finalized check happens under the same lock as the writes, so a
// concurrent finalize cannot slip between check and apply.
func (m *Memory) ApplyArtifactOps(_ context.Context, run ledger.RunID, ops []ledger.ArtifactOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.runs[run]
	if !ok {
		return ledger.ErrRunNotFound
	}
	if current.Finalized() {
		return ledger.ErrRunFinalized
	}

	// Validate before mutating so a bad op leaves the set untouched.
	for _, op := range ops {
		if op.Kind == ledger.OpUpdate || op.Kind == ledger.OpDelete {
			if m.indexOfLocked(run, op.Artifact.ID) < 0 {
				return ledger.ErrArtifactNotFound
			}
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case ledger.OpCreate:
			m.artifacts[run] = append(m.artifacts[run], op.Artifact)
		case ledger.OpUpdate:
			i := m.indexOfLocked(run, op.Artifact.ID)
			m.artifacts[run][i] = op.Artifact
		case ledger.OpDelete:
			i := m.indexOfLocked(run, op.Artifact.ID)
			m.artifacts[run] = append(m.artifacts[run][:i], m.artifacts[run][i+1:]...)
		}
	}
	return nil
}

func (m *Memory) indexOfLocked(run ledger.RunID, id ledger.ArtifactID) int {
	for i, a := range m.artifacts[run] {
		if a.ID == id {
			return i
		}
	}
	return -1
}
