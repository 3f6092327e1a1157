/*
store.go - Persistence interface for the ledger and statement artifacts

PURPOSE:
  Defines the interface between the engine and the database. Reads are
  exposed as member-ordered Sequences so that one regeneration pass can
  stream the whole ledger through the k-way merge without materializing
  it. Writes are restricted to exactly what the engine is allowed to
  touch: statement artifacts and the run's finalized timestamp.

READ/WRITE CONTRACT:
  Members, titles, purchases and transactions are append-only inputs
  recorded by the (out-of-scope) tally and payment flows. This engine
  never mutates them. StatementArtifacts are mutated exclusively through
  ApplyArtifactOps, which applies a whole run's create/update/delete set
  atomically.

CONCURRENCY:
  ApplyArtifactOps must re-check "run not finalized" inside its own
  transaction, so two regenerations of the same run can never interleave
  writes and a finalize racing a regeneration loses or wins cleanly.
  Regeneration of different runs is independent.

IMPLEMENTATIONS:
  - ledger/store/memory.go: in-memory, for tests and development
  - store/sqlite/sqlite.go: production SQLite

SEE ALSO:
  - merge.go: Sequence definition
  - statement/engine.go: the only consumer of the write side
*/
package ledger

import (
	"context"
	"time"
)

// Store is the persistence boundary of the statement engine.
//
// Every Sequence-returning method yields records sorted ascending by
// member key; the caller owns the sequence and must Close it.
type Store interface {
	// Members streams the member directory.
	Members(ctx context.Context) (Sequence, error)

	// Titles streams the full title history.
	Titles(ctx context.Context) (Sequence, error)

	// Transactions streams one run's transactions.
	Transactions(ctx context.Context, run RunID) (Sequence, error)

	// Purchases streams one run's purchase rows, each carrying the unit
	// price that was in effect at purchase time.
	Purchases(ctx context.Context, run RunID) (Sequence, error)

	// Artifacts streams the statement artifacts generated for a run.
	Artifacts(ctx context.Context, run RunID) (Sequence, error)

	// AllPurchases and AllTransactions stream the complete history, for
	// balance computation. Member order is not required here but both
	// are cheap to provide ordered.
	AllPurchases(ctx context.Context) (Sequence, error)
	AllTransactions(ctx context.Context) (Sequence, error)

	// PurchasePrices returns the distinct (category name, unit price)
	// pairs observed on a run's purchase rows, sorted by name then price.
	// Empty when the run has no purchases.
	PurchasePrices(ctx context.Context, run RunID) ([]CategoryPrice, error)

	// Run loads a run. Returns ErrRunNotFound when absent.
	Run(ctx context.Context, id RunID) (Run, error)

	// FinalizeRun marks a run as sent. Returns ErrRunFinalized when the
	// run was already finalized.
	FinalizeRun(ctx context.Context, id RunID, at time.Time) error

	// ApplyArtifactOps applies a regeneration's create/update/delete set
	// in one transaction. It fails with ErrRunFinalized, writing nothing,
	// if the run was finalized since the pass began.
	ApplyArtifactOps(ctx context.Context, run RunID, ops []ArtifactOp) error
}
