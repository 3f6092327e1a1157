/*
engine.go - One regeneration pass over the whole ledger

PURPOSE:
  Orchestrates the pipeline: preconditions, template validation, balance
  computation, one k-way merge over {members, titles, transactions,
  purchases, prior artifacts, balances}, then per member
  aggregate -> normalize -> render -> decide, and finally one atomic
  apply of the whole op set.

CONSISTENCY:
  Nothing is written until every member has been processed. Any
  computation error aborts the run with zero writes - consistency of
  the whole run outranks partial progress. The store re-checks "run not
  finalized" inside the apply transaction; the engine additionally
  serializes regenerations of the same run in-process, while different
  runs proceed independently.

CANCELLATION:
  The context is checked between member groups. An aborted pass has
  written nothing and can simply be re-run.
*/
package statement

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/klubkasse/statement-engine/ledger"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store   ledger.Store
	Config  RunConfig
	Log     *logrus.Logger
	Metrics *Metrics // optional

	mu       sync.Mutex
	runLocks map[ledger.RunID]*sync.Mutex
}

func NewEngine(store ledger.Store, cfg RunConfig, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		Store:    store,
		Config:   cfg,
		Log:      log,
		runLocks: make(map[ledger.RunID]*sync.Mutex),
	}
}

// Result summarizes one regeneration pass.
type Result struct {
	Members int `json:"members"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// lockRun serializes regenerations of one run within this process.
func (e *Engine) lockRun(id ledger.RunID) func() {
	e.mu.Lock()
	l, ok := e.runLocks[id]
	if !ok {
		l = &sync.Mutex{}
		e.runLocks[id] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// =============================================================================
// REGENERATE
// =============================================================================

// Regenerate recomputes every statement artifact for a run.
func (e *Engine) Regenerate(ctx context.Context, runID ledger.RunID) (Result, error) {
	defer e.lockRun(runID)()
	started := time.Now()

	result, err := e.regenerate(ctx, runID)
	if err != nil {
		if e.Metrics != nil {
			e.Metrics.RunErrors.Inc()
		}
		e.Log.WithFields(logrus.Fields{
			"run":   runID,
			"error": err,
		}).Error("statement regeneration failed")
		return Result{}, err
	}

	if e.Metrics != nil {
		e.Metrics.observe(result)
	}
	e.Log.WithFields(logrus.Fields{
		"run":      runID,
		"members":  result.Members,
		"created":  result.Created,
		"updated":  result.Updated,
		"deleted":  result.Deleted,
		"duration": time.Since(started),
	}).Info("statement regeneration complete")
	return result, nil
}

func (e *Engine) regenerate(ctx context.Context, runID ledger.RunID) (Result, error) {
	run, err := e.Store.Run(ctx, runID)
	if err != nil {
		return Result{}, err
	}
	if run.Template == nil {
		return Result{}, &ledger.PreconditionError{Run: runID, Err: ledger.ErrNoTemplate}
	}
	if run.Finalized() {
		return Result{}, &ledger.PreconditionError{Run: runID, Err: ledger.ErrRunFinalized}
	}
	if err := Validate(*run.Template); err != nil {
		return Result{}, err
	}

	balances, err := ledger.ComputeBalance(ctx, e.Store, ledger.BalanceQuery{})
	if err != nil {
		return Result{}, err
	}

	observed, err := e.Store.PurchasePrices(ctx, runID)
	if err != nil {
		return Result{}, err
	}
	prices := BuildPriceTable(observed, e.Config.DefaultPrices)

	signer, err := e.signerName(ctx, run.Period)
	if err != nil {
		return Result{}, err
	}

	merge, err := e.openMerge(ctx, runID, balances)
	if err != nil {
		return Result{}, err
	}
	defer merge.Close()

	var (
		result Result
		ops    []ledger.ArtifactOp
	)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		group, ok, err := merge.Next()
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}
		result.Members++

		op, ok, err := e.memberOp(group, run, prices, signer)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			continue
		}
		ops = append(ops, op)
		switch op.Kind {
		case ledger.OpCreate:
			result.Created++
		case ledger.OpUpdate:
			result.Updated++
		case ledger.OpDelete:
			result.Deleted++
		}
	}

	if len(ops) > 0 {
		if err := e.Store.ApplyArtifactOps(ctx, runID, ops); err != nil {
			return Result{}, err
		}
	}
	return result, nil
}

// memberOp runs the per-member stages and resolves the artifact action.
func (e *Engine) memberOp(group ledger.Group, run ledger.Run, prices PriceTable, signer string) (ledger.ArtifactOp, bool, error) {
	in, err := Reduce(group, run.Period, e.Config.AlumniCurrentRoot)
	if err != nil {
		return ledger.ArtifactOp{}, false, err
	}

	// Inactive or unaddressable members never render; their only
	// possible op is deleting a leftover artifact.
	if !in.Active() || !in.Member.HasEmail() {
		op, ok := Decide(in.Prior, nil)
		return op, ok, nil
	}

	crates, err := NormalizeCrates(in.Member.ID, in.PurchaseCounts, prices, e.Config.Crates)
	if err != nil {
		return ledger.ArtifactOp{}, false, err
	}

	rendered, err := Render(*run.Template, run.ID, in.Member,
		BuildContext(in, crates, prices, e.Config, run.Period, signer))
	if err != nil {
		return ledger.ArtifactOp{}, false, err
	}

	op, ok := Decide(in.Prior, &rendered)
	return op, ok, nil
}

// =============================================================================
// SIGNER LOOKUP
// =============================================================================

// signerName finds the display name of the member holding the signer
// title for the given period. Empty when the post is vacant.
func (e *Engine) signerName(ctx context.Context, period ledger.Period) (string, error) {
	titles, err := e.Store.Titles(ctx)
	if err != nil {
		return "", err
	}
	defer titles.Close()

	var holder ledger.MemberID
	for {
		rec, ok, err := titles.Next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		t := rec.(ledger.Title)
		if t.Root == e.Config.SignerRoot && t.Period == period {
			holder = t.Member
			break
		}
	}
	if holder == "" {
		return "", nil
	}

	members, err := e.Store.Members(ctx)
	if err != nil {
		return "", err
	}
	defer members.Close()
	for {
		rec, ok, err := members.Next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		m := rec.(ledger.Member)
		if m.ID == holder {
			return m.Name, nil
		}
	}
	return "", nil
}

// =============================================================================
// FINALIZE
// =============================================================================

// Finalize marks a run's artifacts as sent. After this, regeneration of
// the run is a hard error.
func (e *Engine) Finalize(ctx context.Context, runID ledger.RunID) error {
	defer e.lockRun(runID)()
	if err := e.Store.FinalizeRun(ctx, runID, time.Now().UTC()); err != nil {
		return err
	}
	e.Log.WithField("run", runID).Info("run finalized")
	return nil
}

// =============================================================================
// SEQUENCE ASSEMBLY
// =============================================================================

// openMerge assembles the six sequences of one pass. On failure all
// sequences opened so far are closed.
func (e *Engine) openMerge(ctx context.Context, runID ledger.RunID, balances map[ledger.MemberID]decimal.Decimal) (*ledger.Merge, error) {
	var seqs []ledger.Sequence
	closeAll := func() {
		for _, s := range seqs {
			s.Close()
		}
	}

	for _, open := range []func(context.Context) (ledger.Sequence, error){
		e.Store.Members,
		e.Store.Titles,
		func(ctx context.Context) (ledger.Sequence, error) { return e.Store.Transactions(ctx, runID) },
		func(ctx context.Context) (ledger.Sequence, error) { return e.Store.Purchases(ctx, runID) },
		func(ctx context.Context) (ledger.Sequence, error) { return e.Store.Artifacts(ctx, runID) },
	} {
		seq, err := open(ctx)
		if err != nil {
			closeAll()
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	seqs = append(seqs, ledger.BalanceSequence(balances))

	merge, err := ledger.NewMerge(seqs...)
	if err != nil {
		// NewMerge closes the sequences it was handed on failure.
		return nil, err
	}
	return merge, nil
}
