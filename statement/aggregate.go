/*
aggregate.go - Reducing one member's merged records into a StatementInput

PURPOSE:
  The merge hands over every record for one member; Reduce folds them
  into the flat summary the renderer needs. Each tagged variant has one
  destination:

    Transaction (payment)   -> PaymentTotal (negated: stored negative,
                               shown as a positive credited figure)
    Transaction (other)     -> OtherTotal
    Purchase                -> PurchaseCounts, grouped by category NAME
                               (the same name may recur at different
                               prices across sheets)
    Title                   -> candidate for CurrentTitle
    StatementArtifact       -> Prior (identity preservation, diffing)
    BalanceEntry            -> Balance
    Member                  -> Member

  A member present only in the directory still yields a zeroed Input, so
  the sync stage can decide whether their prior artifact must go.

ERRORS:
  Records for a member missing from the directory, duplicate prior
  artifacts, and unknown record types are all malformed-ledger
  conditions: fatal ComputationErrors, aborting the run.
*/
package statement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/klubkasse/statement-engine/ledger"
)

// =============================================================================
// STATEMENT INPUT
// =============================================================================

// Input is everything known about one member going into rendering.
type Input struct {
	Member         ledger.Member
	Balance        decimal.Decimal
	PaymentTotal   decimal.Decimal // payments this run, as a positive figure
	OtherTotal     decimal.Decimal // misc purchases and corrections this run
	PurchaseCounts map[string]decimal.Decimal
	CurrentTitle   *ledger.Title
	Prior          *ledger.StatementArtifact
}

// Active reports whether the member has any qualifying activity: a
// nonzero balance or any movement this run. Inactive members must not
// have a statement artifact.
func (in Input) Active() bool {
	if !in.Balance.IsZero() || !in.PaymentTotal.IsZero() || !in.OtherTotal.IsZero() {
		return true
	}
	for _, c := range in.PurchaseCounts {
		if !c.IsZero() {
			return true
		}
	}
	return false
}

// =============================================================================
// REDUCE
// =============================================================================

// Reduce folds one merge group into an Input. The run period and alumni
// rule drive current-title selection.
func Reduce(g ledger.Group, period ledger.Period, alumniCurrentRoot string) (Input, error) {
	in := Input{
		Balance:        decimal.Zero,
		PaymentTotal:   decimal.Zero,
		OtherTotal:     decimal.Zero,
		PurchaseCounts: make(map[string]decimal.Decimal),
	}

	var titles []ledger.Title
	haveMember := false

	for _, rec := range g.Records {
		switch r := rec.(type) {
		case ledger.Member:
			in.Member = r
			haveMember = true
		case ledger.Transaction:
			if r.Kind == ledger.TxPayment {
				in.PaymentTotal = in.PaymentTotal.Sub(r.Amount)
			} else {
				in.OtherTotal = in.OtherTotal.Add(r.Amount)
			}
		case ledger.Purchase:
			in.PurchaseCounts[r.Category] = in.PurchaseCounts[r.Category].Add(r.Count)
		case ledger.Title:
			titles = append(titles, r)
		case ledger.StatementArtifact:
			if in.Prior != nil {
				return Input{}, &ledger.ComputationError{
					Member: g.Member,
					Reason: "multiple prior artifacts in one run",
				}
			}
			prior := r
			in.Prior = &prior
		case ledger.BalanceEntry:
			in.Balance = r.Amount
		default:
			return Input{}, &ledger.ComputationError{
				Member: g.Member,
				Reason: fmt.Sprintf("unexpected record type %T in merge", rec),
			}
		}
	}

	if !haveMember {
		return Input{}, &ledger.ComputationError{
			Member: g.Member,
			Reason: "ledger rows reference a member missing from the directory",
		}
	}

	if t, ok := SelectCurrent(titles, period, alumniCurrentRoot); ok {
		in.CurrentTitle = &t
	}
	return in, nil
}
