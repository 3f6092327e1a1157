/*
balance.go - Balance computation from the full ledger history

PURPOSE:
  Computes each member's signed balance by replaying every purchase and
  transaction. Balance is a derived value, never stored: recomputing it
  over the same ledger state always yields the same result.

SIGN CONVENTION:
  Positive = the member owes money. Purchases add count × historical
  unit price; transaction amounts are added as recorded (payments carry
  negative amounts).

BOUNDING:
  Both dimensions are optional. A time bound keeps rows strictly before
  the given instant. A member bound restricts the result to the given
  set AND pre-seeds every listed member with zero, so absent members are
  distinguishable from unbounded queries, where members with no activity
  are simply absent (callers treat "absent" as zero).

ERRORS:
  The only failure is malformed ledger data - a purchase referencing a
  category without a price. That is fatal for the whole computation.

SEE ALSO:
  - types.go: Purchase.Amount, sign conventions
  - statement/engine.go: feeds the result into the merge as a sequence
*/
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE QUERY
// =============================================================================

// BalanceQuery bounds a balance computation. The zero value means the
// full ledger for all members.
type BalanceQuery struct {
	// Members restricts the computation to these members. When set, every
	// listed member appears in the result, with zero if inactive.
	Members []MemberID

	// Before keeps only rows with timestamp strictly before this instant.
	Before *time.Time
}

// =============================================================================
// COMPUTE
// =============================================================================

// ComputeBalance replays the ledger into a balance per member.
func ComputeBalance(ctx context.Context, st Store, q BalanceQuery) (map[MemberID]decimal.Decimal, error) {
	balances := make(map[MemberID]decimal.Decimal)

	var bounded map[MemberID]bool
	if q.Members != nil {
		bounded = make(map[MemberID]bool, len(q.Members))
		for _, id := range q.Members {
			bounded[id] = true
			balances[id] = decimal.Zero
		}
		if len(bounded) == 0 {
			return balances, nil
		}
	}

	purchases, err := st.AllPurchases(ctx)
	if err != nil {
		return nil, err
	}
	defer purchases.Close()
	for {
		rec, ok, err := purchases.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		p := rec.(Purchase)
		if q.Before != nil && !p.Time.Before(*q.Before) {
			continue
		}
		if bounded != nil && !bounded[p.Member] {
			continue
		}
		amount, err := p.Amount()
		if err != nil {
			return nil, err
		}
		balances[p.Member] = balances[p.Member].Add(amount)
	}

	transactions, err := st.AllTransactions(ctx)
	if err != nil {
		return nil, err
	}
	defer transactions.Close()
	for {
		rec, ok, err := transactions.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		t := rec.(Transaction)
		if q.Before != nil && !t.Time.Before(*q.Before) {
			continue
		}
		if bounded != nil && !bounded[t.Member] {
			continue
		}
		balances[t.Member] = balances[t.Member].Add(t.Amount)
	}

	return balances, nil
}

// BalanceSequence sorts a balance map into a member-ordered Sequence so
// computed balances can join the merge alongside the stored sequences.
func BalanceSequence(balances map[MemberID]decimal.Decimal) Sequence {
	entries := make([]Record, 0, len(balances))
	for id, amount := range balances {
		entries = append(entries, BalanceEntry{Member: id, Amount: amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].MemberKey() < entries[j].MemberKey()
	})
	return NewSliceSequence(entries)
}
