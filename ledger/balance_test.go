package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klubkasse/statement-engine/ledger"
	"github.com/klubkasse/statement-engine/ledger/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullPrice(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d(s), Valid: true}
}

func seedLedger(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// jens: 10 beers at 10.00 plus a 250.00 payment.
	mem.AddPurchase(ledger.Purchase{
		Run: "r1", Member: "jens", Category: "øl",
		UnitPrice: nullPrice("10.00"), Count: d("10"), Time: base,
	})
	mem.AddTransaction(ledger.Transaction{
		ID: "t1", Run: "r1", Member: "jens", Kind: ledger.TxPayment,
		Amount: d("-250.00"), Time: base.Add(time.Hour),
	})

	// mette: fractional tally plus a correction.
	mem.AddPurchase(ledger.Purchase{
		Run: "r1", Member: "mette", Category: "sodavand",
		UnitPrice: nullPrice("8.00"), Count: d("2.5"), Time: base,
	})
	mem.AddTransaction(ledger.Transaction{
		ID: "t2", Run: "r1", Member: "mette", Kind: ledger.TxCorrection,
		Amount: d("5.00"), Time: base.Add(2 * time.Hour),
	})

	return mem
}

func TestComputeBalance(t *testing.T) {
	mem := seedLedger(t)

	balances, err := ledger.ComputeBalance(context.Background(), mem, ledger.BalanceQuery{})
	require.NoError(t, err)

	assert.True(t, d("-150.00").Equal(balances["jens"]), "got %s", balances["jens"])
	assert.True(t, d("25.00").Equal(balances["mette"]), "got %s", balances["mette"])
}

func TestComputeBalanceDeterministic(t *testing.T) {
	mem := seedLedger(t)
	ctx := context.Background()

	first, err := ledger.ComputeBalance(ctx, mem, ledger.BalanceQuery{})
	require.NoError(t, err)
	second, err := ledger.ComputeBalance(ctx, mem, ledger.BalanceQuery{})
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for id, amount := range first {
		assert.True(t, amount.Equal(second[id]))
	}
}

func TestComputeBalanceBeforeBound(t *testing.T) {
	mem := seedLedger(t)
	// Strictly before the payment: only the purchases count.
	cut := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	balances, err := ledger.ComputeBalance(context.Background(), mem, ledger.BalanceQuery{Before: &cut})
	require.NoError(t, err)

	assert.True(t, d("100.00").Equal(balances["jens"]), "got %s", balances["jens"])
	assert.True(t, d("20.00").Equal(balances["mette"]), "got %s", balances["mette"])
}

func TestComputeBalanceBoundExcludesRowAtInstant(t *testing.T) {
	mem := seedLedger(t)
	// Exactly the purchase timestamp: the purchase itself is excluded.
	cut := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	balances, err := ledger.ComputeBalance(context.Background(), mem, ledger.BalanceQuery{Before: &cut})
	require.NoError(t, err)

	assert.True(t, balances["jens"].IsZero())
}

func TestComputeBalanceMemberSetSeedsZero(t *testing.T) {
	mem := seedLedger(t)

	balances, err := ledger.ComputeBalance(context.Background(), mem, ledger.BalanceQuery{
		Members: []ledger.MemberID{"jens", "ghost"},
	})
	require.NoError(t, err)

	require.Len(t, balances, 2)
	assert.True(t, d("-150.00").Equal(balances["jens"]))
	assert.True(t, balances["ghost"].IsZero())
	_, present := balances["mette"]
	assert.False(t, present)
}

func TestComputeBalanceAdditiveOverDisjointSets(t *testing.T) {
	// Computing two disjoint member sets separately and jointly must
	// agree member for member: no cross-member leakage either way.
	mem := seedLedger(t)
	ctx := context.Background()

	jens, err := ledger.ComputeBalance(ctx, mem, ledger.BalanceQuery{
		Members: []ledger.MemberID{"jens"},
	})
	require.NoError(t, err)
	mette, err := ledger.ComputeBalance(ctx, mem, ledger.BalanceQuery{
		Members: []ledger.MemberID{"mette"},
	})
	require.NoError(t, err)
	joint, err := ledger.ComputeBalance(ctx, mem, ledger.BalanceQuery{
		Members: []ledger.MemberID{"jens", "mette"},
	})
	require.NoError(t, err)

	union := make(map[ledger.MemberID]decimal.Decimal, len(jens)+len(mette))
	for id, amount := range jens {
		union[id] = amount
	}
	for id, amount := range mette {
		union[id] = amount
	}

	require.Len(t, joint, len(union))
	for id, amount := range union {
		assert.True(t, amount.Equal(joint[id]), "member %s: %s vs %s", id, amount, joint[id])
	}
}

func TestComputeBalanceMissingPriceIsFatal(t *testing.T) {
	mem := store.NewMemory()
	mem.AddPurchase(ledger.Purchase{
		Run: "r1", Member: "jens", Category: "øl",
		Count: d("1"), Time: time.Now(),
	})

	_, err := ledger.ComputeBalance(context.Background(), mem, ledger.BalanceQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrComputation)
}

func TestBalanceSequenceOrdered(t *testing.T) {
	seq := ledger.BalanceSequence(map[ledger.MemberID]decimal.Decimal{
		"c": d("1"),
		"a": d("2"),
		"b": d("3"),
	})
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
