package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klubkasse/statement-engine/ledger"
)

func TestSelectCurrentPrefersRecentPeriod(t *testing.T) {
	title, ok := SelectCurrent([]ledger.Title{
		{Member: "m", Period: 2024, Kind: ledger.RankBoard, Root: "FORM"},
		{Member: "m", Period: 2025, Kind: ledger.RankFU, Root: "FUHØ"},
	}, 2026, "EFUIT")
	require.True(t, ok)
	assert.Equal(t, "FUHØ", title.Root)
}

func TestSelectCurrentBoardBeatsFUWithinPeriod(t *testing.T) {
	title, ok := SelectCurrent([]ledger.Title{
		{Member: "m", Period: 2026, Kind: ledger.RankFU, Root: "FUHØ"},
		{Member: "m", Period: 2026, Kind: ledger.RankBoard, Root: "VC"},
	}, 2026, "EFUIT")
	require.True(t, ok)
	assert.Equal(t, "VC", title.Root)
}

func TestSelectCurrentBoardRoleOrder(t *testing.T) {
	title, ok := SelectCurrent([]ledger.Title{
		{Member: "m", Period: 2026, Kind: ledger.RankBoard, Root: "KASS"},
		{Member: "m", Period: 2026, Kind: ledger.RankBoard, Root: "INKA"},
	}, 2026, "EFUIT")
	require.True(t, ok)
	assert.Equal(t, "INKA", title.Root)
}

func TestSelectCurrentUnlistedRootsSortAlphabetically(t *testing.T) {
	title, ok := SelectCurrent([]ledger.Title{
		{Member: "m", Period: 2026, Kind: ledger.RankBoard, Root: "ZZ"},
		{Member: "m", Period: 2026, Kind: ledger.RankBoard, Root: "AA"},
	}, 2026, "EFUIT")
	require.True(t, ok)
	assert.Equal(t, "AA", title.Root)
}

func TestSelectCurrentIgnoresFutureTitles(t *testing.T) {
	_, ok := SelectCurrent([]ledger.Title{
		{Member: "m", Period: 2027, Kind: ledger.RankBoard, Root: "FORM"},
	}, 2026, "EFUIT")
	assert.False(t, ok)
}

func TestSelectCurrentAlumniRootOnlyInOwnPeriod(t *testing.T) {
	stale := []ledger.Title{
		{Member: "m", Period: 2024, Kind: ledger.RankAlumni, Root: "EFUIT"},
	}
	_, ok := SelectCurrent(stale, 2026, "EFUIT")
	assert.False(t, ok, "stale alumni root must not count")

	current := []ledger.Title{
		{Member: "m", Period: 2026, Kind: ledger.RankAlumni, Root: "EFUIT"},
	}
	title, ok := SelectCurrent(current, 2026, "EFUIT")
	require.True(t, ok)
	assert.Equal(t, "EFUIT", title.Root)
}

func TestSelectCurrentNoTitles(t *testing.T) {
	_, ok := SelectCurrent(nil, 2026, "EFUIT")
	assert.False(t, ok)
}

func TestAgePrefix(t *testing.T) {
	cases := []struct {
		age  int
		want string
	}{
		{-2, "KK"},
		{-1, "K"},
		{0, ""},
		{1, "G"},
		{2, "B"},
		{3, "O"},
		{4, "TO"},
		{5, "T2O"},
		{6, "T3O"},
		{10, "T7O"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, agePrefix(c.age), "age %d", c.age)
	}
}

func TestDisplayTitle(t *testing.T) {
	inka := ledger.Title{Member: "m", Period: 2024, Kind: ledger.RankBoard, Root: "INKA"}
	assert.Equal(t, "BINKA", DisplayTitle(inka, 2026))

	form := ledger.Title{Member: "m", Period: 2026, Kind: ledger.RankBoard, Root: "FORM"}
	assert.Equal(t, "FORM", DisplayTitle(form, 2026))
}
