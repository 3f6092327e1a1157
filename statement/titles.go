/*
titles.go - Current-title selection and display

PURPOSE:
  A member may hold any number of historical titles. The statement
  greets them with exactly one: the "current" title, chosen by an
  explicit total order rather than an implicit last-write-wins map.

ELIGIBILITY:
  Titles from periods after the run period never count. One designated
  alumni root (EFUIT by default) is stricter still: it only counts in
  exactly its own period.

PRECEDENCE (highest wins):
  1. Most recent period
  2. Rank kind: board before fu before alumni
  3. Board-role order: FORM INKA KASS NF CERM SEKR PR VC, others after
  4. Root label, ascending

DISPLAY:
  A title is displayed as an age prefix plus its root: age 0 is the bare
  root, then G, B, O, TO, and T{n}O for older titles; future titles get
  a K per period.
*/
package statement

import (
	"strconv"
	"strings"

	"github.com/klubkasse/statement-engine/ledger"
)

// =============================================================================
// PRECEDENCE
// =============================================================================

// boardOrder ranks the primary board roles. Roots not listed sort after
// all listed ones, alphabetically.
var boardOrder = map[string]int{
	"FORM": 0, "INKA": 1, "KASS": 2, "NF": 3,
	"CERM": 4, "SEKR": 5, "PR": 6, "VC": 7,
}

func kindOrder(k ledger.RankKind) int {
	switch k {
	case ledger.RankBoard:
		return 0
	case ledger.RankFU:
		return 1
	case ledger.RankAlumni:
		return 2
	}
	return 3
}

func rootOrder(root string) int {
	if o, ok := boardOrder[root]; ok {
		return o
	}
	return len(boardOrder)
}

// titleOutranks reports whether a takes precedence over b.
func titleOutranks(a, b ledger.Title) bool {
	if a.Period != b.Period {
		return a.Period > b.Period
	}
	if ka, kb := kindOrder(a.Kind), kindOrder(b.Kind); ka != kb {
		return ka < kb
	}
	if ra, rb := rootOrder(a.Root), rootOrder(b.Root); ra != rb {
		return ra < rb
	}
	return a.Root < b.Root
}

// =============================================================================
// SELECTION
// =============================================================================

// eligible applies the period rules for one run.
func eligible(t ledger.Title, period ledger.Period, alumniCurrentRoot string) bool {
	if t.Period > period {
		return false
	}
	if t.Root == alumniCurrentRoot && t.Period < period {
		return false
	}
	return true
}

// SelectCurrent picks the member's current title among the given ones,
// or reports that none is eligible.
func SelectCurrent(titles []ledger.Title, period ledger.Period, alumniCurrentRoot string) (ledger.Title, bool) {
	var best ledger.Title
	found := false
	for _, t := range titles {
		if !eligible(t, period, alumniCurrentRoot) {
			continue
		}
		if !found || titleOutranks(t, best) {
			best = t
			found = true
		}
	}
	return best, found
}

// =============================================================================
// DISPLAY
// =============================================================================

// agePrefix returns the honorific prefix for a title held n periods ago.
func agePrefix(age int) string {
	switch {
	case age < 0:
		return strings.Repeat("K", -age)
	case age == 0:
		return ""
	case age == 1:
		return "G"
	case age == 2:
		return "B"
	case age == 3:
		return "O"
	case age == 4:
		return "TO"
	default:
		return "T" + strconv.Itoa(age-3) + "O"
	}
}

// DisplayTitle renders a title relative to the run period, e.g. the
// INKA of two periods ago becomes "BINKA".
func DisplayTitle(t ledger.Title, period ledger.Period) string {
	return agePrefix(t.Age(period)) + t.Root
}
