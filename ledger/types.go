/*
Package ledger provides the core club accounting engine.

PURPOSE:
  This package contains the domain types and algorithms for the club's
  tally ledger: members accrue debt through tallied purchases, reduce it
  through payments, and periodically an administrator regenerates a
  personalized statement per member. The engine here computes balances,
  merge-joins the ledger by member, and defines the artifact operations
  that keep generated statements in sync with the books.

KEY CONCEPTS IN THIS FILE (types.go):
  - Member: directory entry (id, display name, optional email)
  - Title: honorific held by a member for one period (board, fu, alumni)
  - Purchase: one tallied row (category, historical unit price, count)
  - Transaction: payment / misc purchase / correction, signed amount
  - Run: one statement regeneration batch, finalized (sent) exactly once
  - StatementArtifact: the generated statement, the only entity this
    engine mutates
  - Record: the closed tagged-variant set the k-way merge operates on

DESIGN PRINCIPLES:
  1. Immutability: Purchases and transactions are append-only inputs
  2. Precision: decimal.Decimal everywhere, no floating point
  3. Determinism: balance is a pure function of the ledger
  4. Diff-aware output: artifacts are created, updated in place or
     deleted based on content comparison, never rewritten blindly

SEE ALSO:
  - balance.go: balance computation from the full history
  - merge.go: streaming k-way merge-join by member key
  - store.go: persistence interface
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MemberID string
type RunID string
type ArtifactID string

// Period is an accounting year. Titles and runs belong to a period; the
// difference between the run period and a title period is the title's age.
type Period int

// =============================================================================
// MEMBER DIRECTORY (read-only here, owned by an external directory)
// =============================================================================

type Member struct {
	ID    MemberID
	Name  string
	Email string // empty when the member has no contact address
}

// HasEmail reports whether a statement can be addressed to this member.
func (m Member) HasEmail() bool { return m.Email != "" }

// =============================================================================
// TITLES - honorifics, immutable historical record
// =============================================================================

type RankKind string

const (
	RankBoard  RankKind = "board"  // primary board roles (FORM, INKA, KASS, ...)
	RankFU     RankKind = "fu"     // fu roles
	RankAlumni RankKind = "alumni" // emeritus roles
)

type Title struct {
	Member MemberID
	Period Period
	Kind   RankKind
	Root   string // root label, e.g. "INKA", "FUHØ", "EFUIT"
}

// Age returns how many periods ago this title was held.
func (t Title) Age(current Period) int { return int(current - t.Period) }

// =============================================================================
// PURCHASES - tallied rows, price frozen at purchase time
// =============================================================================

// Purchase is one tally-sheet row entry. The unit price is the price that
// was in effect when the purchase was recorded; normalization and balance
// computation must use it, never a current catalogue price. A missing
// price (broken category reference) makes the row unusable.
type Purchase struct {
	Run       RunID
	Member    MemberID
	Category  string // category name; the same name may recur at different prices
	UnitPrice decimal.NullDecimal
	Count     decimal.Decimal // fractional, >= 0 (partially filled tally marks)
	Time      time.Time
}

// Amount returns count × historical unit price.
func (p Purchase) Amount() (decimal.Decimal, error) {
	if !p.UnitPrice.Valid {
		return decimal.Zero, &ComputationError{
			Member:   p.Member,
			Category: p.Category,
			Reason:   "purchase references a category without a price",
		}
	}
	return p.Count.Mul(p.UnitPrice.Decimal), nil
}

// CategoryPrice is one (name, unit price) pair from a run's price catalogue.
type CategoryPrice struct {
	Name      string
	UnitPrice decimal.Decimal
}

// =============================================================================
// TRANSACTIONS - payments, misc purchases, corrections
// =============================================================================

type TransactionKind string

const (
	TxPayment    TransactionKind = "payment"
	TxPurchase   TransactionKind = "purchase" // misc purchase outside the tally sheets
	TxCorrection TransactionKind = "correction"
)

// Transaction is a signed ledger entry. Payments carry negative amounts
// (balance is a plain sum of amounts and payments reduce it); purchases
// and corrections carry the sign of their effect on the debt.
type Transaction struct {
	ID     string
	Run    RunID
	Member MemberID
	Kind   TransactionKind
	Time   time.Time
	Amount decimal.Decimal
	Note   string // free text, overrides the kind label when displayed
}

// KindLabel returns the display label, preferring the free-text note.
func (t Transaction) KindLabel() string {
	if t.Note != "" {
		return t.Note
	}
	switch t.Kind {
	case TxPayment:
		return "Betaling"
	case TxPurchase:
		return "Diverse køb"
	case TxCorrection:
		return "Korrigering"
	}
	return ""
}

// =============================================================================
// RUNS AND TEMPLATES
// =============================================================================

// Template is the statement template for a run. Subject and body contain
// #TOKEN# placeholders from the fixed statement vocabulary.
type Template struct {
	Subject string
	Body    string
}

// Run is one regeneration batch. A run without a template cannot be
// regenerated; a finalized (sent) run can never be regenerated again.
type Run struct {
	ID          RunID
	Period      Period
	Template    *Template
	FinalizedAt *time.Time
	CreatedAt   time.Time
}

func (r Run) Finalized() bool { return r.FinalizedAt != nil }

// =============================================================================
// STATEMENT ARTIFACTS - the only entity this engine writes
// =============================================================================

type StatementArtifact struct {
	ID             ArtifactID
	Run            RunID
	Member         MemberID
	Subject        string
	Body           string
	RecipientName  string
	RecipientEmail string
}

// SameContent reports whether two artifacts are identical on all four
// content fields. Identity (ID) is deliberately excluded: an update in
// place keeps the identity and changes the content.
func (a StatementArtifact) SameContent(b StatementArtifact) bool {
	return a.Subject == b.Subject &&
		a.Body == b.Body &&
		a.RecipientName == b.RecipientName &&
		a.RecipientEmail == b.RecipientEmail
}

// =============================================================================
// ARTIFACT OPERATIONS - output of a regeneration pass
// =============================================================================

type ArtifactOpKind string

const (
	OpCreate ArtifactOpKind = "create"
	OpUpdate ArtifactOpKind = "update" // in place, identity preserved
	OpDelete ArtifactOpKind = "delete"
)

// ArtifactOp is one create/update/delete decision. For updates the
// artifact carries the prior artifact's ID with the new content; for
// deletes only the ID matters.
type ArtifactOp struct {
	Kind     ArtifactOpKind
	Artifact StatementArtifact
}

// =============================================================================
// BALANCE - derived, never stored
// =============================================================================

// BalanceEntry pairs a member with their computed balance so balances
// can participate in the merge like any other sequence.
type BalanceEntry struct {
	Member MemberID
	Amount decimal.Decimal
}

// =============================================================================
// RECORD - the closed variant set consumed by the merge
// =============================================================================

// Record is implemented by every row type that flows through the k-way
// merge. The member key is the uniform accessor the merge groups by.
// The set of implementations is closed; consumers type-switch over it
// and treat any other type as a computation error.
type Record interface {
	MemberKey() MemberID
}

func (m Member) MemberKey() MemberID            { return m.ID }
func (t Title) MemberKey() MemberID             { return t.Member }
func (p Purchase) MemberKey() MemberID          { return p.Member }
func (t Transaction) MemberKey() MemberID       { return t.Member }
func (a StatementArtifact) MemberKey() MemberID { return a.Member }
func (b BalanceEntry) MemberKey() MemberID      { return b.Member }
