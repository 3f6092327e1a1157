/*
sync.go - Idempotent create/update/delete decision per member

PURPOSE:
  After rendering, each member resolves to exactly one action on their
  statement artifact. The decision table:

    prior | activity | address | content    | action
    ------+----------+---------+------------+------------------
    no    | no       | -       |            | no-op
    no    | yes      | no      |            | no-op
    no    | yes      | yes     |            | create
    yes   | no       | -       |            | delete
    yes   | yes      | no      |            | delete
    yes   | yes      | yes     | unchanged  | no-op
    yes   | yes      | yes     | changed    | update in place

  Update preserves the prior artifact's identity: the id is reused with
  the new content, expressed as an explicit op rather than an implicit
  primary-key mutation. Running the same decision twice over an
  unchanged ledger therefore yields no ops at all.
*/
package statement

import (
	"github.com/google/uuid"

	"github.com/klubkasse/statement-engine/ledger"
)

// Decide resolves one member's artifact action. rendered is nil exactly
// when the member is inactive or unaddressable (nothing was rendered
// for them); prior is nil when no artifact exists for this run yet.
func Decide(prior *ledger.StatementArtifact, rendered *ledger.StatementArtifact) (ledger.ArtifactOp, bool) {
	if rendered == nil {
		if prior == nil {
			return ledger.ArtifactOp{}, false
		}
		return ledger.ArtifactOp{Kind: ledger.OpDelete, Artifact: *prior}, true
	}

	if prior == nil {
		next := *rendered
		next.ID = ledger.ArtifactID(uuid.NewString())
		return ledger.ArtifactOp{Kind: ledger.OpCreate, Artifact: next}, true
	}

	if prior.SameContent(*rendered) {
		return ledger.ArtifactOp{}, false
	}

	next := *rendered
	next.ID = prior.ID // update in place, identity preserved
	return ledger.ArtifactOp{Kind: ledger.OpUpdate, Artifact: next}, true
}
