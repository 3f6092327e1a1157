/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes for the admin API. These decouple the internal domain
  model from the external contract; money values are serialized as
  strings to keep decimal precision out of JSON float territory.

NAMING CONVENTION:
  - *DTO: Response types returned to clients

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import (
	"time"

	"github.com/klubkasse/statement-engine/ledger"
	"github.com/klubkasse/statement-engine/statement"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// MemberDTO is a member with their computed balance.
type MemberDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Balance string `json:"balance"`
}

// RunDTO describes a regeneration run.
type RunDTO struct {
	ID          string     `json:"id"`
	Period      int        `json:"period"`
	HasTemplate bool       `json:"has_template"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func runDTO(r ledger.Run) RunDTO {
	return RunDTO{
		ID:          string(r.ID),
		Period:      int(r.Period),
		HasTemplate: r.Template != nil,
		FinalizedAt: r.FinalizedAt,
		CreatedAt:   r.CreatedAt,
	}
}

// StatementDTO is one generated statement artifact.
type StatementDTO struct {
	ID             string `json:"id"`
	Member         string `json:"member"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	RecipientName  string `json:"recipient_name"`
	RecipientEmail string `json:"recipient_email"`
}

func statementDTO(a ledger.StatementArtifact) StatementDTO {
	return StatementDTO{
		ID:             string(a.ID),
		Member:         string(a.Member),
		Subject:        a.Subject,
		Body:           a.Body,
		RecipientName:  a.RecipientName,
		RecipientEmail: a.RecipientEmail,
	}
}

// RegenerateResponse reports what one pass did.
type RegenerateResponse struct {
	Run string `json:"run"`
	statement.Result
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
