/*
message.go - Outbound mail message construction

PURPOSE:
  Converts a statement artifact into a ready-to-send mail message value:
  addressing, reply-to and the bulk-mail list headers. Actually
  delivering the message is a downstream concern; this engine only
  decides what the message looks like.
*/
package statement

import (
	"fmt"
	"net/mail"

	"github.com/klubkasse/statement-engine/ledger"
)

// Message is an outbound mail message built from a statement artifact.
type Message struct {
	From    string
	ReplyTo string
	To      string
	Subject string
	Body    string
	Headers map[string]string
}

// NewMessage builds the message for one artifact. List headers follow
// the usual bulk-mail conventions so replies and unsubscribes route to
// the sender address.
func NewMessage(a ledger.StatementArtifact, cfg MailConfig) Message {
	to := (&mail.Address{Name: a.RecipientName, Address: a.RecipientEmail}).String()
	listID := fmt.Sprintf("%s.%s", cfg.ListName, cfg.Domain)

	return Message{
		From:    cfg.ReplyTo,
		ReplyTo: cfg.ReplyTo,
		To:      to,
		Subject: a.Subject,
		Body:    a.Body,
		Headers: map[string]string{
			"Sender":                   cfg.Sender,
			"List-Name":                cfg.ListName,
			"List-Id":                  listID,
			"List-Unsubscribe":         fmt.Sprintf("<mailto:%s?subject=unsubscribe%%20%s>", cfg.Sender, cfg.ListName),
			"List-Help":                fmt.Sprintf("<mailto:%s?subject=list-help>", cfg.Sender),
			"List-Subscribe":           fmt.Sprintf("<mailto:%s?subject=subscribe%%20%s>", cfg.Sender, cfg.ListName),
			"Precedence":               "bulk",
			"X-Auto-Response-Suppress": "OOF",
		},
	}
}
