/*
render.go - Template validation, token substitution and locale formatting

PURPOSE:
  Statements are rendered from a template whose subject and body contain
  #TOKEN# placeholders from a fixed vocabulary. Validation runs once,
  before any per-member work: a template with an unknown token cannot
  succeed for anyone, so it fails the run up front.

FORMATTING RULES:
  Money   fixed two decimals, comma separator:   42.50  -> "42,50"
  Counts  trimmed, comma separator:              8.50   -> "8,5"
                                                 2.00   -> "2"
  Price sets  sorted distinct values joined by "/": "10,00/11,00"

TOKEN SEMANTICS:
  TITLE expands to the display title plus a trailing space, or to the
  empty string for untitled members, so "#TITLE##NAME#" reads naturally
  either way.
*/
package statement

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/klubkasse/statement-engine/ledger"
)

// =============================================================================
// TOKEN VOCABULARY
// =============================================================================

const (
	TokenTitle      = "TITLE"
	TokenName       = "NAME"
	TokenPaid       = "PAID"
	TokenOther      = "OTHER"
	TokenPriceBeer  = "PRICE_BEER"
	TokenPriceSoda  = "PRICE_SODA"
	TokenPriceGold  = "PRICE_GOLD"
	TokenPriceCrate = "PRICE_CRATE"
	TokenDebt       = "DEBT"
	TokenDebtLimit  = "DEBT_LIMIT"
	TokenBeerCount  = "BEER_COUNT"
	TokenSodaCount  = "SODA_COUNT"
	TokenGoldCount  = "GOLD_COUNT"
	TokenCrateCount = "CRATE_COUNT"
	TokenSignerName = "SIGNER_NAME"
)

// vocabulary is the closed token set templates may use.
var vocabulary = map[string]bool{
	TokenTitle: true, TokenName: true, TokenPaid: true, TokenOther: true,
	TokenPriceBeer: true, TokenPriceSoda: true, TokenPriceGold: true,
	TokenPriceCrate: true, TokenDebt: true, TokenDebtLimit: true,
	TokenBeerCount: true, TokenSodaCount: true, TokenGoldCount: true,
	TokenCrateCount: true, TokenSignerName: true,
}

var tokenPattern = regexp.MustCompile(`#([^#]*)#`)

// =============================================================================
// VALIDATION AND RENDERING
// =============================================================================

// Validate checks both template fields against the vocabulary. Called
// once per run, before any artifact is touched.
func Validate(tpl ledger.Template) error {
	for _, f := range []struct{ name, text string }{
		{"subject", tpl.Subject},
		{"body", tpl.Body},
	} {
		for _, match := range tokenPattern.FindAllStringSubmatch(f.text, -1) {
			if !vocabulary[match[1]] {
				return &ledger.TemplateError{Field: f.name, Token: match[1]}
			}
		}
	}
	return nil
}

// Context maps tokens to their rendered values for one member.
type Context map[string]string

// render substitutes every #TOKEN# occurrence. A token missing from the
// context is a template error; after Validate this cannot happen for
// vocabulary tokens, so it guards against an incomplete context.
func render(field, text string, ctx Context) (string, error) {
	var missing string
	out := tokenPattern.ReplaceAllStringFunc(text, func(m string) string {
		token := m[1 : len(m)-1]
		v, ok := ctx[token]
		if !ok && missing == "" {
			missing = token
		}
		return v
	})
	if missing != "" {
		return "", &ledger.TemplateError{Field: field, Token: missing}
	}
	return out, nil
}

// Render produces the statement artifact content for one member. The
// artifact ID is left unset; the sync stage assigns or preserves it.
func Render(tpl ledger.Template, run ledger.RunID, member ledger.Member, ctx Context) (ledger.StatementArtifact, error) {
	subject, err := render("subject", tpl.Subject, ctx)
	if err != nil {
		return ledger.StatementArtifact{}, err
	}
	body, err := render("body", tpl.Body, ctx)
	if err != nil {
		return ledger.StatementArtifact{}, err
	}
	return ledger.StatementArtifact{
		Run:            run,
		Member:         member.ID,
		Subject:        subject,
		Body:           body,
		RecipientName:  member.Name,
		RecipientEmail: member.Email,
	}, nil
}

// =============================================================================
// CONTEXT ASSEMBLY
// =============================================================================

// BuildContext assembles the full token context for one member. The
// period is the run's period; title age prefixes are relative to it,
// matching the eligibility decision made during aggregation.
func BuildContext(in Input, crates decimal.Decimal, pt PriceTable, cfg RunConfig, period ledger.Period, signer string) Context {
	title := ""
	if in.CurrentTitle != nil {
		title = DisplayTitle(*in.CurrentTitle, period) + " "
	}
	return Context{
		TokenTitle:      title,
		TokenName:       in.Member.Name,
		TokenPaid:       FormatMoney(in.PaymentTotal),
		TokenOther:      FormatMoney(in.OtherTotal),
		TokenPriceBeer:  FormatPriceSet(pt.Prices(cfg.Categories.Beer)),
		TokenPriceSoda:  FormatPriceSet(pt.Prices(cfg.Categories.Soda)),
		TokenPriceGold:  FormatPriceSet(pt.Prices(cfg.Categories.Gold)),
		TokenPriceCrate: FormatPriceSet(pt.Prices(cfg.Crates.Base)),
		TokenDebt:       FormatMoney(in.Balance),
		TokenDebtLimit:  FormatMoney(cfg.DebtLimit),
		TokenBeerCount:  FormatCount(in.PurchaseCounts[cfg.Categories.Beer]),
		TokenSodaCount:  FormatCount(in.PurchaseCounts[cfg.Categories.Soda]),
		TokenGoldCount:  FormatCount(in.PurchaseCounts[cfg.Categories.Gold]),
		TokenCrateCount: FormatCount(crates),
		TokenSignerName: signer,
	}
}

// =============================================================================
// LOCALE FORMATTING
// =============================================================================

// FormatMoney renders a money amount with two decimals and a comma
// separator: 42.5 -> "42,50".
func FormatMoney(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// FormatCount renders a count trimmed of trailing zeros with a comma
// separator: 8.50 -> "8,5", 2.00 -> "2".
func FormatCount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return strings.Replace(s, ".", ",", 1)
}

// FormatPriceSet renders sorted distinct prices joined by "/".
func FormatPriceSet(prices []decimal.Decimal) string {
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = FormatMoney(p)
	}
	return strings.Join(parts, "/")
}
