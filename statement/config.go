/*
Package statement turns the raw ledger into per-member statements.

PURPOSE:
  This package is the statement recomputation engine: it drives one
  merge pass over the ledger, reduces each member's records into a
  summary, normalizes purchase counts into crate units, renders the
  statement template, and decides which statement artifacts must be
  created, updated in place, or deleted.

PIPELINE (once per member, one merge pass per run):
  aggregate.go  -> Input (totals, counts, title, prior artifact, balance)
  normalize.go  -> crate count from price ratios
  render.go     -> subject/body from #TOKEN# template
  sync.go       -> create/update/delete/no-op decision
  engine.go     -> orchestration, atomic apply, logging, metrics

CONFIGURATION:
  All knobs live in RunConfig, passed explicitly into the engine - no
  ambient global state. The TOML file format in this file is the on-disk
  shape; DefaultRunConfig is the canonical club setup.

SEE ALSO:
  - ledger: core types, merge and balance computation
*/
package statement

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/klubkasse/statement-engine/ledger"
)

// =============================================================================
// RUN CONFIGURATION
// =============================================================================

// CategoryNames maps the token vocabulary's three drink tokens onto
// ledger category names.
type CategoryNames struct {
	Beer string `toml:"beer"`
	Soda string `toml:"soda"`
	Gold string `toml:"gold"`
}

// CrateConfig declares which category is the normalized crate unit and
// which categories convert into it via price ratio.
type CrateConfig struct {
	Base        string   `toml:"base"`
	Secondaries []string `toml:"secondaries"`
}

// MailConfig shapes the outbound message headers built in message.go.
type MailConfig struct {
	Sender   string `toml:"sender"`    // envelope sender / Sender header
	ReplyTo  string `toml:"reply_to"`  // From and Reply-To
	ListName string `toml:"list_name"` // mailing-list name for list headers
	Domain   string `toml:"domain"`    // list id domain
}

// RunConfig is the immutable configuration for one regeneration run.
type RunConfig struct {
	// Period is the current accounting year, used when creating runs.
	// Title eligibility and display prefixes follow each run's own
	// period, not this value.
	Period ledger.Period

	// DebtLimit is rendered via the DEBT_LIMIT token.
	DebtLimit decimal.Decimal

	// SignerRoot is the title root whose current holder signs the
	// statements (the SIGNER_NAME token).
	SignerRoot string

	// AlumniCurrentRoot is the alumni title root that is only eligible
	// in its own period (all other titles stay eligible forever).
	AlumniCurrentRoot string

	Categories CategoryNames
	Crates     CrateConfig
	Mail       MailConfig

	// DefaultPrices is the fallback price table used when a run has no
	// purchases at all.
	DefaultPrices []ledger.CategoryPrice
}

// DefaultRunConfig returns the canonical club setup. The default price
// table mirrors the house prices: crates are 25 units of the base
// drink, and a gold crate is a beer crate plus 30 times the gold/beer
// price difference.
func DefaultRunConfig() RunConfig {
	sodaPrice := decimal.RequireFromString("8.00")
	beerPrice := decimal.RequireFromString("10.00")
	goldPrice := decimal.RequireFromString("13.00")
	sodaCrate := sodaPrice.Mul(decimal.NewFromInt(25))
	beerCrate := beerPrice.Mul(decimal.NewFromInt(25))
	goldCrate := beerCrate.Add(goldPrice.Sub(beerPrice).Mul(decimal.NewFromInt(30)))

	return RunConfig{
		DebtLimit:         decimal.RequireFromString("250.00"),
		SignerRoot:        "INKA",
		AlumniCurrentRoot: "EFUIT",
		Categories: CategoryNames{
			Beer: "beer",
			Soda: "soda",
			Gold: "gold",
		},
		Crates: CrateConfig{
			Base:        "beercrate",
			Secondaries: []string{"goldcrate", "sodacrate"},
		},
		Mail: MailConfig{
			Sender:   "books@club.example",
			ReplyTo:  "inka@club.example",
			ListName: "tally",
			Domain:   "club.example",
		},
		DefaultPrices: []ledger.CategoryPrice{
			{Name: "beer", UnitPrice: beerPrice},
			{Name: "beercrate", UnitPrice: beerCrate},
			{Name: "gold", UnitPrice: goldPrice},
			{Name: "goldcrate", UnitPrice: goldCrate},
			{Name: "soda", UnitPrice: sodaPrice},
			{Name: "sodacrate", UnitPrice: sodaCrate},
		},
	}
}

// =============================================================================
// TOML FILE LOADING
// =============================================================================

// fileConfig is the on-disk TOML shape. Prices are strings so they
// parse through decimal without float round-trips.
type fileConfig struct {
	Period            *int           `toml:"period"`
	DebtLimit         string         `toml:"debt_limit"`
	SignerRoot        string         `toml:"signer_root"`
	AlumniCurrentRoot string         `toml:"alumni_current_root"`
	Categories        *CategoryNames `toml:"categories"`
	Crates            *CrateConfig   `toml:"crates"`
	Mail              *MailConfig    `toml:"mail"`
	DefaultPrices     []struct {
		Name  string `toml:"name"`
		Price string `toml:"price"`
	} `toml:"default_prices"`
}

// LoadConfig reads a TOML configuration file over DefaultRunConfig.
// Fields absent from the file keep their defaults.
func LoadConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return RunConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.Period != nil {
		cfg.Period = ledger.Period(*fc.Period)
	}
	if fc.DebtLimit != "" {
		limit, err := decimal.NewFromString(fc.DebtLimit)
		if err != nil {
			return RunConfig{}, fmt.Errorf("parse debt_limit: %w", err)
		}
		cfg.DebtLimit = limit
	}
	if fc.SignerRoot != "" {
		cfg.SignerRoot = fc.SignerRoot
	}
	if fc.AlumniCurrentRoot != "" {
		cfg.AlumniCurrentRoot = fc.AlumniCurrentRoot
	}
	if fc.Categories != nil {
		cfg.Categories = *fc.Categories
	}
	if fc.Crates != nil {
		cfg.Crates = *fc.Crates
	}
	if fc.Mail != nil {
		cfg.Mail = *fc.Mail
	}
	if len(fc.DefaultPrices) > 0 {
		prices := make([]ledger.CategoryPrice, 0, len(fc.DefaultPrices))
		for _, p := range fc.DefaultPrices {
			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				return RunConfig{}, fmt.Errorf("parse default price for %q: %w", p.Name, err)
			}
			prices = append(prices, ledger.CategoryPrice{Name: p.Name, UnitPrice: price})
		}
		cfg.DefaultPrices = prices
	}
	return cfg, nil
}
