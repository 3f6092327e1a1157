package statement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klubkasse/statement-engine/ledger"
)

func TestValidateAcceptsVocabulary(t *testing.T) {
	tpl := ledger.Template{
		Subject: "Regning for #NAME#",
		Body:    "Kære #TITLE##NAME#, du skylder #DEBT# kr. Mvh #SIGNER_NAME#",
	}
	assert.NoError(t, Validate(tpl))
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	tpl := ledger.Template{
		Subject: "Regning",
		Body:    "Hello #UNKNOWN#",
	}
	err := Validate(tpl)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrTemplate)

	var terr *ledger.TemplateError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "body", terr.Field)
	assert.Equal(t, "UNKNOWN", terr.Token)
}

func TestValidateRejectsUnknownTokenInSubject(t *testing.T) {
	tpl := ledger.Template{Subject: "#NOPE#", Body: ""}
	var terr *ledger.TemplateError
	require.ErrorAs(t, Validate(tpl), &terr)
	assert.Equal(t, "subject", terr.Field)
}

func TestRenderSubstitutesTokens(t *testing.T) {
	tpl := ledger.Template{
		Subject: "Regning for #NAME#",
		Body:    "Kære #TITLE##NAME#, du skylder #DEBT# kr.",
	}
	member := ledger.Member{ID: "m", Name: "Jensen", Email: "jensen@club.example"}
	ctx := Context{
		TokenName:  "Jensen",
		TokenTitle: "INKA ",
		TokenDebt:  "42,50",
	}

	artifact, err := Render(tpl, "r1", member, ctx)
	require.NoError(t, err)
	assert.Equal(t, "Regning for Jensen", artifact.Subject)
	assert.Equal(t, "Kære INKA Jensen, du skylder 42,50 kr.", artifact.Body)
	assert.Equal(t, "Jensen", artifact.RecipientName)
	assert.Equal(t, "jensen@club.example", artifact.RecipientEmail)
	assert.Empty(t, artifact.ID)
}

func TestRenderMissingContextToken(t *testing.T) {
	tpl := ledger.Template{Subject: "#NAME#", Body: ""}
	_, err := Render(tpl, "r1", ledger.Member{ID: "m"}, Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrTemplate)
}

func TestBuildContextTitleSpacing(t *testing.T) {
	cfg := DefaultRunConfig()
	pt := BuildPriceTable(nil, cfg.DefaultPrices)

	titled := Input{
		Member:         ledger.Member{ID: "m", Name: "Jensen"},
		PurchaseCounts: map[string]decimal.Decimal{},
		CurrentTitle:   &ledger.Title{Member: "m", Period: 2026, Kind: ledger.RankBoard, Root: "INKA"},
	}
	ctx := BuildContext(titled, decimal.Zero, pt, cfg, 2026, "Hansen")
	assert.Equal(t, "INKA ", ctx[TokenTitle])
	assert.Equal(t, "Hansen", ctx[TokenSignerName])

	untitled := titled
	untitled.CurrentTitle = nil
	ctx = BuildContext(untitled, decimal.Zero, pt, cfg, 2026, "")
	assert.Equal(t, "", ctx[TokenTitle])
}

func TestBuildContextTitleAgeFollowsRunPeriod(t *testing.T) {
	// The title prefix is relative to the run's period, regardless of
	// what period the configuration carries.
	cfg := DefaultRunConfig()
	pt := BuildPriceTable(nil, cfg.DefaultPrices)
	in := Input{
		Member:         ledger.Member{ID: "m", Name: "Jensen"},
		PurchaseCounts: map[string]decimal.Decimal{},
		CurrentTitle:   &ledger.Title{Member: "m", Period: 2026, Kind: ledger.RankBoard, Root: "INKA"},
	}

	ctx := BuildContext(in, decimal.Zero, pt, cfg, 2026, "")
	assert.Equal(t, "INKA ", ctx[TokenTitle])

	ctx = BuildContext(in, decimal.Zero, pt, cfg, 2028, "")
	assert.Equal(t, "BINKA ", ctx[TokenTitle])
}

func TestBuildContextFormatsFigures(t *testing.T) {
	cfg := DefaultRunConfig()
	pt := BuildPriceTable([]ledger.CategoryPrice{
		price("beer", "10.00"),
		price("beer", "11.00"),
	}, nil)

	in := Input{
		Member:       ledger.Member{ID: "m", Name: "Jensen"},
		Balance:      d("42.5"),
		PaymentTotal: d("250"),
		PurchaseCounts: map[string]decimal.Decimal{
			"beer": d("8.50"),
		},
	}
	ctx := BuildContext(in, d("2.00"), pt, cfg, 2026, "")

	assert.Equal(t, "42,50", ctx[TokenDebt])
	assert.Equal(t, "250,00", ctx[TokenPaid])
	assert.Equal(t, "8,5", ctx[TokenBeerCount])
	assert.Equal(t, "2", ctx[TokenCrateCount])
	assert.Equal(t, "10,00/11,00", ctx[TokenPriceBeer])
	assert.Equal(t, "250,00", ctx[TokenDebtLimit])
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "42,50", FormatMoney(d("42.5")))
	assert.Equal(t, "0,00", FormatMoney(d("0")))
	assert.Equal(t, "-150,00", FormatMoney(d("-150")))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "8,5", FormatCount(d("8.50")))
	assert.Equal(t, "2", FormatCount(d("2.00")))
	assert.Equal(t, "0", FormatCount(d("0")))
	assert.Equal(t, "0,25", FormatCount(d("0.25")))
}

func TestFormatPriceSet(t *testing.T) {
	assert.Equal(t, "", FormatPriceSet(nil))
	assert.Equal(t, "10,00", FormatPriceSet([]decimal.Decimal{d("10")}))
	assert.Equal(t, "10,00/11,00", FormatPriceSet([]decimal.Decimal{d("10"), d("11")}))
}
