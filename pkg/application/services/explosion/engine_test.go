package explosion_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mfgplan/pkg/application/services/batchplan"
	"github.com/vsinha/mfgplan/pkg/application/services/explosion"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/infrastructure/repositories/gormstore"
	fixtures "github.com/vsinha/mfgplan/pkg/infrastructure/testing"
)

// plannedJuice seeds the juice scenario and builds its June batch plan so
// the RM tier has roots
func plannedJuice(t *testing.T) *gormstore.Store {
	t.Helper()
	ctx := context.Background()
	store := fixtures.NewTestStore(t)
	fixtures.BuildJuiceScenario(t, store)

	builder := batchplan.NewBuilder(store, nil, nil)
	header, err := builder.CreateHeader(ctx, "June", fixtures.June, fixtures.June)
	require.NoError(t, err)
	summary, err := builder.BuildPlan(ctx, header.ID, fixtures.June, fixtures.June)
	require.NoError(t, err)
	require.Empty(t, summary.Failures)
	return store
}

func totalsByItem(totals []entities.RequirementTotal) map[string]string {
	out := make(map[string]string, len(totals))
	for _, t := range totals {
		out[t.StockItemID] = t.Gross.String()
	}
	return out
}

func TestExplode_JuiceScenario(t *testing.T) {
	store := plannedJuice(t)
	engine := explosion.NewEngine(store, nil)

	result, err := engine.Explode(context.Background(), fixtures.June, explosion.Scope{})
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 3, result.Roots)

	assert.Equal(t, map[string]string{
		"PULP":   "315",
		"WATER":  "714",
		"SUGAR":  "126",
		"BOTTLE": "1500",
		"CAP":    "1500",
		"LABEL":  "1020",
		"SLEEVE": "1000",
	}, totalsByItem(result.Totals))

	require.Len(t, result.Details, 10)
	var order []string
	for i, d := range result.Details {
		assert.Equal(t, i+1, d.Seq)
		order = append(order, d.RootID+"/"+d.StockItemID)
	}
	assert.Equal(t, []string{
		"P-JUICE/SUGAR", "P-JUICE/WATER", "P-JUICE/PULP", "P-JUICE/WATER",
		"SKU-1L/BOTTLE", "SKU-1L/CAP", "SKU-1L/LABEL", "SKU-1L/SLEEVE",
		"SKU-1L-PLAIN/BOTTLE", "SKU-1L-PLAIN/CAP",
	}, order)
}

func TestExplode_LineageMultipliesToGross(t *testing.T) {
	store := plannedJuice(t)
	engine := explosion.NewEngine(store, nil)

	result, err := engine.Explode(context.Background(), fixtures.June, explosion.Scope{})
	require.NoError(t, err)

	for _, d := range result.Details {
		require.NotEmpty(t, d.Lineage)
		assert.Equal(t, 0, d.Lineage[0].Level)
		assert.Equal(t, d.RootID, d.Lineage[0].ItemID)
		assert.Equal(t, d.StockItemID, d.Lineage[len(d.Lineage)-1].ItemID)
		assert.True(t, entities.LineageProduct(d.Lineage).Equal(d.GrossRequiredQty),
			"lineage of %s/%s multiplies to %s, gross %s", d.RootID, d.StockItemID, entities.LineageProduct(d.Lineage), d.GrossRequiredQty)
	}

	sugar := result.Details[0]
	require.Len(t, sugar.Lineage, 3)
	assert.True(t, sugar.Lineage[0].Multiplier.Equal(fixtures.Dec("1050")))
	assert.Equal(t, "P-JUICE", sugar.Lineage[1].ParentItemID)
	assert.Equal(t, "SYRUP", sugar.Lineage[1].ItemID)
	assert.True(t, sugar.Lineage[1].Multiplier.Equal(fixtures.Dec("0.2")))
	assert.Equal(t, "SYRUP", sugar.Lineage[2].ParentItemID)
	// 6000 g per 10 kg of syrup, converted to the item's kg
	assert.True(t, sugar.Lineage[2].Multiplier.Equal(fixtures.Dec("0.6")))
}

func TestExplode_ProcessLossInflatesInputs(t *testing.T) {
	store := plannedJuice(t)
	fixtures.Seed(t, store, []*entities.BOMHeader{
		{ID: "SP-SYRUP", Kind: entities.BOMKindSP, OwnerID: "SYRUP", ReferenceOutputQty: fixtures.Dec("10"),
			ReferenceOutputUnitID: "kg", ProcessLossPct: fixtures.Dec("20")},
	})

	result, err := explosion.NewEngine(store, nil).Explode(context.Background(), fixtures.June, explosion.Scope{})
	require.NoError(t, err)

	totals := totalsByItem(result.Totals)
	// 210 kg syrup needs 210 / 0.8 = 262.5 kg of input
	assert.Equal(t, "157.5", totals["SUGAR"])
	assert.Equal(t, "735", totals["WATER"])
	assert.Equal(t, "315", totals["PULP"])
}

func TestExplode_CycleFailsOnlyItsRoot(t *testing.T) {
	store := plannedJuice(t)
	fixtures.Seed(t, store,
		[]*entities.BOMHeader{
			{ID: "SP-SUGAR", Kind: entities.BOMKindSP, OwnerID: "SUGAR", ReferenceOutputQty: fixtures.Dec("1"), ReferenceOutputUnitID: "kg"},
		},
		[]*entities.BOMLine{
			{HeaderID: "SP-SUGAR", LineNo: 1, StockItemID: "SYRUP", QtyPerReference: fixtures.Dec("1"), UnitID: "kg"},
		},
	)

	result, err := explosion.NewEngine(store, nil).Explode(context.Background(), fixtures.June, explosion.Scope{})
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "RM:P-JUICE", result.Failures[0].Key)
	assert.Equal(t, "consistency", result.Failures[0].Kind)
	assert.Contains(t, result.Failures[0].Error, "SYRUP -> SUGAR -> SYRUP")

	assert.Equal(t, 2, result.Roots)
	require.Len(t, result.Details, 6)
	for i, d := range result.Details {
		assert.Equal(t, entities.TierPLM, d.RootTier)
		assert.Equal(t, i+1, d.Seq)
	}
	_, hasPulp := totalsByItem(result.Totals)["PULP"]
	assert.False(t, hasPulp)
}

func TestExplode_UnknownItemIsWarningNotFailure(t *testing.T) {
	store := plannedJuice(t)
	fixtures.Seed(t, store, []*entities.BOMLine{
		{HeaderID: "RM-JUICE", LineNo: 4, StockItemID: "GHOST", QtyPerReference: fixtures.Dec("1"), UnitID: "kg"},
		{HeaderID: "SP-SYRUP", LineNo: 3, StockItemID: "GHOST", QtyPerReference: fixtures.Dec("1"), UnitID: "kg"},
	})

	result, err := explosion.NewEngine(store, nil).Explode(context.Background(), fixtures.June, explosion.Scope{})
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
	require.Len(t, result.Warnings, 2)
	for _, w := range result.Warnings {
		assert.Equal(t, entities.WarningUnmappedStockItem, w.Kind)
	}
	assert.Equal(t, "RM-JUICE/GHOST", result.Warnings[1].Key)
	assert.Equal(t, "126", totalsByItem(result.Totals)["SUGAR"])
}

func TestExplode_MissingConversionFailsRoot(t *testing.T) {
	store := plannedJuice(t)
	fixtures.Seed(t, store, []*entities.BOMLine{
		{HeaderID: "RM-JUICE", LineNo: 4, StockItemID: "BOTTLE", QtyPerReference: fixtures.Dec("1"), UnitID: "kg"},
	})

	result, err := explosion.NewEngine(store, nil).Explode(context.Background(), fixtures.June, explosion.Scope{})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "validation", result.Failures[0].Kind)
	assert.Contains(t, result.Failures[0].Error, entities.ErrNoConversionPath.Error())
}

func TestExplode_Scope(t *testing.T) {
	store := plannedJuice(t)
	engine := explosion.NewEngine(store, nil)

	result, err := engine.Explode(context.Background(), fixtures.June, explosion.Scope{
		Tiers:   []entities.RootTier{entities.TierPLM},
		RootIDs: []string{"SKU-1L"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Roots)
	assert.Equal(t, map[string]string{
		"BOTTLE": "1000",
		"CAP":    "1000",
		"LABEL":  "1020",
		"SLEEVE": "1000",
	}, totalsByItem(result.Totals))
}

func TestExplode_SkuWithoutPackMapping(t *testing.T) {
	store := plannedJuice(t)
	fixtures.Seed(t, store,
		[]*entities.SKU{{ID: "SKU-5L", Code: "JUICE-5L", ProductID: "P-JUICE", UnitID: "pc"}},
		[]*entities.SkuMonthForecast{{SkuID: "SKU-5L", MonthStart: fixtures.June, UnitsToFill: fixtures.Dec("10")}},
	)

	result, err := explosion.NewEngine(store, nil).Explode(context.Background(), fixtures.June, explosion.Scope{})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "PLM:SKU-5L", result.Failures[0].Key)
	assert.Equal(t, 3, result.Roots)
}

func TestAggregateTotals_SeparatesOptional(t *testing.T) {
	details := []*entities.RequirementDetail{
		{StockItemID: "B", GrossRequiredQty: fixtures.Dec("2"), UnitID: "pc"},
		{StockItemID: "A", GrossRequiredQty: fixtures.Dec("5"), UnitID: "kg"},
		{StockItemID: "B", GrossRequiredQty: fixtures.Dec("3"), UnitID: "pc", IsOptional: true},
	}
	totals := explosion.AggregateTotals(details)
	require.Len(t, totals, 2)
	assert.Equal(t, "A", totals[0].StockItemID)
	assert.True(t, totals[1].Gross.Equal(fixtures.Dec("5")))
	assert.True(t, totals[1].Mandatory.Equal(fixtures.Dec("2")))
	assert.True(t, totals[1].ProcurementQty.Equal(totals[1].Gross))
}

func TestExplode_NoPlanNoRMRoots(t *testing.T) {
	store := fixtures.NewTestStore(t)
	fixtures.BuildJuiceScenario(t, store)

	result, err := explosion.NewEngine(store, nil).Explode(context.Background(), fixtures.June, explosion.Scope{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Roots)
	for _, d := range result.Details {
		assert.Equal(t, entities.TierPLM, d.RootTier)
	}
}
