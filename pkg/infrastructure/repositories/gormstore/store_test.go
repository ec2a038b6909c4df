package gormstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
	fixtures "github.com/vsinha/mfgplan/pkg/infrastructure/testing"
)

func TestStore_MasterData(t *testing.T) {
	ctx := context.Background()
	store := fixtures.NewTestStore(t)
	fixtures.BuildJuiceScenario(t, store)

	item, err := store.GetStockItem(ctx, "PULP")
	require.NoError(t, err)
	assert.Equal(t, "RM-PULP", item.Code)
	assert.True(t, item.IsSeasonal())

	_, err = store.GetStockItem(ctx, "NOPE")
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	lines, err := store.GetLines(ctx, "RM-JUICE")
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{lines[0].LineNo, lines[1].LineNo, lines[2].LineNo})
	assert.True(t, lines[0].QtyPerReference.Equal(fixtures.Dec("20")))

	header, err := store.FindHeaderByOwner(ctx, entities.BOMKindSP, "SYRUP")
	require.NoError(t, err)
	assert.Equal(t, "SP-SYRUP", header.ID)

	_, err = store.FindHeaderByOwner(ctx, entities.BOMKindSP, "PULP")
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	overrides, err := store.ListOverrides(ctx, "SKU-1L", "PLM-1L")
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, entities.OverrideAdd, overrides[0].Op)
	require.NotNil(t, overrides[0].Qty)
	assert.True(t, overrides[0].Qty.Equal(fixtures.Dec("1")))

	profiles, err := store.ListSeasonProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Len(t, profiles[0].Weights, 2)
}

func TestStore_EffectiveRule(t *testing.T) {
	ctx := context.Background()
	store := fixtures.NewTestStore(t)
	fixtures.BuildJuiceScenario(t, store)

	rule, err := store.EffectiveRule(ctx, "P-JUICE", fixtures.June)
	require.NoError(t, err)
	assert.True(t, rule.PreferredBatch.Equal(fixtures.Dec("350")))

	old, err := store.EffectiveRule(ctx, "P-JUICE", time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, old.PreferredBatch.Equal(fixtures.Dec("250")))

	_, err = store.EffectiveRule(ctx, "P-JUICE", time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestStore_PlanLinesAndBatches(t *testing.T) {
	ctx := context.Background()
	store := fixtures.NewTestStore(t)

	header := &entities.BatchPlanHeader{Title: "June", WindowStart: fixtures.June, WindowEnd: fixtures.June}
	require.NoError(t, store.CreatePlanHeader(ctx, header))
	require.NotEmpty(t, header.ID)

	line := &entities.BatchPlanLine{
		HeaderID: header.ID, ProductID: "P-JUICE", MonthStart: fixtures.June,
		FinalMakeQty: fixtures.Dec("1130"), MinBatch: fixtures.Dec("200"), MaxBatch: fixtures.Dec("400"),
		PreferredBatch: fixtures.Dec("350"), ResidualQty: fixtures.Dec("80"), SourceRule: entities.SourceSystem,
	}
	require.NoError(t, store.SaveLine(ctx, line))
	require.NotEmpty(t, line.ID)

	batches := []*entities.Batch{
		{LineID: line.ID, SeqNo: 2, Size: fixtures.Dec("350"), PlannedSize: fixtures.Dec("350"), SourceRule: entities.SourceSystem},
		{LineID: line.ID, SeqNo: 1, Size: fixtures.Dec("350"), PlannedSize: fixtures.Dec("350"), SourceRule: entities.SourceSystem},
	}
	require.NoError(t, store.InsertBatches(ctx, batches))

	found, err := store.FindLine(ctx, header.ID, "P-JUICE", fixtures.June.AddDate(0, 0, 14))
	require.NoError(t, err)
	require.Len(t, found.Batches, 2)
	assert.Equal(t, 1, found.Batches[0].SeqNo)

	ref := "MR-1"
	batches[0].RecordRef = &ref
	require.NoError(t, store.UpdateBatch(ctx, batches[0]))

	linked, err := store.FindBatchByRecord(ctx, "MR-1")
	require.NoError(t, err)
	assert.Equal(t, batches[0].ID, linked.ID)

	// record refs are unique
	batches[1].RecordRef = &ref
	assert.Error(t, store.UpdateBatch(ctx, batches[1]))

	require.NoError(t, store.DeleteBatches(ctx, []string{batches[1].ID}))
	remaining, err := store.ListBatches(ctx, line.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	lines, err := store.ListLinesForMonth(ctx, fixtures.June)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0].Batches, 1)
}

func TestStore_RunsAndActivation(t *testing.T) {
	ctx := context.Background()
	store := fixtures.NewTestStore(t)

	run := &entities.MRPRun{MonthStart: fixtures.June, Scope: entities.MRPScope(fixtures.June)}
	require.NoError(t, store.CreateRun(ctx, run))
	assert.Equal(t, entities.RunDraft, run.Status)

	details := []*entities.RequirementDetail{
		{RunID: run.ID, Seq: 1, RootTier: entities.TierRM, RootID: "P-JUICE", StockItemID: "PULP",
			MaterialKind: entities.MaterialRM, GrossRequiredQty: fixtures.Dec("315"), UnitID: "kg",
			Lineage: []entities.LineageStep{
				{Level: 1, ParentItemID: "P-JUICE", ItemID: "PULP", Multiplier: fixtures.Dec("0.3")},
				{Level: 0, ItemID: "P-JUICE", Multiplier: fixtures.Dec("1050")},
			}},
	}
	require.NoError(t, store.InsertDetails(ctx, details))

	now := time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.FinalizeRun(ctx, run.ID, 1, 0, now))

	err := store.FinalizeRun(ctx, run.ID, 1, 0, now)
	assert.True(t, errors.Is(err, entities.ErrRunFinalized))

	loaded, err := store.ListDetails(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Len(t, loaded[0].Lineage, 2)
	assert.Equal(t, 0, loaded[0].Lineage[0].Level)
	assert.True(t, entities.LineageProduct(loaded[0].Lineage).Equal(fixtures.Dec("315")))

	_, err = store.ActiveRunID(ctx, run.Scope)
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	require.NoError(t, store.Activate(ctx, run.Scope, run.ID, now))
	require.NoError(t, store.Activate(ctx, run.Scope, "other", now.Add(time.Hour)))
	active, err := store.ActiveRunID(ctx, run.Scope)
	require.NoError(t, err)
	assert.Equal(t, "other", active)

	pointers, err := store.ListActive(ctx, "mrp:")
	require.NoError(t, err)
	assert.Len(t, pointers, 1)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := fixtures.NewTestStore(t)

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.CreatePlanHeader(ctx, &entities.BatchPlanHeader{ID: "H1", WindowStart: fixtures.June, WindowEnd: fixtures.June}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetPlanHeader(ctx, "H1")
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestStore_IssuesAndUpsert(t *testing.T) {
	ctx := context.Background()
	store := fixtures.NewTestStore(t)

	first, err := entities.NewIssueLine("I-1", fixtures.June.AddDate(0, 0, 3), "JB 001", "sugar", fixtures.Dec("40"), "kg")
	require.NoError(t, err)
	outside, err := entities.NewIssueLine("I-2", fixtures.June.AddDate(0, 1, 0), "", "sugar", fixtures.Dec("5"), "kg")
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, []*entities.IssueLine{first, outside}))

	// re-import overwrites by primary key
	first.Qty = fixtures.Dec("41")
	require.NoError(t, store.Upsert(ctx, []*entities.IssueLine{first}))

	lines, err := store.ListIssues(ctx, fixtures.June, fixtures.June.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Qty.Equal(fixtures.Dec("41")))

	item := "SUGAR"
	lines[0].StockItemID = &item
	lines[0].AllocationStatus = entities.AllocationMatched
	require.NoError(t, store.UpdateAllocation(ctx, lines[0]))

	got, err := store.GetIssue(ctx, "I-1")
	require.NoError(t, err)
	assert.Equal(t, entities.AllocationMatched, got.AllocationStatus)
	require.NotNil(t, got.StockItemID)
	assert.Equal(t, "SUGAR", *got.StockItemID)

	require.NoError(t, store.Upsert(ctx, []*entities.BOMLine{}))
	assert.Error(t, store.Upsert(ctx, "not a slice"))
}

func TestStore_UpsertOnUniqueKey(t *testing.T) {
	ctx := context.Background()
	store := fixtures.NewTestStore(t)

	line := &entities.BOMLine{HeaderID: "H", LineNo: 1, StockItemID: "SUGAR", QtyPerReference: fixtures.Dec("1"), UnitID: "kg"}
	require.NoError(t, store.Upsert(ctx, []*entities.BOMLine{line}, "header_id", "line_no"))

	again := &entities.BOMLine{HeaderID: "H", LineNo: 1, StockItemID: "SUGAR", QtyPerReference: fixtures.Dec("2"), UnitID: "kg"}
	require.NoError(t, store.Upsert(ctx, []*entities.BOMLine{again}, "header_id", "line_no"))

	lines, err := store.GetLines(ctx, "H")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].QtyPerReference.Equal(fixtures.Dec("2")))
}
