package overlay_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mfgplan/pkg/application/services/batchplan"
	"github.com/vsinha/mfgplan/pkg/application/services/explosion"
	"github.com/vsinha/mfgplan/pkg/application/services/overlay"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/infrastructure/events"
	"github.com/vsinha/mfgplan/pkg/infrastructure/repositories/gormstore"
	fixtures "github.com/vsinha/mfgplan/pkg/infrastructure/testing"
)

var (
	april = time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	may   = time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
)

type harness struct {
	store   *gormstore.Store
	events  *events.InMemoryEventStore
	mrp     *explosion.Service
	overlay *overlay.Service
}

// newHarness seeds the juice scenario with a finalized June run
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := fixtures.NewTestStore(t)
	fixtures.BuildJuiceScenario(t, store)

	builder := batchplan.NewBuilder(store, nil, nil)
	header, err := builder.CreateHeader(ctx, "June", fixtures.June, fixtures.June)
	require.NoError(t, err)
	_, err = builder.BuildPlan(ctx, header.ID, fixtures.June, fixtures.June)
	require.NoError(t, err)

	mrp := explosion.NewService(store, nil, nil)
	_, err = mrp.RebuildMRPMonth(ctx, fixtures.June)
	require.NoError(t, err)

	eventStore := events.NewInMemoryEventStore(nil)
	return &harness{
		store:   store,
		events:  eventStore,
		mrp:     mrp,
		overlay: overlay.NewService(store, mrp, eventStore, nil),
	}
}

func TestBuildSeasonOverlay_RedistributesSeasonalItems(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	summary, err := h.overlay.BuildSeasonOverlay(ctx, april, fixtures.June, true)
	require.NoError(t, err)
	assert.True(t, summary.Activated)
	assert.Equal(t, []string{"2025-04", "2025-05"}, summary.Skipped)
	require.Equal(t, 2, summary.Rows)

	total := decimal.Zero
	for _, d := range summary.Details {
		assert.Equal(t, "PULP", d.StockItemID)
		assert.True(t, d.BaselineMonth.Equal(fixtures.June))
		assert.True(t, d.BaselineQty.Equal(fixtures.Dec("315")))
		total = total.Add(d.RedistributedQty)
	}
	assert.True(t, total.Equal(fixtures.Dec("315")), "redistributed %s", total)
	assert.True(t, summary.Details[0].ProcurementMonth.Equal(april))
	assert.True(t, summary.Details[1].ProcurementMonth.Equal(may))

	active, err := h.store.ActiveRunID(ctx, entities.OverlayScope(april, fixtures.June))
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, active)

	stored, err := h.store.ListOverlayDetails(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	mayTotals, err := h.mrp.LatestTotals(ctx, may)
	require.NoError(t, err)
	require.Len(t, mayTotals, 1)
	assert.True(t, mayTotals[0].ProcurementQty.Equal(fixtures.Dec("157.5")))

	all, err := h.events.ReadAllEvents(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, events.OverlayBuiltEvent, all[0].Type())
	assert.Equal(t, events.RunActivatedEvent, all[1].Type())
}

func TestBuildSeasonOverlay_WithoutActivation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.overlay.BuildSeasonOverlay(ctx, april, fixtures.June, true)
	require.NoError(t, err)
	second, err := h.overlay.BuildSeasonOverlay(ctx, april, fixtures.June, false)
	require.NoError(t, err)
	assert.False(t, second.Activated)

	scope := entities.OverlayScope(april, fixtures.June)
	active, err := h.store.ActiveRunID(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, first.RunID, active)

	require.NoError(t, h.overlay.Activate(ctx, second.RunID))
	active, err = h.store.ActiveRunID(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, second.RunID, active)

	assert.ErrorIs(t, h.overlay.Activate(ctx, "missing"), entities.ErrNotFound)
}

func TestBuildSeasonOverlay_InvalidWeightsAbort(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.store.Upsert(ctx, []*entities.SeasonWeight{
		{ProfileID: "MANGO", ProcurementMonth: 5, Weight: fixtures.Dec("0.3")},
	}, "profile_id", "procurement_month"))

	_, err := h.overlay.BuildSeasonOverlay(ctx, april, fixtures.June, true)
	require.Error(t, err)
	assert.True(t, entities.IsValidation(err))
	assert.ErrorIs(t, err, entities.ErrInvalidSeasonWeights)

	pointers, err := h.store.ListActive(ctx, "overlay:")
	require.NoError(t, err)
	assert.Empty(t, pointers)
}

func TestBuildSeasonOverlay_InvertedWindow(t *testing.T) {
	h := newHarness(t)
	_, err := h.overlay.BuildSeasonOverlay(context.Background(), fixtures.June, april, false)
	assert.True(t, entities.IsValidation(err))
}
