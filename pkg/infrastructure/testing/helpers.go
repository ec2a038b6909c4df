package testing

import (
	"context"
	stdtesting "testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
	"github.com/vsinha/mfgplan/pkg/infrastructure/repositories/gormstore"
)

// June is the month the juice scenario plans for
var June = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

// NewTestStore opens a migrated in-memory SQLite store
func NewTestStore(t stdtesting.TB) *gormstore.Store {
	t.Helper()
	db, err := config.OpenDB(&config.Config{DBDriver: "sqlite", DBDSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gormstore.New(db)
}

// Dec parses a decimal literal, panicking on bad input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DecPtr returns a pointer to a parsed decimal
func DecPtr(s string) *decimal.Decimal {
	v := Dec(s)
	return &v
}

// StrPtr returns a pointer to s
func StrPtr(s string) *string {
	return &s
}

// Seed upserts each slice of rows, failing the test on error
func Seed(t stdtesting.TB, store *gormstore.Store, rows ...any) {
	t.Helper()
	for _, r := range rows {
		if err := store.Upsert(context.Background(), r); err != nil {
			t.Fatalf("seed %T: %v", r, err)
		}
	}
}

// BuildJuiceScenario seeds a small juice plant:
//
//	P-JUICE (100 l) : SYRUP 20 kg, PULP 30 kg, WATER 60 l
//	SYRUP   (10 kg) : SUGAR 6000 g, WATER 4 l
//	PLM-1L  (1 pc)  : BOTTLE 1, CAP 1, LABEL 1 @2%
//	SKU-1L adds SLEEVE, SKU-1L-PLAIN removes LABEL
//
// June demand is 1050 l of P-JUICE; forecasts are 1000 and 500 units.
// PULP follows the MANGO profile (April 0.5, May 0.5).
func BuildJuiceScenario(t stdtesting.TB, store *gormstore.Store) {
	t.Helper()

	mango := "MANGO"
	created := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	Seed(t, store,
		[]*entities.Unit{
			{ID: "g", Name: "Gram", Dimension: "mass"},
			{ID: "kg", Name: "Kilogram", Dimension: "mass"},
			{ID: "l", Name: "Litre", Dimension: "volume"},
			{ID: "ml", Name: "Millilitre", Dimension: "volume"},
			{ID: "pc", Name: "Piece", Dimension: "count"},
		},
		[]*entities.UomConversion{
			{FromUnitID: "kg", ToUnitID: "g", Factor: Dec("1000")},
			{FromUnitID: "g", ToUnitID: "kg", Factor: Dec("0.001")},
			{FromUnitID: "l", ToUnitID: "ml", Factor: Dec("1000")},
			{FromUnitID: "ml", ToUnitID: "l", Factor: Dec("0.001")},
		},
		[]*entities.SeasonProfile{
			{ID: mango, Name: "Mango season", Weights: []entities.SeasonWeight{
				{ProcurementMonth: 4, Weight: Dec("0.5")},
				{ProcurementMonth: 5, Weight: Dec("0.5")},
			}},
		},
		[]*entities.StockItem{
			{ID: "SUGAR", Code: "RM-SUGAR", Name: "Sugar", DefaultUnitID: "kg", MaterialKind: entities.MaterialRM},
			{ID: "PULP", Code: "RM-PULP", Name: "Mango Pulp", DefaultUnitID: "kg", MaterialKind: entities.MaterialRM, SeasonProfileID: &mango},
			{ID: "WATER", Code: "RM-WATER", Name: "Water", DefaultUnitID: "l", MaterialKind: entities.MaterialRM},
			{ID: "SYRUP", Code: "SP-SYRUP", Name: "Sugar Syrup", DefaultUnitID: "kg", MaterialKind: entities.MaterialSP},
			{ID: "BOTTLE", Code: "PM-BOTTLE", Name: "PET Bottle 1L", DefaultUnitID: "pc", MaterialKind: entities.MaterialPM},
			{ID: "CAP", Code: "PM-CAP", Name: "Cap 38mm", DefaultUnitID: "pc", MaterialKind: entities.MaterialPM},
			{ID: "LABEL", Code: "PM-LABEL", Name: "Label 1L", DefaultUnitID: "pc", MaterialKind: entities.MaterialPM},
			{ID: "SLEEVE", Code: "PM-SLEEVE", Name: "Shrink Sleeve", DefaultUnitID: "pc", MaterialKind: entities.MaterialPM},
		},
		[]*entities.StockItemAlias{
			{StockItemID: "SUGAR", Alias: "Refined Sugar"},
		},
		[]*entities.Product{
			{ID: "P-JUICE", Code: "JUICE", Name: "Mango Juice", UnitID: "l"},
		},
		[]*entities.SKU{
			{ID: "SKU-1L", Code: "JUICE-1L", ProductID: "P-JUICE", UnitID: "pc"},
			{ID: "SKU-1L-PLAIN", Code: "JUICE-1L-PLAIN", ProductID: "P-JUICE", UnitID: "pc"},
		},
		[]*entities.BOMHeader{
			{ID: "RM-JUICE", Kind: entities.BOMKindRM, OwnerID: "P-JUICE", ReferenceOutputQty: Dec("100"), ReferenceOutputUnitID: "l"},
			{ID: "SP-SYRUP", Kind: entities.BOMKindSP, OwnerID: "SYRUP", ReferenceOutputQty: Dec("10"), ReferenceOutputUnitID: "kg"},
			{ID: "PLM-1L", Kind: entities.BOMKindPLM, ReferenceOutputQty: Dec("1"), ReferenceOutputUnitID: "pc", IsTemplate: true},
		},
		[]*entities.BOMLine{
			{HeaderID: "RM-JUICE", LineNo: 1, StockItemID: "SYRUP", QtyPerReference: Dec("20"), UnitID: "kg"},
			{HeaderID: "RM-JUICE", LineNo: 2, StockItemID: "PULP", QtyPerReference: Dec("30"), UnitID: "kg"},
			{HeaderID: "RM-JUICE", LineNo: 3, StockItemID: "WATER", QtyPerReference: Dec("60"), UnitID: "l"},
			{HeaderID: "SP-SYRUP", LineNo: 1, StockItemID: "SUGAR", QtyPerReference: Dec("6000"), UnitID: "g"},
			{HeaderID: "SP-SYRUP", LineNo: 2, StockItemID: "WATER", QtyPerReference: Dec("4"), UnitID: "l"},
			{HeaderID: "PLM-1L", LineNo: 1, StockItemID: "BOTTLE", QtyPerReference: Dec("1"), UnitID: "pc"},
			{HeaderID: "PLM-1L", LineNo: 2, StockItemID: "CAP", QtyPerReference: Dec("1"), UnitID: "pc"},
			{HeaderID: "PLM-1L", LineNo: 3, StockItemID: "LABEL", QtyPerReference: Dec("1"), UnitID: "pc", WastagePct: Dec("2")},
		},
		[]*entities.SkuPackMap{
			{SkuID: "SKU-1L", TemplateID: "PLM-1L"},
			{SkuID: "SKU-1L-PLAIN", TemplateID: "PLM-1L"},
		},
		[]*entities.BOMOverride{
			{ID: "OVR-1", SkuID: "SKU-1L", TemplateID: "PLM-1L", Seq: 1, Op: entities.OverrideAdd, StockItemID: "SLEEVE", Qty: DecPtr("1"), UnitID: StrPtr("pc"), CreatedAt: created},
			{ID: "OVR-2", SkuID: "SKU-1L-PLAIN", TemplateID: "PLM-1L", Seq: 1, Op: entities.OverrideRemove, StockItemID: "LABEL", CreatedAt: created},
		},
		[]*entities.BatchSizeRule{
			{ProductID: "P-JUICE", EffectiveFrom: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
				MinBatch: Dec("100"), MaxBatch: Dec("300"), PreferredBatch: Dec("250")},
			{ProductID: "P-JUICE", EffectiveFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
				MinBatch: Dec("200"), MaxBatch: Dec("400"), PreferredBatch: Dec("350")},
		},
		[]*entities.ProductMonthDemand{
			{ProductID: "P-JUICE", MonthStart: June, FinalMakeQty: Dec("1050")},
		},
		[]*entities.SkuMonthForecast{
			{SkuID: "SKU-1L", MonthStart: June, UnitsToFill: Dec("1000")},
			{SkuID: "SKU-1L-PLAIN", MonthStart: June, UnitsToFill: Dec("500")},
		},
	)
}
