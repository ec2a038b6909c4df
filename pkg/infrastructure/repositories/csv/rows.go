package csv

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// Row structs mirror the export columns. Every field is kept as text and
// checked with validator tags before conversion.

type unitRow struct {
	ID        string `csv:"id" validate:"required,max=32"`
	Name      string `csv:"name" validate:"max=64"`
	Dimension string `csv:"dimension" validate:"required,max=32"`
}

func (r *unitRow) entity() (*entities.Unit, error) {
	return &entities.Unit{ID: r.ID, Name: r.Name, Dimension: r.Dimension}, nil
}

type conversionRow struct {
	FromUnit string `csv:"from_unit" validate:"required"`
	ToUnit   string `csv:"to_unit" validate:"required,nefield=FromUnit"`
	Factor   string `csv:"factor" validate:"required,numeric"`
}

func (r *conversionRow) entity() (*entities.UomConversion, error) {
	return entities.NewUomConversion(r.FromUnit, r.ToUnit, decimal.RequireFromString(r.Factor))
}

type seasonWeightRow struct {
	ProfileID        string `csv:"profile_id" validate:"required,max=64"`
	ProfileName      string `csv:"profile_name" validate:"max=128"`
	ProcurementMonth string `csv:"procurement_month" validate:"required,number"`
	Weight           string `csv:"weight" validate:"required,numeric"`
}

func (r *seasonWeightRow) entity() (*entities.SeasonWeight, error) {
	month, err := strconv.Atoi(r.ProcurementMonth)
	if err != nil || month < 1 || month > 12 {
		return nil, fmt.Errorf("procurement_month must be 1..12, got %s", r.ProcurementMonth)
	}
	return &entities.SeasonWeight{
		ProfileID:        r.ProfileID,
		ProcurementMonth: month,
		Weight:           decimal.RequireFromString(r.Weight),
	}, nil
}

type itemRow struct {
	ID            string `csv:"id" validate:"required,max=64"`
	Code          string `csv:"code" validate:"required,max=64"`
	Name          string `csv:"name" validate:"max=255"`
	DefaultUnit   string `csv:"default_unit" validate:"required"`
	MaterialKind  string `csv:"material_kind" validate:"required"`
	Category      string `csv:"category"`
	SubCategory   string `csv:"sub_category"`
	Group         string `csv:"group"`
	SubGroup      string `csv:"sub_group"`
	SeasonProfile string `csv:"season_profile" validate:"max=64"`
}

func (r *itemRow) entity() (*entities.StockItem, error) {
	kind, err := entities.ParseMaterialKind(r.MaterialKind)
	if err != nil {
		return nil, err
	}
	item, err := entities.NewStockItem(r.ID, r.Code, r.Name, r.DefaultUnit, kind)
	if err != nil {
		return nil, err
	}
	item.Classification = entities.Classification{
		Category:    r.Category,
		SubCategory: r.SubCategory,
		Group:       r.Group,
		SubGroup:    r.SubGroup,
	}
	if r.SeasonProfile != "" {
		profile := r.SeasonProfile
		item.SeasonProfileID = &profile
	}
	return item, nil
}

type aliasRow struct {
	StockItemID string `csv:"stock_item_id" validate:"required"`
	Alias       string `csv:"alias" validate:"required,max=255"`
}

func (r *aliasRow) entity() (*entities.StockItemAlias, error) {
	return &entities.StockItemAlias{StockItemID: r.StockItemID, Alias: r.Alias}, nil
}

type productRow struct {
	ID   string `csv:"id" validate:"required,max=64"`
	Code string `csv:"code" validate:"required,max=64"`
	Name string `csv:"name" validate:"max=255"`
	Unit string `csv:"unit" validate:"required"`
}

func (r *productRow) entity() (*entities.Product, error) {
	return &entities.Product{ID: r.ID, Code: r.Code, Name: r.Name, UnitID: r.Unit}, nil
}

type skuRow struct {
	ID        string `csv:"id" validate:"required,max=64"`
	Code      string `csv:"code" validate:"required,max=64"`
	ProductID string `csv:"product_id" validate:"required"`
	Unit      string `csv:"unit" validate:"required"`
}

func (r *skuRow) entity() (*entities.SKU, error) {
	return &entities.SKU{ID: r.ID, Code: r.Code, ProductID: r.ProductID, UnitID: r.Unit}, nil
}

type bomHeaderRow struct {
	ID             string `csv:"id" validate:"required,max=64"`
	Kind           string `csv:"kind" validate:"required"`
	OwnerID        string `csv:"owner_id" validate:"max=64"`
	ReferenceQty   string `csv:"reference_qty" validate:"required,numeric"`
	ReferenceUnit  string `csv:"reference_unit" validate:"required"`
	ProcessLossPct string `csv:"process_loss_pct" validate:"omitempty,numeric"`
	IsTemplate     string `csv:"is_template" validate:"omitempty,boolean"`
}

func (r *bomHeaderRow) entity() (*entities.BOMHeader, error) {
	kind, err := entities.ParseBOMKind(r.Kind)
	if err != nil {
		return nil, err
	}
	h := &entities.BOMHeader{
		ID:                    r.ID,
		Kind:                  kind,
		OwnerID:               r.OwnerID,
		ReferenceOutputQty:    decimal.RequireFromString(r.ReferenceQty),
		ReferenceOutputUnitID: r.ReferenceUnit,
		ProcessLossPct:        decOrZero(r.ProcessLossPct),
		IsTemplate:            boolOrFalse(r.IsTemplate),
	}
	if !h.IsTemplate && h.OwnerID == "" {
		return nil, fmt.Errorf("bom %s: owner_id is required for non-template headers", h.ID)
	}
	return h, h.Validate()
}

type bomLineRow struct {
	HeaderID    string `csv:"header_id" validate:"required"`
	LineNo      string `csv:"line_no" validate:"required,number"`
	StockItemID string `csv:"stock_item_id" validate:"required"`
	QtyPer      string `csv:"qty_per_reference" validate:"required,numeric"`
	Unit        string `csv:"unit" validate:"required"`
	WastagePct  string `csv:"wastage_pct" validate:"omitempty,numeric"`
	IsOptional  string `csv:"is_optional" validate:"omitempty,boolean"`
}

func (r *bomLineRow) entity() (*entities.BOMLine, error) {
	lineNo, err := strconv.Atoi(r.LineNo)
	if err != nil {
		return nil, fmt.Errorf("invalid line_no: %s", r.LineNo)
	}
	return entities.NewBOMLine(r.HeaderID, lineNo, r.StockItemID,
		decimal.RequireFromString(r.QtyPer), r.Unit, decOrZero(r.WastagePct), boolOrFalse(r.IsOptional))
}

type packMapRow struct {
	SkuID      string `csv:"sku_id" validate:"required"`
	TemplateID string `csv:"template_id" validate:"required"`
}

func (r *packMapRow) entity() (*entities.SkuPackMap, error) {
	return &entities.SkuPackMap{SkuID: r.SkuID, TemplateID: r.TemplateID}, nil
}

type overrideRow struct {
	ID          string `csv:"id" validate:"required,max=64"`
	SkuID       string `csv:"sku_id" validate:"required"`
	TemplateID  string `csv:"template_id" validate:"required"`
	Seq         string `csv:"seq" validate:"required,number"`
	Op          string `csv:"op" validate:"required"`
	StockItemID string `csv:"stock_item_id" validate:"required"`
	Qty         string `csv:"qty" validate:"omitempty,numeric"`
	Unit        string `csv:"unit"`
	WastagePct  string `csv:"wastage_pct" validate:"omitempty,numeric"`
	IsOptional  string `csv:"is_optional" validate:"omitempty,boolean"`
	CreatedAt   string `csv:"created_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func (r *overrideRow) entity() (*entities.BOMOverride, error) {
	op, err := entities.ParseOverrideOp(r.Op)
	if err != nil {
		return nil, err
	}
	seq, err := strconv.Atoi(r.Seq)
	if err != nil {
		return nil, fmt.Errorf("invalid seq: %s", r.Seq)
	}
	o := &entities.BOMOverride{
		ID:          r.ID,
		SkuID:       r.SkuID,
		TemplateID:  r.TemplateID,
		Seq:         seq,
		Op:          op,
		StockItemID: r.StockItemID,
	}
	if r.Qty != "" {
		q := decimal.RequireFromString(r.Qty)
		o.Qty = &q
	}
	if r.Unit != "" {
		u := r.Unit
		o.UnitID = &u
	}
	if r.WastagePct != "" {
		w := decimal.RequireFromString(r.WastagePct)
		o.WastagePct = &w
	}
	if r.IsOptional != "" {
		b := boolOrFalse(r.IsOptional)
		o.IsOptional = &b
	}
	if r.CreatedAt != "" {
		o.CreatedAt, _ = time.Parse(time.RFC3339, r.CreatedAt)
	}
	return o, nil
}

type batchRuleRow struct {
	ProductID         string `csv:"product_id" validate:"required"`
	EffectiveFrom     string `csv:"effective_from" validate:"required,datetime=2006-01-02"`
	MinBatch          string `csv:"min_batch" validate:"required,numeric"`
	MaxBatch          string `csv:"max_batch" validate:"required,numeric"`
	PreferredBatch    string `csv:"preferred_batch" validate:"required,numeric"`
	NudgeThresholdPct string `csv:"nudge_threshold_pct" validate:"omitempty,numeric"`
}

func (r *batchRuleRow) entity() (*entities.BatchSizeRule, error) {
	from, _ := time.Parse(dateLayout, r.EffectiveFrom)
	rule := &entities.BatchSizeRule{
		ProductID:         r.ProductID,
		EffectiveFrom:     from,
		MinBatch:          decimal.RequireFromString(r.MinBatch),
		MaxBatch:          decimal.RequireFromString(r.MaxBatch),
		PreferredBatch:    decimal.RequireFromString(r.PreferredBatch),
		NudgeThresholdPct: decOrZero(r.NudgeThresholdPct),
	}
	return rule, rule.Validate()
}

type demandRow struct {
	ProductID    string `csv:"product_id" validate:"required"`
	Month        string `csv:"month" validate:"required,datetime=2006-01"`
	FinalMakeQty string `csv:"final_make_qty" validate:"required,numeric"`
}

func (r *demandRow) entity() (*entities.ProductMonthDemand, error) {
	month, _ := time.Parse(monthLayout, r.Month)
	qty := decimal.RequireFromString(r.FinalMakeQty)
	if qty.IsNegative() {
		return nil, fmt.Errorf("final_make_qty cannot be negative, got %s", qty)
	}
	return &entities.ProductMonthDemand{ProductID: r.ProductID, MonthStart: month, FinalMakeQty: qty}, nil
}

type makeOverrideRow struct {
	ProductID    string `csv:"product_id" validate:"required"`
	Month        string `csv:"month" validate:"required,datetime=2006-01"`
	FinalMakeQty string `csv:"final_make_qty" validate:"required,numeric"`
	Reason       string `csv:"reason" validate:"max=255"`
}

func (r *makeOverrideRow) entity() (*entities.MakeQtyOverride, error) {
	month, _ := time.Parse(monthLayout, r.Month)
	qty := decimal.RequireFromString(r.FinalMakeQty)
	if qty.IsNegative() {
		return nil, fmt.Errorf("final_make_qty cannot be negative, got %s", qty)
	}
	return &entities.MakeQtyOverride{ProductID: r.ProductID, MonthStart: month, FinalMakeQty: qty, Reason: r.Reason}, nil
}

type forecastRow struct {
	SkuID       string `csv:"sku_id" validate:"required"`
	Month       string `csv:"month" validate:"required,datetime=2006-01"`
	UnitsToFill string `csv:"units_to_fill" validate:"required,numeric"`
}

func (r *forecastRow) entity() (*entities.SkuMonthForecast, error) {
	month, _ := time.Parse(monthLayout, r.Month)
	return &entities.SkuMonthForecast{SkuID: r.SkuID, MonthStart: month, UnitsToFill: decimal.RequireFromString(r.UnitsToFill)}, nil
}

type issueRow struct {
	ID          string `csv:"id" validate:"required,max=64"`
	IssueDate   string `csv:"issue_date" validate:"required,datetime=2006-01-02"`
	RawBatchRef string `csv:"raw_batch_ref" validate:"max=255"`
	RawItemText string `csv:"raw_item_text" validate:"max=255"`
	Qty         string `csv:"qty" validate:"required,numeric"`
	Unit        string `csv:"unit" validate:"required"`
}

func (r *issueRow) entity() (*entities.IssueLine, error) {
	date, _ := time.Parse(dateLayout, r.IssueDate)
	return entities.NewIssueLine(r.ID, date, r.RawBatchRef, r.RawItemText, decimal.RequireFromString(r.Qty), r.Unit)
}

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

func decOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}

func boolOrFalse(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
