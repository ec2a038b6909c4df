package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
)

// Kind names an importable dataset. A directory import reads <kind>.csv.
type Kind string

const (
	KindUnits         Kind = "units"
	KindConversions   Kind = "conversions"
	KindSeasonWeights Kind = "season_weights"
	KindItems         Kind = "items"
	KindAliases       Kind = "aliases"
	KindProducts      Kind = "products"
	KindSKUs          Kind = "skus"
	KindBOMHeaders    Kind = "bom_headers"
	KindBOMLines      Kind = "bom_lines"
	KindPackMaps      Kind = "pack_maps"
	KindOverrides     Kind = "overrides"
	KindBatchRules    Kind = "batch_rules"
	KindDemands       Kind = "demands"
	KindMakeOverrides Kind = "make_overrides"
	KindForecasts     Kind = "forecasts"
	KindIssues        Kind = "issues"
)

// Kinds lists every dataset in load order
var Kinds = []Kind{
	KindUnits, KindConversions, KindSeasonWeights, KindItems, KindAliases,
	KindProducts, KindSKUs, KindBOMHeaders, KindBOMLines, KindPackMaps,
	KindOverrides, KindBatchRules, KindDemands, KindMakeOverrides,
	KindForecasts, KindIssues,
}

// ParseKind validates a dataset name
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown dataset: %q", s)
}

// Importer loads CSV exports into the store. A malformed row aborts the
// whole import without partial writes.
type Importer struct {
	store    repositories.Store
	validate *validator.Validate
	logger   *logrus.Logger
}

// NewImporter creates an importer writing through store
func NewImporter(store repositories.Store, logger *logrus.Logger) *Importer {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Importer{store: store, validate: validator.New(), logger: logger}
}

// Import loads one dataset from r in a single transaction
func (im *Importer) Import(ctx context.Context, kind Kind, r io.Reader) (int, error) {
	var n int
	err := im.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		n, err = im.importKind(ctx, tx, kind, r)
		return err
	})
	return n, err
}

// ImportDir loads every <kind>.csv present in dir, in dependency order, in
// one transaction. Missing files are skipped.
func (im *Importer) ImportDir(ctx context.Context, dir string) (map[Kind]int, error) {
	counts := make(map[Kind]int)
	err := im.store.Transaction(ctx, func(tx repositories.Store) error {
		for _, kind := range Kinds {
			path := filepath.Join(dir, string(kind)+".csv")
			file, err := os.Open(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to open %s file %s: %w", kind, path, err)
			}
			n, err := im.importKind(ctx, tx, kind, file)
			file.Close()
			if err != nil {
				return err
			}
			counts[kind] = n
			im.logger.WithFields(logrus.Fields{"kind": kind, "rows": n, "file": path}).Info("imported dataset")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (im *Importer) importKind(ctx context.Context, repo repositories.ImportRepository, kind Kind, r io.Reader) (int, error) {
	switch kind {
	case KindUnits:
		return load(ctx, im, repo, kind, r, (*unitRow).entity)
	case KindConversions:
		return load(ctx, im, repo, kind, r, (*conversionRow).entity, "from_unit_id", "to_unit_id")
	case KindSeasonWeights:
		return im.loadSeasonWeights(ctx, repo, r)
	case KindItems:
		return load(ctx, im, repo, kind, r, (*itemRow).entity)
	case KindAliases:
		return load(ctx, im, repo, kind, r, (*aliasRow).entity, "stock_item_id", "alias")
	case KindProducts:
		return load(ctx, im, repo, kind, r, (*productRow).entity)
	case KindSKUs:
		return load(ctx, im, repo, kind, r, (*skuRow).entity)
	case KindBOMHeaders:
		return load(ctx, im, repo, kind, r, (*bomHeaderRow).entity)
	case KindBOMLines:
		return load(ctx, im, repo, kind, r, (*bomLineRow).entity, "header_id", "line_no")
	case KindPackMaps:
		return load(ctx, im, repo, kind, r, (*packMapRow).entity)
	case KindOverrides:
		return load(ctx, im, repo, kind, r, (*overrideRow).entity)
	case KindBatchRules:
		return load(ctx, im, repo, kind, r, (*batchRuleRow).entity, "product_id", "effective_from")
	case KindDemands:
		return load(ctx, im, repo, kind, r, (*demandRow).entity, "product_id", "month_start")
	case KindMakeOverrides:
		return load(ctx, im, repo, kind, r, (*makeOverrideRow).entity, "product_id", "month_start")
	case KindForecasts:
		return load(ctx, im, repo, kind, r, (*forecastRow).entity, "sku_id", "month_start")
	case KindIssues:
		// Re-importing an export must not reset allocations
		lines, err := parse(im, kind, r, (*issueRow).entity)
		if err != nil {
			return 0, err
		}
		return len(lines), repo.InsertMissing(ctx, lines)
	default:
		return 0, fmt.Errorf("unknown dataset: %q", kind)
	}
}

func (im *Importer) loadSeasonWeights(ctx context.Context, repo repositories.ImportRepository, r io.Reader) (int, error) {
	names := make(map[string]string)
	weights, err := parse(im, KindSeasonWeights, r, func(row *seasonWeightRow) (*entities.SeasonWeight, error) {
		if row.ProfileName != "" || names[row.ProfileID] == "" {
			names[row.ProfileID] = row.ProfileName
		}
		return row.entity()
	})
	if err != nil {
		return 0, err
	}

	profiles := make([]*entities.SeasonProfile, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, w := range weights {
		if seen[w.ProfileID] {
			continue
		}
		seen[w.ProfileID] = true
		profiles = append(profiles, &entities.SeasonProfile{ID: w.ProfileID, Name: names[w.ProfileID]})
	}
	if err := repo.Upsert(ctx, profiles); err != nil {
		return 0, err
	}
	if err := repo.Upsert(ctx, weights, "profile_id", "procurement_month"); err != nil {
		return 0, err
	}
	return len(weights), nil
}

// load parses every row of r into entities and upserts them
func load[R any, E any](
	ctx context.Context,
	im *Importer,
	repo repositories.ImportRepository,
	kind Kind,
	r io.Reader,
	convert func(*R) (*E, error),
	conflictColumns ...string,
) (int, error) {
	rows, err := parse(im, kind, r, convert)
	if err != nil {
		return 0, err
	}
	if err := repo.Upsert(ctx, rows, conflictColumns...); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// parse reads a header row followed by data rows. Columns are matched by
// name, so order is free and extra columns are ignored; every column whose
// tag is required must be present.
func parse[R any, E any](im *Importer, kind Kind, r io.Reader, convert func(*R) (*E, error)) ([]*E, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}
	if len(records) < 1 {
		return nil, entities.NewValidationError(string(kind), fmt.Errorf("CSV must have a header row"))
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	rowType := reflect.TypeOf((*R)(nil)).Elem()
	if missing := missingColumns(rowType, columns); len(missing) > 0 {
		return nil, entities.NewValidationError(string(kind), fmt.Errorf("CSV header is missing columns %v", missing))
	}

	out := make([]*E, 0, len(records)-1)
	for i, record := range records[1:] {
		row := new(R)
		decodeRow(reflect.ValueOf(row).Elem(), columns, record)
		if err := im.validate.Struct(row); err != nil {
			return nil, entities.NewValidationError(string(kind), fmt.Errorf("row %d: %s", i+2, describe(err)))
		}
		e, err := convert(row)
		if err != nil {
			return nil, entities.NewValidationError(string(kind), fmt.Errorf("row %d: %w", i+2, err))
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeRow(v reflect.Value, columns map[string]int, record []string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		idx, ok := columns[t.Field(i).Tag.Get("csv")]
		if !ok || idx >= len(record) {
			continue
		}
		v.Field(i).SetString(strings.TrimSpace(record[idx]))
	}
}

func missingColumns(t reflect.Type, columns map[string]int) []string {
	var missing []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !strings.HasPrefix(f.Tag.Get("validate"), "required") {
			continue
		}
		if _, ok := columns[f.Tag.Get("csv")]; !ok {
			missing = append(missing, f.Tag.Get("csv"))
		}
	}
	return missing
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", ve.Field(), ve.Tag()))
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}
