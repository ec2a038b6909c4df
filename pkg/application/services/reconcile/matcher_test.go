package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mr-001 ", "MR001"},
		{"MR/001", "MR001"},
		{"Refined  Sugar", "REFINEDSUGAR"},
		{"--", ""},
		{"Café 2", "CAFÉ2"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func testMatcher() *matcher {
	items := []*entities.StockItem{
		{ID: "SUGAR", Code: "RM-SUGAR", Name: "Sugar"},
		{ID: "PULP", Code: "RM-PULP", Name: "Mango Pulp"},
		{ID: "PULP-B", Code: "RM-PULP-B", Name: "Mango Pulb"},
		{ID: "SALT", Code: "RM-SALT", Name: "Salt"},
		{ID: "SALT-2", Code: "RM-SALT-2", Name: "Salt"},
	}
	aliases := []*entities.StockItemAlias{{StockItemID: "SUGAR", Alias: "Refined Sugar"}}
	ref := func(s string) *string { return &s }
	size := decimal.RequireFromString
	batches := []*entities.Batch{
		{ID: "B1", LineID: "L1", Size: size("350"), RecordRef: ref("MR-001")},
		{ID: "B3", LineID: "L1", Size: size("350"), RecordRef: ref("mr002")},
		{ID: "B2", LineID: "L1", Size: size("350"), RecordRef: ref("MR-002")},
		{ID: "B4", LineID: "L1", Size: size("350")},
		{ID: "B5", LineID: "L1", Size: size("300"), RecordRef: ref("MR-003")},
		{ID: "B6", LineID: "L2", Size: size("350"), RecordRef: ref("mr 003")},
		{ID: "B7", LineID: "L1", Size: size("300"), RecordRef: ref("MR-004")},
		{ID: "B8", LineID: "L1", Size: size("350"), RecordRef: ref("MR004")},
	}
	lineMonths := map[string]string{"L1": "2025-06", "L2": "2025-07"}
	return newMatcher(items, aliases, batches, lineMonths, 2)
}

func TestMatcher_MatchItem(t *testing.T) {
	m := testMatcher()
	tests := []struct {
		name   string
		raw    string
		status entities.AllocationStatus
		item   string
	}{
		{"alias", "refined sugar", entities.AllocationMatched, "SUGAR"},
		{"code", "rm sugar", entities.AllocationMatched, "SUGAR"},
		{"shared_name", "SALT", entities.AllocationApproximate, "SALT"},
		{"near_code", "RM-SUGR", entities.AllocationApproximate, "SUGAR"},
		{"tie_is_unassigned", "Mango Pulq", entities.AllocationUnassigned, ""},
		{"too_far", "Unobtainium", entities.AllocationUnassigned, ""},
		{"empty", "  ", entities.AllocationUnassigned, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.matchItem(tt.raw)
			if got.status != tt.status || got.itemID != tt.item {
				t.Errorf("matchItem(%q) = %s/%q, want %s/%q (%s)", tt.raw, got.status, got.itemID, tt.status, tt.item, got.note)
			}
		})
	}
}

func TestMatcher_MatchBatch(t *testing.T) {
	m := testMatcher()
	june := time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC)

	if got := m.matchBatch("mr 001", june); got.batch == nil || got.batch.ID != "B1" || len(got.candidates) != 0 {
		t.Errorf("expected a single match on B1, got %+v", got)
	}
	got := m.matchBatch("MR002", june)
	if got.batch == nil || len(got.candidates) != 2 || got.candidates[0] != "B2" {
		t.Errorf("expected ambiguous B2/B3, got %+v", got)
	}
	if got := m.matchBatch("MR-404", june); got.batch != nil || got.note == "" {
		t.Errorf("expected no match with a note, got %+v", got)
	}
	if got := m.matchBatch("", june); got.batch != nil || got.note != "" {
		t.Errorf("expected empty ref to be ignored, got %+v", got)
	}
}

func TestMatcher_MatchBatch_NarrowsBySizeAndMonth(t *testing.T) {
	m := testMatcher()
	june := time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC)
	july := time.Date(2025, time.July, 3, 0, 0, 0, 0, time.UTC)
	august := time.Date(2025, time.August, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		raw        string
		issued     time.Time
		batch      string
		candidates int
	}{
		{"issue_month_picks_june_batch", "MR003", june, "B5", 0},
		{"issue_month_picks_july_batch", "MR003", july, "B6", 0},
		{"no_month_match_sizes_differ", "MR003", august, "", 2},
		{"same_month_sizes_differ", "MR004", june, "", 2},
		{"same_month_same_size", "MR002", june, "B2", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.matchBatch(tt.raw, tt.issued)
			id := ""
			if got.batch != nil {
				id = got.batch.ID
			}
			if id != tt.batch || len(got.candidates) != tt.candidates {
				t.Errorf("matchBatch(%q) = %q with %v, want %q with %d candidates (%s)",
					tt.raw, id, got.candidates, tt.batch, tt.candidates, got.note)
			}
		})
	}
}
