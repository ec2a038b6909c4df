package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// Normalize upper-cases s and keeps letters and digits only, so
// "mr-001 " and "MR001" compare equal
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// itemMatch is the outcome of resolving raw item text
type itemMatch struct {
	status     entities.AllocationStatus
	itemID     string
	candidates []string
	note       string
}

// batchMatch is the outcome of resolving a raw batch reference
type batchMatch struct {
	batch      *entities.Batch
	candidates []string
	note       string
}

// matcher resolves free text against known item keys and batch records
type matcher struct {
	itemKeys    map[string][]string
	sortedKeys  []string
	batches     map[string][]*entities.Batch
	lineMonths  map[string]string
	maxDistance int
}

// newMatcher indexes items, aliases and linked batches. lineMonths maps a
// plan line id to its month key and may be nil.
func newMatcher(items []*entities.StockItem, aliases []*entities.StockItemAlias, linked []*entities.Batch, lineMonths map[string]string, maxDistance int) *matcher {
	if lineMonths == nil {
		lineMonths = make(map[string]string)
	}
	m := &matcher{
		itemKeys:    make(map[string][]string),
		batches:     make(map[string][]*entities.Batch),
		lineMonths:  lineMonths,
		maxDistance: maxDistance,
	}
	for _, item := range items {
		m.addItemKey(item.ID, item.ID)
		m.addItemKey(item.Code, item.ID)
		m.addItemKey(item.Name, item.ID)
	}
	for _, a := range aliases {
		m.addItemKey(a.Alias, a.StockItemID)
	}
	for key := range m.itemKeys {
		sort.Strings(m.itemKeys[key])
		m.sortedKeys = append(m.sortedKeys, key)
	}
	sort.Strings(m.sortedKeys)

	for _, b := range linked {
		if !b.IsLinked() {
			continue
		}
		key := Normalize(*b.RecordRef)
		m.batches[key] = append(m.batches[key], b)
	}
	for key := range m.batches {
		sort.Slice(m.batches[key], func(i, j int) bool { return m.batches[key][i].ID < m.batches[key][j].ID })
	}
	return m
}

func (m *matcher) addItemKey(text, itemID string) {
	key := Normalize(text)
	if key == "" {
		return
	}
	for _, existing := range m.itemKeys[key] {
		if existing == itemID {
			return
		}
	}
	m.itemKeys[key] = append(m.itemKeys[key], itemID)
}

// matchItem resolves raw item text: an exact key owned by one item is a
// match, several owners or a single nearest key within maxDistance is
// approximate, anything else is unassigned
func (m *matcher) matchItem(raw string) itemMatch {
	key := Normalize(raw)
	if key == "" {
		return itemMatch{status: entities.AllocationUnassigned, note: "no item text"}
	}
	if owners, ok := m.itemKeys[key]; ok {
		if len(owners) == 1 {
			return itemMatch{status: entities.AllocationMatched, itemID: owners[0]}
		}
		return itemMatch{
			status:     entities.AllocationApproximate,
			itemID:     owners[0],
			candidates: owners,
			note:       fmt.Sprintf("%q names %d stock items", raw, len(owners)),
		}
	}

	best := m.maxDistance + 1
	var nearest []string
	for _, candidate := range m.sortedKeys {
		d := levenshtein.ComputeDistance(key, candidate)
		switch {
		case d < best:
			best = d
			nearest = append(nearest[:0], m.itemKeys[candidate]...)
		case d == best:
			nearest = appendUnique(nearest, m.itemKeys[candidate]...)
		}
	}
	if best > m.maxDistance || len(nearest) == 0 {
		return itemMatch{status: entities.AllocationUnassigned, note: fmt.Sprintf("no stock item matches %q", raw)}
	}
	sort.Strings(nearest)
	if len(nearest) > 1 {
		return itemMatch{
			status:     entities.AllocationUnassigned,
			candidates: nearest,
			note:       fmt.Sprintf("%q is equally close to %d stock items", raw, len(nearest)),
		}
	}
	return itemMatch{
		status:     entities.AllocationApproximate,
		itemID:     nearest[0],
		candidates: nearest,
		note:       fmt.Sprintf("%q is within distance %d of %s", raw, best, nearest[0]),
	}
}

// matchBatch resolves a raw batch reference against linked record refs.
// When several batches share the reference, those planned for the issue
// month are preferred. Candidates of one size are indistinguishable and
// give an ambiguous match on the first; candidates of different sizes
// give no batch at all.
func (m *matcher) matchBatch(raw string, issued time.Time) batchMatch {
	key := Normalize(raw)
	if key == "" {
		return batchMatch{}
	}
	found := m.batches[key]
	if len(found) == 0 {
		return batchMatch{note: fmt.Sprintf("batch ref %q is not linked to a planned batch", raw)}
	}
	if len(found) > 1 {
		month := entities.MonthKey(issued)
		var inMonth []*entities.Batch
		for _, b := range found {
			if m.lineMonths[b.LineID] == month {
				inMonth = append(inMonth, b)
			}
		}
		if len(inMonth) > 0 {
			found = inMonth
		}
	}
	if len(found) == 1 {
		return batchMatch{batch: found[0]}
	}

	ids := make([]string, len(found))
	sameSize := true
	for i, b := range found {
		ids[i] = b.ID
		if !b.Size.Equal(found[0].Size) {
			sameSize = false
		}
	}
	if !sameSize {
		return batchMatch{
			candidates: ids,
			note:       fmt.Sprintf("batch ref %q matches %d planned batches of different sizes", raw, len(found)),
		}
	}
	return batchMatch{
		batch:      found[0],
		candidates: ids,
		note:       fmt.Sprintf("batch ref %q matches %d planned batches of size %s", raw, len(found), found[0].Size),
	}
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		seen := false
		for _, existing := range list {
			if existing == v {
				seen = true
				break
			}
		}
		if !seen {
			list = append(list, v)
		}
	}
	return list
}
