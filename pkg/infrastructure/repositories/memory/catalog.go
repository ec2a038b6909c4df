package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
	"github.com/vsinha/mfgplan/pkg/domain/services"
)

type ownerKey struct {
	kind  entities.BOMKind
	owner string
}

type resolvedKey struct {
	headerID string
	skuID    string
}

// Catalog is a read-only snapshot of master data and BOM structure, laid
// out as slices with index maps so a whole explosion runs without storage
// round trips. Resolved effective BOMs are memoized.
type Catalog struct {
	items     []entities.StockItem
	itemsMap  map[string]int
	headers   []entities.BOMHeader
	headerMap map[string]int
	ownerMap  map[ownerKey]int
	lines     []entities.BOMLine
	lineIndex map[string][]int
	products  map[string]*entities.Product
	skus      map[string]*entities.SKU
	packs     map[string]string
	overrides map[resolvedKey][]*entities.BOMOverride
	converter *services.UomConverter

	resolved      map[resolvedKey]*entities.EffectiveBOM
	resolvedMutex sync.RWMutex
}

// NewCatalog creates an empty catalog sized for the expected data
func NewCatalog(expectedItems, expectedLines int) *Catalog {
	return &Catalog{
		items:     make([]entities.StockItem, 0, expectedItems),
		itemsMap:  make(map[string]int, expectedItems),
		headerMap: make(map[string]int),
		ownerMap:  make(map[ownerKey]int),
		lines:     make([]entities.BOMLine, 0, expectedLines),
		lineIndex: make(map[string][]int),
		products:  make(map[string]*entities.Product),
		skus:      make(map[string]*entities.SKU),
		packs:     make(map[string]string),
		overrides: make(map[resolvedKey][]*entities.BOMOverride),
		resolved:  make(map[resolvedKey]*entities.EffectiveBOM),
	}
}

// LoadCatalog snapshots everything an explosion reads
func LoadCatalog(ctx context.Context, itemRepo repositories.ItemRepository, bomRepo repositories.BOMRepository) (*Catalog, error) {
	items, err := itemRepo.ListStockItems(ctx)
	if err != nil {
		return nil, err
	}
	units, err := itemRepo.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	conversions, err := itemRepo.ListConversions(ctx)
	if err != nil {
		return nil, err
	}
	converter, err := services.NewUomConverter(units, conversions)
	if err != nil {
		return nil, err
	}
	headers, err := bomRepo.ListHeaders(ctx, "")
	if err != nil {
		return nil, err
	}

	c := NewCatalog(len(items), len(headers)*8)
	c.SetConverter(converter)
	for _, item := range items {
		c.AddItem(*item)
	}
	for _, h := range headers {
		c.AddHeader(*h)
		lines, err := bomRepo.GetLines(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		for _, l := range lines {
			c.AddLine(*l)
		}
	}

	products, err := itemRepo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		c.AddProduct(p)
	}
	skus, err := itemRepo.ListSKUs(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range skus {
		c.AddSKU(s)
	}
	packs, err := bomRepo.ListPackMappings(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range packs {
		c.AddPackMapping(p.SkuID, p.TemplateID)
		overrides, err := bomRepo.ListOverrides(ctx, p.SkuID, p.TemplateID)
		if err != nil {
			return nil, err
		}
		for _, o := range overrides {
			c.AddOverride(o)
		}
	}
	return c, nil
}

// SetConverter installs the unit converter
func (c *Catalog) SetConverter(converter *services.UomConverter) {
	c.converter = converter
}

// Converter returns the unit converter
func (c *Catalog) Converter() *services.UomConverter {
	return c.converter
}

// AddItem adds a stock item
func (c *Catalog) AddItem(item entities.StockItem) {
	c.itemsMap[item.ID] = len(c.items)
	c.items = append(c.items, item)
}

// StockItem returns a stock item by id
func (c *Catalog) StockItem(id string) (*entities.StockItem, bool) {
	index, exists := c.itemsMap[id]
	if !exists {
		return nil, false
	}
	return &c.items[index], true
}

// KnownItems returns the set of stock item ids
func (c *Catalog) KnownItems() map[string]bool {
	known := make(map[string]bool, len(c.items))
	for id := range c.itemsMap {
		known[id] = true
	}
	return known
}

// AddHeader adds a BOM header. Non-template headers are indexed by owner.
func (c *Catalog) AddHeader(h entities.BOMHeader) {
	index := len(c.headers)
	c.headers = append(c.headers, h)
	c.headerMap[h.ID] = index
	if !h.IsTemplate && h.OwnerID != "" {
		c.ownerMap[ownerKey{kind: h.Kind, owner: h.OwnerID}] = index
	}
}

// Header returns a BOM header by id
func (c *Catalog) Header(id string) (*entities.BOMHeader, bool) {
	index, exists := c.headerMap[id]
	if !exists {
		return nil, false
	}
	return &c.headers[index], true
}

// OwnedHeader returns the BOM of the given kind owned by ownerID
func (c *Catalog) OwnedHeader(kind entities.BOMKind, ownerID string) (*entities.BOMHeader, bool) {
	index, exists := c.ownerMap[ownerKey{kind: kind, owner: ownerID}]
	if !exists {
		return nil, false
	}
	return &c.headers[index], true
}

// AddLine adds a BOM line under its header
func (c *Catalog) AddLine(line entities.BOMLine) {
	index := len(c.lines)
	c.lines = append(c.lines, line)
	c.lineIndex[line.HeaderID] = append(c.lineIndex[line.HeaderID], index)
}

// Lines returns a header's lines ordered by line number
func (c *Catalog) Lines(headerID string) []*entities.BOMLine {
	indexes := c.lineIndex[headerID]
	lines := make([]*entities.BOMLine, len(indexes))
	for i, idx := range indexes {
		lines[i] = &c.lines[idx]
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].LineNo < lines[j].LineNo })
	return lines
}

// AddProduct adds a product
func (c *Catalog) AddProduct(p *entities.Product) {
	c.products[p.ID] = p
}

// Product returns a product by id
func (c *Catalog) Product(id string) (*entities.Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// AddSKU adds a SKU
func (c *Catalog) AddSKU(s *entities.SKU) {
	c.skus[s.ID] = s
}

// SKU returns a SKU by id
func (c *Catalog) SKU(id string) (*entities.SKU, bool) {
	s, ok := c.skus[id]
	return s, ok
}

// AddPackMapping maps a SKU onto its PLM template
func (c *Catalog) AddPackMapping(skuID, templateID string) {
	c.packs[skuID] = templateID
}

// PackTemplate returns the PLM template a SKU is filled against
func (c *Catalog) PackTemplate(skuID string) (string, bool) {
	t, ok := c.packs[skuID]
	return t, ok
}

// AddOverride records a SKU override of a template
func (c *Catalog) AddOverride(o *entities.BOMOverride) {
	key := resolvedKey{headerID: o.TemplateID, skuID: o.SkuID}
	c.overrides[key] = append(c.overrides[key], o)
}

// EffectiveBOM resolves a header, with skuID's overrides when skuID is set
func (c *Catalog) EffectiveBOM(headerID, skuID string) (*entities.EffectiveBOM, error) {
	key := resolvedKey{headerID: headerID, skuID: skuID}

	c.resolvedMutex.RLock()
	cached, ok := c.resolved[key]
	c.resolvedMutex.RUnlock()
	if ok {
		return cached, nil
	}

	header, ok := c.Header(headerID)
	if !ok {
		return nil, entities.NewValidationError(headerID, fmt.Errorf("%w: header %s", entities.ErrMissingBOM, headerID))
	}
	var overrides []*entities.BOMOverride
	if skuID != "" {
		overrides = c.overrides[key]
	}
	bom, err := services.ResolveBOM(header, c.Lines(headerID), overrides)
	if err != nil {
		return nil, err
	}

	c.resolvedMutex.Lock()
	c.resolved[key] = bom
	c.resolvedMutex.Unlock()
	return bom, nil
}

// ValidateGraph runs the structural BOM checks over the whole catalog
func (c *Catalog) ValidateGraph() *services.ValidationResult {
	headers := make([]*entities.BOMHeader, len(c.headers))
	for i := range c.headers {
		headers[i] = &c.headers[i]
	}
	lines := make([]*entities.BOMLine, len(c.lines))
	for i := range c.lines {
		lines[i] = &c.lines[i]
	}
	return services.NewBOMValidator().ValidateBOM(headers, lines, c.KnownItems())
}
