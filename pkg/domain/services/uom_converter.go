package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

type uomEdge struct {
	to     string
	factor decimal.Decimal
}

type uomPair struct {
	from, to string
}

// UomConverter converts quantities along directed conversion edges.
// Inverse edges are never assumed.
type UomConverter struct {
	units map[string]*entities.Unit
	edges map[string][]uomEdge

	cache      map[uomPair]decimal.Decimal
	cacheMutex sync.RWMutex
}

// NewUomConverter builds a converter from unit and conversion rows. An edge
// between units of different dimensions is rejected.
func NewUomConverter(units []*entities.Unit, conversions []*entities.UomConversion) (*UomConverter, error) {
	c := &UomConverter{
		units: make(map[string]*entities.Unit, len(units)),
		edges: make(map[string][]uomEdge),
		cache: make(map[uomPair]decimal.Decimal),
	}
	for _, u := range units {
		c.units[u.ID] = u
	}

	for _, conv := range conversions {
		from, okFrom := c.units[conv.FromUnitID]
		to, okTo := c.units[conv.ToUnitID]
		if !okFrom || !okTo {
			return nil, entities.NewValidationError(
				conv.FromUnitID+"->"+conv.ToUnitID,
				fmt.Errorf("conversion references unknown unit"),
			)
		}
		if from.Dimension != to.Dimension {
			return nil, entities.NewValidationError(
				conv.FromUnitID+"->"+conv.ToUnitID,
				fmt.Errorf("conversion crosses dimensions %s and %s", from.Dimension, to.Dimension),
			)
		}
		c.edges[conv.FromUnitID] = append(c.edges[conv.FromUnitID], uomEdge{to: conv.ToUnitID, factor: conv.Factor})
	}

	// Stable neighbour order keeps path selection deterministic
	for from := range c.edges {
		sort.Slice(c.edges[from], func(i, j int) bool {
			return c.edges[from][i].to < c.edges[from][j].to
		})
	}
	return c, nil
}

// Convert converts qty from one unit to another
func (c *UomConverter) Convert(qty decimal.Decimal, fromUnitID, toUnitID string) (decimal.Decimal, error) {
	factor, err := c.Factor(fromUnitID, toUnitID)
	if err != nil {
		return decimal.Zero, err
	}
	return qty.Mul(factor), nil
}

// Factor returns the multiplicative factor from one unit to another,
// resolving chains by breadth-first search over the directed edges.
func (c *UomConverter) Factor(fromUnitID, toUnitID string) (decimal.Decimal, error) {
	if fromUnitID == toUnitID {
		return decimal.NewFromInt(1), nil
	}

	key := uomPair{from: fromUnitID, to: toUnitID}
	c.cacheMutex.RLock()
	cached, ok := c.cache[key]
	c.cacheMutex.RUnlock()
	if ok {
		return cached, nil
	}

	noPath := entities.NewValidationError(fromUnitID+"->"+toUnitID, entities.ErrNoConversionPath)
	from, okFrom := c.units[fromUnitID]
	to, okTo := c.units[toUnitID]
	if !okFrom || !okTo || from.Dimension != to.Dimension {
		return decimal.Zero, noPath
	}

	factors := map[string]decimal.Decimal{fromUnitID: decimal.NewFromInt(1)}
	queue := []string{fromUnitID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range c.edges[current] {
			if _, seen := factors[e.to]; seen {
				continue
			}
			factors[e.to] = factors[current].Mul(e.factor)
			if e.to == toUnitID {
				c.cacheMutex.Lock()
				c.cache[key] = factors[e.to]
				c.cacheMutex.Unlock()
				return factors[e.to], nil
			}
			queue = append(queue, e.to)
		}
	}
	return decimal.Zero, noPath
}

// Dimension returns the dimension of a unit, or "" if unknown
func (c *UomConverter) Dimension(unitID string) string {
	if u, ok := c.units[unitID]; ok {
		return u.Dimension
	}
	return ""
}
