package services

import (
	"fmt"
	"sort"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// BOMValidator checks the structural integrity of the BOM graph
type BOMValidator struct{}

// NewBOMValidator creates a new BOM validator
func NewBOMValidator() *BOMValidator {
	return &BOMValidator{}
}

// ValidationResult contains the results of BOM validation
type ValidationResult struct {
	HasCycles      bool
	CyclePaths     [][]string
	DuplicateLines []entities.BOMLine
	UnknownItems   []string
	Errors         []string
}

// ValidateBOM checks headers and lines for cycles through semi-process
// BOMs, stock items repeated within one header, and lines referencing
// unknown stock items. knownItems may be nil to skip the last check.
func (v *BOMValidator) ValidateBOM(
	headers []*entities.BOMHeader,
	lines []*entities.BOMLine,
	knownItems map[string]bool,
) *ValidationResult {
	result := &ValidationResult{
		CyclePaths:     make([][]string, 0),
		DuplicateLines: make([]entities.BOMLine, 0),
		UnknownItems:   make([]string, 0),
		Errors:         make([]string, 0),
	}

	adjacencyMap := v.buildAdjacencyMap(headers, lines)

	cycles := v.detectCycles(adjacencyMap)
	result.HasCycles = len(cycles) > 0
	result.CyclePaths = cycles

	result.DuplicateLines = v.detectDuplicateLines(lines)

	if knownItems != nil {
		unknown := make(map[string]bool)
		for _, l := range lines {
			if !knownItems[l.StockItemID] && !unknown[l.StockItemID] {
				unknown[l.StockItemID] = true
				result.UnknownItems = append(result.UnknownItems, l.StockItemID)
			}
		}
		sort.Strings(result.UnknownItems)
	}

	for _, cycle := range result.CyclePaths {
		result.Errors = append(result.Errors, fmt.Sprintf("BOM cycle detected: %v", cycle))
	}
	if len(result.DuplicateLines) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Found %d duplicate BOM lines", len(result.DuplicateLines)))
	}
	if len(result.UnknownItems) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Lines reference unknown stock items: %v", result.UnknownItems))
	}

	return result
}

// buildAdjacencyMap creates owner -> consumed item edges. Only semi-process
// owners can be reached again as children, but every owner is a DFS root.
func (v *BOMValidator) buildAdjacencyMap(headers []*entities.BOMHeader, lines []*entities.BOMLine) map[string][]string {
	owners := make(map[string]string, len(headers))
	for _, h := range headers {
		if h.OwnerID != "" {
			owners[h.ID] = h.OwnerID
		}
	}

	adjacencyMap := make(map[string][]string)
	seen := make(map[string]bool)
	for _, line := range lines {
		owner, ok := owners[line.HeaderID]
		if !ok {
			continue
		}
		edge := owner + "|" + line.StockItemID
		if seen[edge] {
			continue
		}
		seen[edge] = true
		adjacencyMap[owner] = append(adjacencyMap[owner], line.StockItemID)
	}
	for owner := range adjacencyMap {
		sort.Strings(adjacencyMap[owner])
	}
	return adjacencyMap
}

// detectCycles uses DFS to find cycles in the BOM structure
func (v *BOMValidator) detectCycles(adjacencyMap map[string][]string) [][]string {
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)
	cycles := make([][]string, 0)

	roots := make([]string, 0, len(adjacencyMap))
	for parent := range adjacencyMap {
		roots = append(roots, parent)
	}
	sort.Strings(roots)

	for _, parent := range roots {
		if !visited[parent] {
			v.dfsDetectCycle(parent, adjacencyMap, visited, recursionStack, nil, &cycles)
		}
	}
	return cycles
}

func (v *BOMValidator) dfsDetectCycle(
	current string,
	adjacencyMap map[string][]string,
	visited map[string]bool,
	recursionStack map[string]bool,
	path []string,
	cycles *[][]string,
) {
	visited[current] = true
	recursionStack[current] = true
	path = append(path, current)

	for _, child := range adjacencyMap[current] {
		if !visited[child] {
			v.dfsDetectCycle(child, adjacencyMap, visited, recursionStack, path, cycles)
			continue
		}
		if recursionStack[child] {
			for i, part := range path {
				if part == child {
					cycle := make([]string, 0, len(path)-i+1)
					cycle = append(cycle, path[i:]...)
					cycle = append(cycle, child)
					*cycles = append(*cycles, cycle)
					break
				}
			}
		}
	}

	recursionStack[current] = false
}

// detectDuplicateLines finds a stock item consumed twice by one header
func (v *BOMValidator) detectDuplicateLines(lines []*entities.BOMLine) []entities.BOMLine {
	seen := make(map[string]*entities.BOMLine)
	duplicates := make([]entities.BOMLine, 0)

	for _, line := range lines {
		key := line.HeaderID + "|" + line.StockItemID
		if existing, exists := seen[key]; exists {
			duplicates = append(duplicates, *line, *existing)
		} else {
			seen[key] = line
		}
	}
	return duplicates
}
