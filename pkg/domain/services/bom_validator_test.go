package services

import (
	"strings"
	"testing"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

func TestBOMValidator_DetectsCycle(t *testing.T) {
	headers := []*entities.BOMHeader{
		{ID: "H-A", Kind: entities.BOMKindSP, OwnerID: "SP-A"},
		{ID: "H-B", Kind: entities.BOMKindSP, OwnerID: "SP-B"},
	}
	lines := []*entities.BOMLine{
		{HeaderID: "H-A", LineNo: 1, StockItemID: "SP-B"},
		{HeaderID: "H-A", LineNo: 2, StockItemID: "SUGAR"},
		{HeaderID: "H-B", LineNo: 1, StockItemID: "SP-A"},
	}

	result := NewBOMValidator().ValidateBOM(headers, lines, nil)
	if !result.HasCycles {
		t.Fatal("Expected a cycle to be detected")
	}
	cycle := strings.Join(result.CyclePaths[0], "->")
	if cycle != "SP-A->SP-B->SP-A" {
		t.Errorf("Expected cycle SP-A->SP-B->SP-A, got %s", cycle)
	}
	if len(result.Errors) == 0 {
		t.Error("Expected an error message for the cycle")
	}
}

func TestBOMValidator_AcyclicWithDuplicatesAndUnknowns(t *testing.T) {
	headers := []*entities.BOMHeader{
		{ID: "H-P", Kind: entities.BOMKindRM, OwnerID: "P1"},
		{ID: "H-S", Kind: entities.BOMKindSP, OwnerID: "SP-SYRUP"},
	}
	lines := []*entities.BOMLine{
		{HeaderID: "H-P", LineNo: 1, StockItemID: "SP-SYRUP"},
		{HeaderID: "H-P", LineNo: 2, StockItemID: "SUGAR"},
		{HeaderID: "H-P", LineNo: 3, StockItemID: "SUGAR"},
		{HeaderID: "H-S", LineNo: 1, StockItemID: "WATER"},
	}
	known := map[string]bool{"SP-SYRUP": true, "SUGAR": true}

	result := NewBOMValidator().ValidateBOM(headers, lines, known)
	if result.HasCycles {
		t.Errorf("Expected no cycles, got %v", result.CyclePaths)
	}
	if len(result.DuplicateLines) != 2 {
		t.Errorf("Expected 2 duplicate lines, got %d", len(result.DuplicateLines))
	}
	if len(result.UnknownItems) != 1 || result.UnknownItems[0] != "WATER" {
		t.Errorf("Expected unknown [WATER], got %v", result.UnknownItems)
	}
	if len(result.Errors) != 2 {
		t.Errorf("Expected 2 error messages, got %v", result.Errors)
	}
}
