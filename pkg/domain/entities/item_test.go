package entities

import (
	"errors"
	"testing"
	"time"
)

func TestStockItem_Validation(t *testing.T) {
	item, err := NewStockItem("SUGAR", "RM-001", "Sugar", "KG", MaterialRM)
	if err != nil {
		t.Fatalf("Expected valid item creation to succeed: %v", err)
	}
	if item.IsSeasonal() {
		t.Error("Expected new item to have no season profile")
	}

	testCases := []struct {
		name        string
		id, code    string
		unit        string
		kind        MaterialKind
		expectError string
	}{
		{"empty id", "", "C", "KG", MaterialRM, "stock item id cannot be empty"},
		{"empty code", "X", "", "KG", MaterialRM, "stock item code cannot be empty"},
		{"empty unit", "X", "C", "", MaterialRM, "default unit cannot be empty for X"},
		{"bad kind", "X", "C", "KG", "ZZ", `unknown material kind: "ZZ"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewStockItem(tc.id, tc.code, "n", tc.unit, tc.kind)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestMonthHelpers(t *testing.T) {
	d := time.Date(2025, 3, 17, 15, 4, 5, 0, time.UTC)
	if got := MonthStart(d); !got.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected 2025-03-01, got %v", got)
	}
	if got := MonthKey(d); got != "2025-03" {
		t.Errorf("Expected 2025-03, got %s", got)
	}

	months := MonthsBetween(time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC), d)
	if len(months) != 5 {
		t.Fatalf("Expected 5 months from Nov to Mar, got %d", len(months))
	}
	if months[2].Year() != 2025 || months[2].Month() != time.January {
		t.Errorf("Expected third month January 2025, got %v", months[2])
	}
}

func TestErrorTaxonomy(t *testing.T) {
	err := NewValidationError("KG->EA", ErrNoConversionPath)
	if !errors.Is(err, ErrNoConversionPath) {
		t.Error("Expected validation error to unwrap to ErrNoConversionPath")
	}
	if !IsValidation(err) || IsConsistency(err) {
		t.Error("Expected error to classify as validation only")
	}
	if err.Error() != "validation error for KG->EA: no conversion path" {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	cerr := NewConsistencyError("SYRUP", ErrBomCycleDetected)
	if !errors.Is(cerr, ErrBomCycleDetected) || !IsConsistency(cerr) {
		t.Error("Expected consistency error wrapping ErrBomCycleDetected")
	}
}

func TestIssueLine_Validation(t *testing.T) {
	day := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	line, err := NewIssueLine("ISS1", day, "B-001", "Sugar", dec("40"), "KG")
	if err != nil {
		t.Fatalf("Expected valid issue line: %v", err)
	}
	if line.AllocationStatus != AllocationUnassigned {
		t.Errorf("Expected new line unassigned, got %s", line.AllocationStatus)
	}
	if _, err := NewIssueLine("ISS2", day, "", "", dec("-1"), "KG"); err == nil {
		t.Error("Expected error for negative quantity")
	}
}
