package services

import (
	"errors"
	"testing"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

func converterFixture(t *testing.T) *UomConverter {
	t.Helper()
	units := []*entities.Unit{
		{ID: "kg", Dimension: "mass"},
		{ID: "g", Dimension: "mass"},
		{ID: "mg", Dimension: "mass"},
		{ID: "l", Dimension: "volume"},
		{ID: "ml", Dimension: "volume"},
	}
	conversions := []*entities.UomConversion{
		{FromUnitID: "kg", ToUnitID: "g", Factor: d("1000")},
		{FromUnitID: "g", ToUnitID: "mg", Factor: d("1000")},
		{FromUnitID: "l", ToUnitID: "ml", Factor: d("1000")},
		{FromUnitID: "ml", ToUnitID: "l", Factor: d("0.001")},
	}
	c, err := NewUomConverter(units, conversions)
	if err != nil {
		t.Fatalf("NewUomConverter failed: %v", err)
	}
	return c
}

func TestUomConverter_Convert(t *testing.T) {
	c := converterFixture(t)

	tests := []struct {
		name     string
		qty      string
		from, to string
		want     string
	}{
		{"identity", "7.5", "kg", "kg", "7.5"},
		{"direct_edge", "2.5", "kg", "g", "2500"},
		{"chained", "0.002", "kg", "mg", "2000"},
		{"explicit_inverse", "250", "ml", "l", "0.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Convert(d(tt.qty), tt.from, tt.to)
			if err != nil {
				t.Fatalf("Convert failed: %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}

	// cached path returns the same factor
	again, _ := c.Convert(d("0.002"), "kg", "mg")
	if !again.Equal(d("2000")) {
		t.Errorf("Expected 2000 from cache, got %s", again)
	}
}

func TestUomConverter_NoPath(t *testing.T) {
	c := converterFixture(t)

	tests := []struct {
		name     string
		from, to string
	}{
		{"no_inverse_assumed", "g", "kg"},
		{"cross_dimension", "kg", "l"},
		{"unknown_unit", "kg", "lb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Convert(d("1"), tt.from, tt.to)
			if !errors.Is(err, entities.ErrNoConversionPath) {
				t.Fatalf("Expected ErrNoConversionPath, got %v", err)
			}
			if !entities.IsValidation(err) {
				t.Errorf("Expected a validation error, got %T", err)
			}
		})
	}
}

func TestNewUomConverter_RejectsCrossDimensionEdge(t *testing.T) {
	units := []*entities.Unit{{ID: "kg", Dimension: "mass"}, {ID: "l", Dimension: "volume"}}
	conversions := []*entities.UomConversion{{FromUnitID: "kg", ToUnitID: "l", Factor: d("1")}}

	if _, err := NewUomConverter(units, conversions); err == nil {
		t.Error("Expected error for an edge across dimensions")
	}
}

func TestUomConverter_Dimension(t *testing.T) {
	c := converterFixture(t)
	if got := c.Dimension("ml"); got != "volume" {
		t.Errorf("Expected volume, got %q", got)
	}
	if got := c.Dimension("lb"); got != "" {
		t.Errorf("Expected empty dimension for unknown unit, got %q", got)
	}
}
