package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// DefaultWeightTolerance is the accepted distance of a profile's weight sum from 1
var DefaultWeightTolerance = decimal.New(1, -6)

// ValidateSeasonWeights checks months are 1..12 and unique, weights are
// non-negative, and the weights sum to 1 within tolerance.
func ValidateSeasonWeights(profile *entities.SeasonProfile, tolerance decimal.Decimal) error {
	if len(profile.Weights) == 0 {
		return entities.NewValidationError(profile.ID, fmt.Errorf("%w: profile has no weights", entities.ErrInvalidSeasonWeights))
	}
	seen := make(map[int]bool, len(profile.Weights))
	sum := decimal.Zero
	for _, w := range profile.Weights {
		if w.ProcurementMonth < 1 || w.ProcurementMonth > 12 {
			return entities.NewValidationError(profile.ID, fmt.Errorf("%w: month %d out of range", entities.ErrInvalidSeasonWeights, w.ProcurementMonth))
		}
		if seen[w.ProcurementMonth] {
			return entities.NewValidationError(profile.ID, fmt.Errorf("%w: month %d repeated", entities.ErrInvalidSeasonWeights, w.ProcurementMonth))
		}
		if w.Weight.IsNegative() {
			return entities.NewValidationError(profile.ID, fmt.Errorf("%w: negative weight for month %d", entities.ErrInvalidSeasonWeights, w.ProcurementMonth))
		}
		seen[w.ProcurementMonth] = true
		sum = sum.Add(w.Weight)
	}
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(tolerance) {
		return entities.NewValidationError(profile.ID, fmt.Errorf("%w: weights sum to %s", entities.ErrInvalidSeasonWeights, sum))
	}
	return nil
}

// Share is the part of a baseline quantity procured in one month
type Share struct {
	ProcurementMonth time.Time
	Weight           decimal.Decimal
	Qty              decimal.Decimal
}

// ProcurementMonthFor returns the latest month start with the given
// calendar month that is not after the baseline month.
func ProcurementMonthFor(baselineMonth time.Time, calendarMonth int) time.Time {
	b := entities.MonthStart(baselineMonth)
	year := b.Year()
	if time.Month(calendarMonth) > b.Month() {
		year--
	}
	return time.Date(year, time.Month(calendarMonth), 1, 0, 0, 0, 0, time.UTC)
}

// Redistribute spreads a baseline month's quantity over procurement months
// by weight. The last share takes the remainder so the shares sum to qty
// exactly. Shares are in chronological order.
func Redistribute(baselineMonth time.Time, qty decimal.Decimal, weights []entities.SeasonWeight) []Share {
	shares := make([]Share, 0, len(weights))
	for _, w := range weights {
		if !w.Weight.IsPositive() {
			continue
		}
		shares = append(shares, Share{
			ProcurementMonth: ProcurementMonthFor(baselineMonth, w.ProcurementMonth),
			Weight:           w.Weight,
		})
	}
	if len(shares) == 0 {
		return shares
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].ProcurementMonth.Before(shares[j].ProcurementMonth) })

	allocated := decimal.Zero
	for i := range shares {
		if i == len(shares)-1 {
			shares[i].Qty = qty.Sub(allocated)
			break
		}
		shares[i].Qty = qty.Mul(shares[i].Weight)
		allocated = allocated.Add(shares[i].Qty)
	}
	return shares
}
