package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

var hundred = decimal.NewFromInt(100)

// BatchSplit is a total split into batch sizes plus an unbatched residual
type BatchSplit struct {
	Sizes    []decimal.Decimal `json:"sizes"`
	Residual decimal.Decimal   `json:"residual"`
}

// Batched returns the sum of all batch sizes
func (s BatchSplit) Batched() decimal.Decimal {
	sum := decimal.Zero
	for _, size := range s.Sizes {
		sum = sum.Add(size)
	}
	return sum
}

// Total returns batched quantity plus residual
func (s BatchSplit) Total() decimal.Decimal {
	return s.Batched().Add(s.Residual)
}

// ValidateBatchBounds checks 0 < min <= preferred <= max
func ValidateBatchBounds(min, max, preferred decimal.Decimal) error {
	if !min.IsPositive() {
		return entities.NewValidationError("", fmt.Errorf("%w: min must be positive, got %s", entities.ErrInvalidBatchBounds, min))
	}
	if preferred.LessThan(min) || preferred.GreaterThan(max) {
		return entities.NewValidationError("", fmt.Errorf("%w: need min <= preferred <= max, got %s/%s/%s",
			entities.ErrInvalidBatchBounds, min, preferred, max))
	}
	return nil
}

// ComputeBatches splits total into batches of the preferred size.
//
// Batches of preferred size are emitted while at least min would remain.
// The remainder r then becomes one more batch if r <= max, or one preferred
// batch plus a residual below min if r > max. A total below min is all
// residual. Every batch lies in [min, max].
func ComputeBatches(total, min, max, preferred decimal.Decimal) (BatchSplit, error) {
	if err := ValidateBatchBounds(min, max, preferred); err != nil {
		return BatchSplit{}, err
	}
	if total.IsNegative() {
		return BatchSplit{}, entities.NewValidationError("", fmt.Errorf("%w: negative total %s", entities.ErrInvalidBatchBounds, total))
	}

	split := BatchSplit{Sizes: []decimal.Decimal{}, Residual: decimal.Zero}
	if total.LessThan(min) {
		split.Residual = total
		return split, nil
	}

	remaining := total
	for remaining.Sub(preferred).GreaterThanOrEqual(min) {
		split.Sizes = append(split.Sizes, preferred)
		remaining = remaining.Sub(preferred)
	}

	// remaining >= min here, and remaining - preferred < min
	if remaining.LessThanOrEqual(max) {
		split.Sizes = append(split.Sizes, remaining)
	} else {
		split.Sizes = append(split.Sizes, preferred)
		split.Residual = remaining.Sub(preferred)
	}
	return split, nil
}

// NudgeResidual folds a small residual into the batches instead of leaving
// it unbatched. The residual must be positive and at most thresholdPct
// percent of preferred. It is spread from the last batch backwards, each
// batch growing to at most max; if the batches cannot absorb all of it,
// split is returned unchanged.
func NudgeResidual(split BatchSplit, preferred, max, thresholdPct decimal.Decimal) BatchSplit {
	if len(split.Sizes) == 0 || !split.Residual.IsPositive() || !thresholdPct.IsPositive() {
		return split
	}
	limit := preferred.Mul(thresholdPct).Div(hundred)
	if split.Residual.GreaterThan(limit) {
		return split
	}

	sizes := make([]decimal.Decimal, len(split.Sizes))
	copy(sizes, split.Sizes)
	left := split.Residual
	for i := len(sizes) - 1; i >= 0 && left.IsPositive(); i-- {
		room := max.Sub(sizes[i])
		if !room.IsPositive() {
			continue
		}
		take := decimal.Min(room, left)
		sizes[i] = sizes[i].Add(take)
		left = left.Sub(take)
	}
	if left.IsPositive() {
		return split
	}
	return BatchSplit{Sizes: sizes, Residual: decimal.Zero}
}
