package offer

import "learnstore/internal/domain"

// Strategy prices a basket line for offer calculations.
type Strategy interface {
	UnitPriceCents(line domain.Line) int64
}

// StockRecordStrategy uses the price captured when the line was added,
// falling back to the product's current price.
type StockRecordStrategy struct{}

func (StockRecordStrategy) UnitPriceCents(line domain.Line) int64 {
	if line.UnitPriceCents > 0 {
		return line.UnitPriceCents
	}
	return line.Product.PriceCents
}
