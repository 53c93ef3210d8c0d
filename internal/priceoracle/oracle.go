// Package priceoracle resolves the current market price of one reward unit.
// The oracle is an external black box; callers always go through the cached
// decorator so that bursts of usage events do not fan out into network calls.
package priceoracle

import (
	"context"
	"errors"
)

// Oracle returns the current reward-unit price in USD.
type Oracle interface {
	CurrentPrice(ctx context.Context) (float64, error)
}

var (
	// ErrPriceUnavailable means the oracle could not be reached and no
	// previously cached price exists. Callers must defer the dependent
	// operation rather than guess a price.
	ErrPriceUnavailable = errors.New("price_unavailable")

	ErrInvalidPrice = errors.New("invalid_price")
)
