// Package reward converts metered voice usage into reward units and cash
// equivalents. Reward units are linear in minutes used; the unit price only
// derives a cash value. Events store the price observed at write time, and a
// stored snapshot is never recomputed with a later price.
package reward

import "time"

const (
	// UnitsPerMinute is the accrual rate for contributed-voice usage.
	UnitsPerMinute = 1.0

	// SettlementCadenceDays is the payout batching cadence.
	SettlementCadenceDays = 60

	// MinSettlementMinutes is the usage floor below which a settlement run
	// produces no batch.
	MinSettlementMinutes = 1.0
)

// Accrual is a computed reward amount plus its cash equivalent at a price.
type Accrual struct {
	Units   float64
	CashUSD float64
}

// ForEvent computes the reward for a single usage event.
func ForEvent(durationSeconds float64, price float64) Accrual {
	return ForAccrued(durationSeconds/60, price)
}

// ForAccrued computes the reward for an accumulated number of minutes.
func ForAccrued(totalMinutes float64, price float64) Accrual {
	if totalMinutes < 0 {
		totalMinutes = 0
	}
	units := totalMinutes * UnitsPerMinute
	return Accrual{
		Units:   units,
		CashUSD: units * price,
	}
}

// DaysUntilNextSettlement reports how many days remain before the next payout
// batch, given the period end of the most recent settlement. A contribution
// with no settlements yet is a full cadence away.
func DaysUntilNextSettlement(lastPeriodEnd *time.Time, now time.Time) int {
	if lastPeriodEnd == nil {
		return SettlementCadenceDays
	}
	elapsed := int(now.Sub(*lastPeriodEnd).Hours() / 24)
	remaining := SettlementCadenceDays - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
