package fx

import (
	"fmt"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
)

// ToUSD converts an ARS amount using the given rate. A non-positive rate is a
// contract violation: a division by it would corrupt financial totals.
func ToUSD(amountARS, rate float64) (float64, error) {
	if rate <= 0 {
		return 0, fmt.Errorf("%w: got %v", common.ErrInvalidRate, rate)
	}
	return amountARS / rate, nil
}

// ToARS converts a USD amount using the given rate. Multiplying by zero is
// merely degenerate, not undefined, so there is no failure mode.
func ToARS(amountUSD, rate float64) float64 {
	return amountUSD * rate
}
