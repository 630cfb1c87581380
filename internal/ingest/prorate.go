package ingest

import (
	"github.com/shopspring/decimal"
)

// Share is one company's slice of a prorated invoice.
type Share struct {
	CompanyID int64
	AmountARS float64
	AmountUSD float64
}

// DedupeCompanyIDs returns the primary company followed by the additional
// ones, each id exactly once, order preserved.
func DedupeCompanyIDs(primary int64, additional []int64) []int64 {
	seen := map[int64]struct{}{primary: {}}
	out := []int64{primary}
	for _, id := range additional {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Prorate splits both currency totals evenly across the companies. Shares are
// computed in decimal cents; the rounding remainder lands on the first
// (primary) company, so the shares always sum back to the totals exactly in
// both currencies.
func Prorate(totalARS, totalUSD float64, companyIDs []int64) []Share {
	if len(companyIDs) == 0 {
		return nil
	}

	n := int64(len(companyIDs))
	arsShares := splitEven(totalARS, n)
	usdShares := splitEven(totalUSD, n)

	out := make([]Share, len(companyIDs))
	for i, id := range companyIDs {
		out[i] = Share{
			CompanyID: id,
			AmountARS: arsShares[i],
			AmountUSD: usdShares[i],
		}
	}
	return out
}

func splitEven(total float64, n int64) []float64 {
	t := decimal.NewFromFloat(total).Round(2)
	each := t.Div(decimal.NewFromInt(n)).Round(2)
	// primary takes total - (n-1) even shares, absorbing the cent remainder
	first := t.Sub(each.Mul(decimal.NewFromInt(n - 1)))

	out := make([]float64, n)
	out[0] = first.InexactFloat64()
	for i := int64(1); i < n; i++ {
		out[i] = each.InexactFloat64()
	}
	return out
}
