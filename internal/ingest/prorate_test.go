package ingest

import (
	"math"
	"reflect"
	"testing"
)

func TestDedupeCompanyIDs(t *testing.T) {
	tests := []struct {
		name       string
		primary    int64
		additional []int64
		want       []int64
	}{
		{name: "no additional", primary: 1, want: []int64{1}},
		{name: "distinct", primary: 1, additional: []int64{2, 3}, want: []int64{1, 2, 3}},
		{name: "primary repeated", primary: 1, additional: []int64{1, 2}, want: []int64{1, 2}},
		{name: "additional repeated", primary: 5, additional: []int64{7, 7, 9, 7}, want: []int64{5, 7, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupeCompanyIDs(tt.primary, tt.additional)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("DedupeCompanyIDs(%d, %v) = %v, want %v", tt.primary, tt.additional, got, tt.want)
			}
		})
	}
}

func TestProrateSumsExactly(t *testing.T) {
	tests := []struct {
		name      string
		totalARS  float64
		totalUSD  float64
		companies []int64
	}{
		{name: "single company", totalARS: 1234.56, totalUSD: 1.23, companies: []int64{1}},
		{name: "even split", totalARS: 100, totalUSD: 10, companies: []int64{1, 2}},
		{name: "indivisible cents", totalARS: 100, totalUSD: 0.10, companies: []int64{1, 2, 3}},
		{name: "large amounts", totalARS: 9999999.99, totalUSD: 9523.81, companies: []int64{4, 8, 15, 16, 23, 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares := Prorate(tt.totalARS, tt.totalUSD, tt.companies)
			if len(shares) != len(tt.companies) {
				t.Fatalf("got %d shares, want %d", len(shares), len(tt.companies))
			}

			var sumARS, sumUSD float64
			for i, s := range shares {
				if s.CompanyID != tt.companies[i] {
					t.Errorf("share %d company = %d, want %d", i, s.CompanyID, tt.companies[i])
				}
				sumARS += s.AmountARS
				sumUSD += s.AmountUSD
			}
			if math.Abs(sumARS-tt.totalARS) > 1e-9 {
				t.Errorf("ARS shares sum to %v, want %v", sumARS, tt.totalARS)
			}
			if math.Abs(sumUSD-tt.totalUSD) > 1e-9 {
				t.Errorf("USD shares sum to %v, want %v", sumUSD, tt.totalUSD)
			}
		})
	}
}

func TestProrateRemainderOnPrimary(t *testing.T) {
	shares := Prorate(100, 0, []int64{1, 2, 3})
	// 100 / 3 = 33.33 with a 0.01 remainder for the primary
	if shares[0].AmountARS != 33.34 {
		t.Errorf("primary share = %v, want 33.34", shares[0].AmountARS)
	}
	for _, s := range shares[1:] {
		if s.AmountARS != 33.33 {
			t.Errorf("company %d share = %v, want 33.33", s.CompanyID, s.AmountARS)
		}
	}
}

func TestProrateNoCompanies(t *testing.T) {
	if got := Prorate(100, 10, nil); got != nil {
		t.Fatalf("Prorate with no companies = %v, want nil", got)
	}
}
