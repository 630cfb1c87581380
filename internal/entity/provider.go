package entity

import "time"

// Provider is the invoice-issuing counterparty. TaxID keeps its original
// formatting; comparisons always go through the digits-only normalization.
type Provider struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	TaxID     *string    `json:"taxId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}
