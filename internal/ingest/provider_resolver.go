package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mbalestrini/gastos-backoffice/internal/entity"
	"github.com/mbalestrini/gastos-backoffice/internal/repository"
)

// ProviderMatch is the outcome of reconciling an extracted provider against
// the registry. A nil ProviderID means no match: commit must create the
// provider. Display values come from the registry when matched, so the
// preview shows the canonical name even if the extraction spelled it
// differently.
type ProviderMatch struct {
	ProviderID   *int64
	DisplayName  string
	DisplayTaxID string
}

// NormalizeTaxID reduces a CUIT to digits only for comparison. Stored tax ids
// keep their printed formatting.
func NormalizeTaxID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveProvider matches in order: (1) exact normalized tax id, (2)
// case-insensitive exact name. First match wins; tax id is the more reliable
// signal and beats a name mismatch.
func ResolveProvider(name, taxID string, registry []*entity.Provider) ProviderMatch {
	match := ProviderMatch{DisplayName: name, DisplayTaxID: taxID}
	if name == "" && taxID == "" {
		return match
	}

	if norm := NormalizeTaxID(taxID); norm != "" {
		for _, p := range registry {
			if p.TaxID != nil && NormalizeTaxID(*p.TaxID) == norm {
				id := p.ID
				match.ProviderID = &id
				match.DisplayName = p.Name
				match.DisplayTaxID = *p.TaxID
				return match
			}
		}
	}

	if name != "" {
		lower := strings.ToLower(name)
		for _, p := range registry {
			if strings.ToLower(p.Name) == lower {
				id := p.ID
				match.ProviderID = &id
				match.DisplayName = p.Name
				if p.TaxID != nil && *p.TaxID != "" {
					match.DisplayTaxID = *p.TaxID
				}
				return match
			}
		}
	}

	return match
}

// EnsureProvider is the commit-side counterpart of ResolveProvider: it
// creates the provider when unmatched, and when matched it backfills a
// missing tax id and overwrites a differing name with the freshly extracted
// one (extraction is treated as the more current source of truth). Preview
// must never call this.
func EnsureProvider(ctx context.Context, repo repository.ProviderRepository, registry []*entity.Provider, name, taxID string, logger *slog.Logger) (int64, string, error) {
	match := ResolveProvider(name, taxID, registry)

	if match.ProviderID == nil {
		var taxPtr *string
		if taxID != "" {
			taxPtr = &taxID
		}
		p, err := repo.Create(ctx, name, taxPtr)
		if err != nil {
			return 0, "", fmt.Errorf("create provider: %w", err)
		}
		logger.Info("ingest.provider.created", "provider_id", p.ID, "name", name)
		return p.ID, p.Name, nil
	}

	id := *match.ProviderID
	var existing *entity.Provider
	for _, p := range registry {
		if p.ID == id {
			existing = p
			break
		}
	}

	upd := repository.UpdateProvider{}
	if taxID != "" && (existing == nil || existing.TaxID == nil || *existing.TaxID == "") {
		upd.TaxID = &taxID
	}
	if name != "" && existing != nil && existing.Name != name {
		upd.Name = &name
	}
	if upd.Name != nil || upd.TaxID != nil {
		if _, err := repo.Update(ctx, id, upd); err != nil {
			return 0, "", fmt.Errorf("update provider %d: %w", id, err)
		}
		logger.Info("ingest.provider.updated",
			"provider_id", id,
			"name_overwritten", upd.Name != nil,
			"tax_id_backfilled", upd.TaxID != nil,
		)
	}

	finalName := match.DisplayName
	if upd.Name != nil {
		finalName = *upd.Name
	}
	return id, finalName, nil
}
