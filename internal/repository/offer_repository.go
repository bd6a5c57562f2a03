package repository

import (
	"context"

	"github.com/armada-ops/be-proc-approvals/internal/database"
	"github.com/armada-ops/be-proc-approvals/internal/errors"
)

// OfferRepository reads the vendor offer ledger and the revenue tariff inputs
// for a procurement. Both are read-only from this service's point of view.
type OfferRepository struct {
	db *database.DB
}

// NewOfferRepository creates a new OfferRepository.
func NewOfferRepository(db *database.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// ListOfferLines returns every vendor offer line for a procurement, across
// all rounds.
func (r *OfferRepository) ListOfferLines(ctx context.Context, procurementID string) ([]VendorOfferLine, error) {
	query := `
		SELECT vendor_id, procurement_id, line_item_id, round,
		       price, quantity, trip_factor
		FROM vendor_offer_lines
		WHERE procurement_id = $1
		ORDER BY vendor_id ASC, line_item_id ASC, round ASC
	`

	rows, err := r.db.Query(ctx, query, procurementID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list vendor offer lines")
	}
	defer rows.Close()

	var lines []VendorOfferLine
	for rows.Next() {
		var l VendorOfferLine
		err := rows.Scan(
			&l.VendorID,
			&l.ProcurementID,
			&l.LineItemID,
			&l.Round,
			&l.Price,
			&l.Quantity,
			&l.TripFactor,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan vendor offer line")
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// ListLineItems returns the procurement's line items with their revenue
// tariff inputs.
func (r *OfferRepository) ListLineItems(ctx context.Context, procurementID string) ([]ProcurementLineItem, error) {
	query := `
		SELECT id, procurement_id, base_tariff, add_tariff, km_factor, quantity
		FROM procurement_line_items
		WHERE procurement_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.Query(ctx, query, procurementID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list procurement line items")
	}
	defer rows.Close()

	var items []ProcurementLineItem
	for rows.Next() {
		var it ProcurementLineItem
		err := rows.Scan(
			&it.ID,
			&it.ProcurementID,
			&it.BaseTariff,
			&it.AddTariff,
			&it.KmFactor,
			&it.Quantity,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan procurement line item")
		}
		items = append(items, it)
	}
	return items, nil
}
