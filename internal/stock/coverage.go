package stock

import (
	"context"

	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
)

// Coverage is the stock and outstanding claims of one part, globally and,
// when Location is set, at that location.
type Coverage struct {
	PartID         int64  `json:"part_id"`
	Location       string `json:"location,omitempty"`
	TotalStock     int    `json:"total_stock"`
	ReservedAll    int    `json:"reserved_all"`
	Available      int    `json:"available"`
	StockAt        int    `json:"stock_at,omitempty"`
	ReservedAt     int    `json:"reserved_at,omitempty"`
	AvailableAt    int    `json:"available_at,omitempty"`
	LocationScoped bool   `json:"location_scoped"`
}

// Coverage reads the claim sums for part. Call it with the part lock held
// when the result guards a write.
func (s *Service) Coverage(ctx context.Context, partID int64, location string) (Coverage, error) {
	cov := Coverage{PartID: partID, Location: location}
	var err error
	if cov.TotalStock, err = s.repo.TotalStock(ctx, partID); err != nil {
		return cov, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum stock")
	}
	if cov.ReservedAll, err = s.repo.ReservedClaims(ctx, partID); err != nil {
		return cov, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum reservations")
	}
	cov.Available = cov.TotalStock - cov.ReservedAll
	if location == "" {
		return cov, nil
	}
	cov.LocationScoped = true
	if cov.StockAt, err = s.repo.StockAt(ctx, partID, location); err != nil {
		return cov, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum stock at location")
	}
	if cov.ReservedAt, err = s.repo.ReservedClaimsAt(ctx, partID, location); err != nil {
		return cov, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum reservations at location")
	}
	cov.AvailableAt = cov.StockAt - cov.ReservedAt
	return cov, nil
}

// Allows reports whether qty more can be claimed, or removed from stock,
// without leaving existing reservations uncovered.
func (c Coverage) Allows(qty int) bool {
	if qty > c.Available {
		return false
	}
	if c.LocationScoped && qty > c.AvailableAt {
		return false
	}
	return true
}

// Violation builds the OVER_RESERVATION error for a request of qty.
func (c Coverage) Violation(part *models.Part, qty int, action string) error {
	details := map[string]any{
		"mpn":          part.MPN,
		"requested":    qty,
		"total_stock":  c.TotalStock,
		"reserved_all": c.ReservedAll,
		"available":    c.Available,
	}
	if c.LocationScoped {
		details["location"] = c.Location
		details["stock_at"] = c.StockAt
		details["reserved_at"] = c.ReservedAt
		details["available_at"] = c.AvailableAt
		if qty > c.AvailableAt {
			return pkgerrors.Newf(pkgerrors.CodeOverReservation,
				"%s %d of %s at %s exceeds available %d", action, qty, part.MPN, c.Location, c.AvailableAt).
				WithDetails(details)
		}
	}
	return pkgerrors.Newf(pkgerrors.CodeOverReservation,
		"%s %d of %s exceeds available %d", action, qty, part.MPN, c.Available).
		WithDetails(details)
}

// guardDecrement fails when removing qty from location would uncover
// outstanding reservations.
func (s *Service) guardDecrement(ctx context.Context, part *models.Part, location string, qty int) error {
	cov, err := s.Coverage(ctx, part.ID, location)
	if err != nil {
		return err
	}
	if cov.StockAt < qty {
		return pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "insufficient stock at %s: have %d, need %d", location, cov.StockAt, qty).
			WithDetails(map[string]any{"mpn": part.MPN, "location": location, "stock": cov.StockAt, "requested": qty})
	}
	if !cov.Allows(qty) {
		return cov.Violation(part, qty, "removing")
	}
	return nil
}
