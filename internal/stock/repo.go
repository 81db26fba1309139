package stock

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultCondition = "new"

// Repository owns stock_lines and the claim sums read against them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindLine(ctx context.Context, partID int64, location string) (*models.StockLine, error)
	ListLines(ctx context.Context, partID int64) ([]models.StockLine, error)
	ApplyDelta(ctx context.Context, partID int64, location string, delta int, condition, note string) (*models.StockLine, error)
	TotalStock(ctx context.Context, partID int64) (int, error)
	StockAt(ctx context.Context, partID int64, location string) (int, error)
	ReservedClaims(ctx context.Context, partID int64) (int, error)
	ReservedClaimsAt(ctx context.Context, partID int64, location string) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindLine(ctx context.Context, partID int64, location string) (*models.StockLine, error) {
	var line models.StockLine
	if err := r.db.WithContext(ctx).
		Where("part_id = ? AND location = ?", partID, location).
		First(&line).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) ListLines(ctx context.Context, partID int64) ([]models.StockLine, error) {
	var lines []models.StockLine
	if err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Order("location ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// ApplyDelta is the only write path for stock_lines. It refuses to take a
// line below zero and creates the line on the first positive delta. Callers
// hold the part lock, so the read-modify-write below cannot interleave.
func (r *repository) ApplyDelta(ctx context.Context, partID int64, location string, delta int, condition, note string) (*models.StockLine, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock delta must be non-zero")
	}
	condition = strings.TrimSpace(condition)
	note = strings.TrimSpace(note)

	var line models.StockLine
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("part_id = ? AND location = ?", partID, location).
		First(&line).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if delta < 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "insufficient stock at %s: have 0, need %d", location, -delta).
				WithDetails(map[string]any{"part_id": partID, "location": location, "stock": 0, "delta": delta})
		}
		if condition == "" {
			condition = defaultCondition
		}
		line = models.StockLine{PartID: partID, Location: location, Qty: delta, Condition: condition, Note: note}
		if err := r.db.WithContext(ctx).Create(&line).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock line")
		}
		return &line, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock line")
	}

	next := line.Qty + delta
	if next < 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "insufficient stock at %s: have %d, need %d", location, line.Qty, -delta).
			WithDetails(map[string]any{"part_id": partID, "location": location, "stock": line.Qty, "delta": delta})
	}
	updates := map[string]any{"qty": gorm.Expr("qty + ?", delta)}
	if condition != "" {
		updates["condition"] = condition
		line.Condition = condition
	}
	if note != "" {
		updates["note"] = note
		line.Note = note
	}
	if err := r.db.WithContext(ctx).Model(&models.StockLine{}).Where("id = ?", line.ID).Updates(updates).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock line")
	}
	line.Qty = next
	return &line, nil
}

func (r *repository) TotalStock(ctx context.Context, partID int64) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&models.StockLine{}).
		Select("COALESCE(SUM(qty), 0)").
		Where("part_id = ?", partID).
		Scan(&total).Error
	return total, err
}

func (r *repository) StockAt(ctx context.Context, partID int64, location string) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&models.StockLine{}).
		Select("COALESCE(SUM(qty), 0)").
		Where("part_id = ? AND location = ?", partID, location).
		Scan(&total).Error
	return total, err
}

// ReservedClaims sums every outstanding reservation of the part, located or not.
func (r *repository) ReservedClaims(ctx context.Context, partID int64) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&models.Allocation{}).
		Select("COALESCE(SUM(qty), 0)").
		Where("part_id = ? AND status = ?", partID, enums.AllocationReserved).
		Scan(&total).Error
	return total, err
}

func (r *repository) ReservedClaimsAt(ctx context.Context, partID int64, location string) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&models.Allocation{}).
		Select("COALESCE(SUM(qty), 0)").
		Where("part_id = ? AND location = ? AND status = ?", partID, location, enums.AllocationReserved).
		Scan(&total).Error
	return total, err
}
