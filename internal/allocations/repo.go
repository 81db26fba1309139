package allocations

import (
	"context"

	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists allocations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, alloc *models.Allocation) error
	FindByID(ctx context.Context, id int64) (*models.Allocation, error)
	LockByID(ctx context.Context, id int64) (*models.Allocation, error)
	UpdateStatus(ctx context.Context, id int64, status enums.AllocationStatus, note string) error
	ListDetailByProject(ctx context.Context, code string) ([]models.AllocationDetail, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an allocation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, alloc *models.Allocation) error {
	return r.db.WithContext(ctx).Create(alloc).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Allocation, error) {
	var alloc models.Allocation
	if err := r.db.WithContext(ctx).First(&alloc, id).Error; err != nil {
		return nil, err
	}
	return &alloc, nil
}

func (r *repository) LockByID(ctx context.Context, id int64) (*models.Allocation, error) {
	var alloc models.Allocation
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&alloc, id).Error; err != nil {
		return nil, err
	}
	return &alloc, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status enums.AllocationStatus, note string) error {
	return r.db.WithContext(ctx).Model(&models.Allocation{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "note": note}).Error
}

func (r *repository) ListDetailByProject(ctx context.Context, code string) ([]models.AllocationDetail, error) {
	var rows []models.AllocationDetail
	if err := r.db.WithContext(ctx).
		Where("project_code = ?", code).
		Order("created_at DESC").
		Order("allocation_id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
