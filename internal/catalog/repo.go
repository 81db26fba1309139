package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists parts and locations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPartByMPN(ctx context.Context, mpn string) (*models.Part, error)
	FindPartByID(ctx context.Context, id int64) (*models.Part, error)
	LockPartByMPN(ctx context.Context, mpn string) (*models.Part, error)
	LockPartByID(ctx context.Context, id int64) (*models.Part, error)
	CreatePart(ctx context.Context, part *models.Part) error
	SavePart(ctx context.Context, part *models.Part) error
	ListParts(ctx context.Context, filter PartFilter) ([]models.Part, error)
	FindLocation(ctx context.Context, code string) (*models.Location, error)
	InsertLocationIfAbsent(ctx context.Context, loc *models.Location) (bool, error)
	UpsertLocations(ctx context.Context, locs []models.Location, overwriteNote bool) error
	ListLocations(ctx context.Context, prefix string) ([]models.Location, error)
}

// PartFilter narrows ListParts.
type PartFilter struct {
	Query    string
	Category string
	Limit    int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPartByMPN(ctx context.Context, mpn string) (*models.Part, error) {
	var part models.Part
	if err := r.db.WithContext(ctx).Where("mpn = ?", mpn).First(&part).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

func (r *repository) FindPartByID(ctx context.Context, id int64) (*models.Part, error) {
	var part models.Part
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&part).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

// LockPartByMPN loads the part row with FOR UPDATE. Every writer that checks
// coverage for a part goes through this lock first. SQLite ignores the clause
// and relies on IMMEDIATE transactions instead.
func (r *repository) LockPartByMPN(ctx context.Context, mpn string) (*models.Part, error) {
	var part models.Part
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("mpn = ?", mpn).
		First(&part).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

func (r *repository) LockPartByID(ctx context.Context, id int64) (*models.Part, error) {
	var part models.Part
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&part).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

func (r *repository) CreatePart(ctx context.Context, part *models.Part) error {
	return r.db.WithContext(ctx).Create(part).Error
}

func (r *repository) SavePart(ctx context.Context, part *models.Part) error {
	return r.db.WithContext(ctx).Save(part).Error
}

func (r *repository) ListParts(ctx context.Context, filter PartFilter) ([]models.Part, error) {
	q := r.db.WithContext(ctx).Model(&models.Part{})
	if term := strings.TrimSpace(filter.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(mpn) LIKE ? OR LOWER(name) LIKE ? OR LOWER(params) LIKE ?", like, like, like)
	}
	if cat := strings.TrimSpace(filter.Category); cat != "" {
		q = q.Where("category = ?", cat)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var parts []models.Part
	if err := q.Order("mpn ASC").Find(&parts).Error; err != nil {
		return nil, err
	}
	return parts, nil
}

func (r *repository) FindLocation(ctx context.Context, code string) (*models.Location, error) {
	var loc models.Location
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&loc).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *repository) InsertLocationIfAbsent(ctx context.Context, loc *models.Location) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(loc)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpsertLocations(ctx context.Context, locs []models.Location, overwriteNote bool) error {
	if len(locs) == 0 {
		return nil
	}
	conflict := clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}
	if overwriteNote {
		conflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"note"}),
		}
	}
	return r.db.WithContext(ctx).Clauses(conflict).CreateInBatches(locs, 200).Error
}

func (r *repository) ListLocations(ctx context.Context, prefix string) ([]models.Location, error) {
	q := r.db.WithContext(ctx).Model(&models.Location{})
	if p := strings.TrimSpace(prefix); p != "" {
		q = q.Where("code LIKE ?", p+"%")
	}
	var locs []models.Location
	if err := q.Order("code ASC").Find(&locs).Error; err != nil {
		return nil, err
	}
	return locs, nil
}
