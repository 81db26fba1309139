package projects

import (
	"context"
	"strings"

	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists projects, BOM lines and project resources.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Project, error)
	FindByID(ctx context.Context, id int64) (*models.Project, error)
	Create(ctx context.Context, project *models.Project) error
	Save(ctx context.Context, project *models.Project) error
	List(ctx context.Context, query ListQuery) ([]models.Project, error)
	UpsertBomLine(ctx context.Context, line *models.BomLine) error
	ListBom(ctx context.Context, projectID int64) ([]BomLineRow, error)
	MaterialStatus(ctx context.Context, code string) ([]models.MaterialStatus, error)
	Overview(ctx context.Context, query string) ([]models.ProjectOverview, error)
	UpsertResource(ctx context.Context, res *models.ProjectResource) error
	FindResource(ctx context.Context, projectID int64, resourceType, uri string) (*models.ProjectResource, error)
	ListResources(ctx context.Context, projectID int64, resourceType string) ([]models.ProjectResource, error)
	DeleteResource(ctx context.Context, id int64) (int64, error)
}

// ListQuery configures project list queries.
type ListQuery struct {
	Search    string
	AfterCode string
	Limit     int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a project repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *repository) Save(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Project, error) {
	q := r.db.WithContext(ctx).Model(&models.Project{})
	if term := strings.TrimSpace(query.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ? OR LOWER(owner) LIKE ?", like, like, like)
	}
	if query.AfterCode != "" {
		q = q.Where("code > ?", query.AfterCode)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	var projects []models.Project
	if err := q.Order("code ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *repository) UpsertBomLine(ctx context.Context, line *models.BomLine) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "part_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"req_qty", "priority", "note", "updated_at"}),
		}).
		Create(line).Error
}

func (r *repository) ListBom(ctx context.Context, projectID int64) ([]BomLineRow, error) {
	var rows []BomLineRow
	err := r.db.WithContext(ctx).
		Table("project_bom_lines AS b").
		Select("b.id, b.part_id, p.mpn, p.name AS part_name, b.req_qty, b.priority, b.note, b.updated_at").
		Joins("JOIN parts AS p ON p.id = b.part_id").
		Where("b.project_id = ?", projectID).
		Order("b.priority ASC").
		Order("p.mpn ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MaterialStatus(ctx context.Context, code string) ([]models.MaterialStatus, error) {
	var rows []models.MaterialStatus
	if err := r.db.WithContext(ctx).
		Where("project_code = ?", code).
		Order("priority ASC").
		Order("mpn ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Overview(ctx context.Context, query string) ([]models.ProjectOverview, error) {
	q := r.db.WithContext(ctx).Model(&models.ProjectOverview{})
	if term := strings.TrimSpace(query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ? OR LOWER(owner) LIKE ?", like, like, like)
	}
	var rows []models.ProjectOverview
	if err := q.Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpsertResource(ctx context.Context, res *models.ProjectResource) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "resource_type"}, {Name: "uri"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "is_dir", "tags", "note", "updated_at"}),
		}).
		Create(res).Error
}

func (r *repository) FindResource(ctx context.Context, projectID int64, resourceType, uri string) (*models.ProjectResource, error) {
	var res models.ProjectResource
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND resource_type = ? AND uri = ?", projectID, resourceType, uri).
		First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repository) ListResources(ctx context.Context, projectID int64, resourceType string) ([]models.ProjectResource, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if resourceType != "" {
		q = q.Where("resource_type = ?", resourceType)
	}
	var rows []models.ProjectResource
	if err := q.Order("resource_type ASC").Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DeleteResource(ctx context.Context, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ProjectResource{})
	return res.RowsAffected, res.Error
}
