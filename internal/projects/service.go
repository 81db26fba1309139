package projects

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/labstock-backend/internal/catalog"
	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
	"github.com/angelmondragon/labstock-backend/pkg/pagination"
	"gorm.io/gorm"
)

const (
	defaultStatus   = "active"
	defaultPriority = 2
)

type allocationLister interface {
	ListByProject(ctx context.Context, code string) ([]models.AllocationDetail, error)
}

// ServiceParams groups dependencies for the project service.
type ServiceParams struct {
	Runner      *db.Runner
	Repo        Repository
	Catalog     *catalog.Service
	Allocations allocationLister
	Logger      *logger.Logger
}

// Service manages projects, their BOMs and linked resources.
type Service struct {
	runner      *db.Runner
	repo        Repository
	catalog     *catalog.Service
	allocations allocationLister
	logg        *logger.Logger
}

// NewService builds a project service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Runner == nil {
		return nil, errors.New("runner is required")
	}
	if params.Catalog == nil {
		return nil, errors.New("catalog service is required")
	}
	repo := params.Repo
	if repo == nil {
		repo = NewRepository(params.Runner.DB())
	}
	return &Service{
		runner:      params.Runner,
		repo:        repo,
		catalog:     params.Catalog,
		allocations: params.Allocations,
		logg:        params.Logger,
	}, nil
}

// SetAllocationLister wires the allocation engine after construction, since
// the engine itself depends on this service.
func (s *Service) SetAllocationLister(l allocationLister) {
	s.allocations = l
}

// WithTx binds the service to an enclosing transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{
		runner:      s.runner.WithTx(tx),
		repo:        s.repo.WithTx(tx),
		catalog:     s.catalog.WithTx(tx),
		allocations: s.allocations,
		logg:        s.logg,
	}
}

// UpsertProject creates the project when the code is unseen, otherwise
// merges the non-blank fields over the stored row.
func (s *Service) UpsertProject(ctx context.Context, code string, fields ProjectFields) (ProjectResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return ProjectResult{}, pkgerrors.New(pkgerrors.CodeValidation, "project code is required")
	}

	var result ProjectResult
	err := s.runner.Run(ctx, "upsert_project", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		project, err := repo.FindByCode(ctx, code)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			project = &models.Project{Code: code, Status: defaultStatus}
			if _, err := mergeProjectFields(project, fields); err != nil {
				return err
			}
			if project.Name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "project name is required")
			}
			if err := repo.Create(ctx, project); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "project created concurrently")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create project")
			}
			result = ProjectResult{ID: project.ID, Created: true}
			return nil
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
		}

		changed, err := mergeProjectFields(project, fields)
		if err != nil {
			return err
		}
		if changed {
			if err := repo.Save(ctx, project); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update project")
			}
		}
		result = ProjectResult{ID: project.ID}
		return nil
	})
	if err != nil {
		return ProjectResult{}, err
	}
	return result, nil
}

// mergeProjectFields applies every non-nil field. A blank value clears owner
// or note; name and status cannot be blank.
func mergeProjectFields(project *models.Project, fields ProjectFields) (bool, error) {
	changed := false
	set := func(dst *string, src *string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if v == *dst {
			return
		}
		*dst = v
		changed = true
	}
	for name, src := range map[string]*string{"name": fields.Name, "status": fields.Status} {
		if src != nil && strings.TrimSpace(*src) == "" {
			return false, pkgerrors.Newf(pkgerrors.CodeValidation, "project %s cannot be blank", name)
		}
	}
	set(&project.Name, fields.Name)
	set(&project.Owner, fields.Owner)
	set(&project.Status, fields.Status)
	set(&project.Note, fields.Note)
	return changed, nil
}

// GetProject loads a project by code.
func (s *Service) GetProject(ctx context.Context, code string) (*models.Project, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project code is required")
	}
	project, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "project %s not found", code)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	return project, nil
}

// GetProjectByID loads a project by id.
func (s *Service) GetProjectByID(ctx context.Context, id int64) (*models.Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "project #%d not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	return project, nil
}

// ListProjects returns a page of projects ordered by code. query matches
// code, name or owner as a substring.
func (s *Service) ListProjects(ctx context.Context, query string, params pagination.Params) (pagination.Page[models.Project], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Project]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	q := ListQuery{Search: query, Limit: pagination.LimitWithBuffer(params.Limit)}
	if cursor != nil {
		q.AfterCode = cursor.Key
	}
	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return pagination.Page[models.Project]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list projects")
	}
	items, next := pagination.Trim(rows, params.Limit, func(p models.Project) pagination.Cursor {
		return pagination.Cursor{Key: p.Code, ID: p.ID}
	})
	return pagination.Page[models.Project]{Items: items, NextCursor: next}, nil
}

// SetBomLine upserts the required quantity of a part for a project.
func (s *Service) SetBomLine(ctx context.Context, input BomLineInput) error {
	return s.SetBomLines(ctx, []BomLineInput{input})
}

// SetBomLines upserts several BOM lines in one atomic scope. Any invalid line
// rejects the whole batch.
func (s *Service) SetBomLines(ctx context.Context, inputs []BomLineInput) error {
	if len(inputs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one bom line is required")
	}
	for i := range inputs {
		if err := validateBomLine(&inputs[i]); err != nil {
			return err
		}
	}

	return s.runner.Run(ctx, "set_bom", func(tx *gorm.DB) error {
		bound := s.WithTx(tx)
		for _, in := range inputs {
			project, err := bound.GetProject(ctx, in.ProjectCode)
			if err != nil {
				return err
			}
			part, err := bound.catalog.GetPart(ctx, in.MPN)
			if err != nil {
				return err
			}
			priority := defaultPriority
			if in.Priority != nil {
				priority = *in.Priority
			}
			line := &models.BomLine{
				ProjectID: project.ID,
				PartID:    part.ID,
				ReqQty:    in.ReqQty,
				Priority:  priority,
				Note:      in.Note,
			}
			if err := bound.repo.UpsertBomLine(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert bom line")
			}
		}
		return nil
	})
}

func validateBomLine(in *BomLineInput) error {
	in.ProjectCode = strings.TrimSpace(in.ProjectCode)
	in.MPN = strings.TrimSpace(in.MPN)
	in.Note = strings.TrimSpace(in.Note)
	if in.ProjectCode == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "project code is required")
	}
	if in.MPN == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "mpn is required")
	}
	if in.ReqQty <= 0 {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "req_qty for %s must be positive", in.MPN)
	}
	if in.Priority != nil && *in.Priority < 0 {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "priority for %s must not be negative", in.MPN)
	}
	return nil
}

// ListBom returns a project's BOM ordered by priority, then mpn.
func (s *Service) ListBom(ctx context.Context, code string) ([]BomLineRow, error) {
	project, err := s.GetProject(ctx, code)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListBom(ctx, project.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bom")
	}
	return rows, nil
}

// MaterialStatus reports coverage for every BOM line of the project.
// reserved_all_projects and available_stock count reserved allocations
// only; consumed quantities are already gone from total_stock.
func (s *Service) MaterialStatus(ctx context.Context, code string) ([]models.MaterialStatus, error) {
	project, err := s.GetProject(ctx, code)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.MaterialStatus(ctx, project.Code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material status")
	}
	return rows, nil
}

// AllocationDetail lists the project's allocations, newest first.
func (s *Service) AllocationDetail(ctx context.Context, code string) ([]models.AllocationDetail, error) {
	if s.allocations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "allocation lister not configured")
	}
	project, err := s.GetProject(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.allocations.ListByProject(ctx, project.Code)
}

// Overview summarises every project matching query.
func (s *Service) Overview(ctx context.Context, query string) ([]models.ProjectOverview, error) {
	rows, err := s.repo.Overview(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project overview")
	}
	return rows, nil
}
