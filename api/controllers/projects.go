package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/labstock-backend/api/responses"
	"github.com/angelmondragon/labstock-backend/api/validators"
	"github.com/angelmondragon/labstock-backend/internal/projects"
	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
	"github.com/angelmondragon/labstock-backend/pkg/pagination"
)

type projectService interface {
	UpsertProject(ctx context.Context, code string, fields projects.ProjectFields) (projects.ProjectResult, error)
	GetProject(ctx context.Context, code string) (*models.Project, error)
	ListProjects(ctx context.Context, query string, params pagination.Params) (pagination.Page[models.Project], error)
	Overview(ctx context.Context, query string) ([]models.ProjectOverview, error)
}

type bomService interface {
	SetBomLines(ctx context.Context, inputs []projects.BomLineInput) error
	ListBom(ctx context.Context, code string) ([]projects.BomLineRow, error)
	MaterialStatus(ctx context.Context, code string) ([]models.MaterialStatus, error)
	AllocationDetail(ctx context.Context, code string) ([]models.AllocationDetail, error)
}

type bomLineRequest struct {
	MPN      string `json:"mpn" validate:"required"`
	ReqQty   int    `json:"req_qty" validate:"gt=0"`
	Priority *int   `json:"priority" validate:"omitempty,gte=0"`
	Note     string `json:"note"`
}

type bomSetRequest struct {
	Lines []bomLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func ProjectUpsert(svc projectService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := validators.PathString(r, "code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var fields projects.ProjectFields
		if err := validators.DecodeJSONBody(r, &fields); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.UpsertProject(r.Context(), code, fields)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, createdStatus(result.Created), result)
	}
}

func ProjectGet(svc projectService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := validators.PathString(r, "code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		project, err := svc.GetProject(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projects.NewProjectDTO(*project))
	}
}

// ProjectList pages through projects ordered by code.
func ProjectList(svc projectService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListProjects(r.Context(), queryValue(r, "q"), pagination.Params{
			Limit:  limit,
			Cursor: queryValue(r, "cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := pagination.Page[projects.ProjectDTO]{
			Items:      make([]projects.ProjectDTO, 0, len(page.Items)),
			NextCursor: page.NextCursor,
		}
		for _, p := range page.Items {
			out.Items = append(out.Items, projects.NewProjectDTO(p))
		}
		responses.WriteSuccess(w, out)
	}
}

func ProjectOverview(svc projectService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.Overview(r.Context(), queryValue(r, "q"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// BomSet upserts every line of the request in one atomic batch and returns
// the resulting BOM.
func BomSet(svc bomService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := validators.PathString(r, "code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload bomSetRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inputs := make([]projects.BomLineInput, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			inputs = append(inputs, projects.BomLineInput{
				ProjectCode: code,
				MPN:         strings.TrimSpace(line.MPN),
				ReqQty:      line.ReqQty,
				Priority:    line.Priority,
				Note:        note(line.Note),
			})
		}
		if err := svc.SetBomLines(r.Context(), inputs); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListBom(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func BomList(svc bomService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := validators.PathString(r, "code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListBom(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// MaterialStatus reports per-BOM-line coverage and shortage.
func MaterialStatus(svc bomService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := validators.PathString(r, "code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.MaterialStatus(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func ProjectAllocations(svc bomService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := validators.PathString(r, "code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.AllocationDetail(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
