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
)

type resourceService interface {
	UpsertResource(ctx context.Context, input projects.ResourceInput) (*models.ProjectResource, error)
	ListResources(ctx context.Context, code, resourceType string) ([]models.ProjectResource, error)
	RemoveResource(ctx context.Context, id int64) error
	CheckResources(ctx context.Context, code string) ([]projects.ResourceCheck, error)
}

type resourceRequest struct {
	Type    string `json:"type" validate:"required,max=32"`
	Name    string `json:"name" validate:"required,max=200"`
	URI     string `json:"uri" validate:"required"`
	IsDir   bool   `json:"is_dir"`
	Tags    string `json:"tags"`
	Note    string `json:"note"`
	NoCheck bool   `json:"no_check"`
}

func ResourceList(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := validators.PathString(r, "code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListResources(r.Context(), code, queryValue(r, "type"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]projects.ResourceDTO, 0, len(rows))
		for _, row := range rows {
			out = append(out, projects.NewResourceDTO(row))
		}
		responses.WriteSuccess(w, out)
	}
}

// ResourceUpsert links a resource to a project, keyed by type and uri.
func ResourceUpsert(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := validators.PathString(r, "code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload resourceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.UpsertResource(r.Context(), projects.ResourceInput{
			ProjectCode:  code,
			ResourceType: strings.TrimSpace(payload.Type),
			Name:         strings.TrimSpace(payload.Name),
			URI:          strings.TrimSpace(payload.URI),
			IsDir:        payload.IsDir,
			Tags:         strings.TrimSpace(payload.Tags),
			Note:         note(payload.Note),
			NoCheck:      payload.NoCheck,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projects.NewResourceDTO(*row))
	}
}

func ResourceCheck(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := validators.PathString(r, "code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		checks, err := svc.CheckResources(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checks)
	}
}

func ResourceDelete(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.RemoveResource(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "removed": true})
	}
}
