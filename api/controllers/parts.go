package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/labstock-backend/api/responses"
	"github.com/angelmondragon/labstock-backend/api/validators"
	"github.com/angelmondragon/labstock-backend/internal/allocations"
	"github.com/angelmondragon/labstock-backend/internal/catalog"
	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
	"github.com/angelmondragon/labstock-backend/pkg/pagination"
)

type partService interface {
	UpsertPart(ctx context.Context, mpn string, fields catalog.PartFields) (catalog.PartResult, error)
	GetPart(ctx context.Context, mpn string) (*models.Part, error)
	ListParts(ctx context.Context, filter catalog.PartFilter) ([]models.Part, error)
}

type availabilityService interface {
	Availability(ctx context.Context, mpn, location string) (*allocations.Availability, error)
}

// PartUpsert creates a part or merges the supplied fields into it.
func PartUpsert(svc partService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		mpn, err := validators.PathString(r, "mpn")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var fields catalog.PartFields
		if err := validators.DecodeJSONBody(r, &fields); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UpsertPart(r.Context(), mpn, fields)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, createdStatus(result.Created), result)
	}
}

func PartGet(svc partService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mpn, err := validators.PathString(r, "mpn")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		part, err := svc.GetPart(r.Context(), mpn)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, catalog.NewPartDTO(*part))
	}
}

// PartList searches parts by mpn, name or params.
func PartList(svc partService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		parts, err := svc.ListParts(r.Context(), catalog.PartFilter{
			Query:    queryValue(r, "q"),
			Category: queryValue(r, "category"),
			Limit:    limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]catalog.PartDTO, 0, len(parts))
		for _, p := range parts {
			out = append(out, catalog.NewPartDTO(p))
		}
		responses.WriteSuccess(w, out)
	}
}

// PartAvailability reports stock, outstanding claims and per-location levels.
func PartAvailability(svc availabilityService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mpn, err := validators.PathString(r, "mpn")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		availability, err := svc.Availability(r.Context(), mpn, queryValue(r, "location"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}
