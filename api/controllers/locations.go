package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/labstock-backend/api/responses"
	"github.com/angelmondragon/labstock-backend/api/validators"
	"github.com/angelmondragon/labstock-backend/internal/catalog"
	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
)

type locationService interface {
	CreateLocation(ctx context.Context, code, note string) (bool, error)
	ListLocations(ctx context.Context, prefix string) ([]models.Location, error)
	ProvisionLocations(ctx context.Context, input catalog.ProvisionInput) (int, error)
}

type locationCreateRequest struct {
	Code string `json:"code" validate:"required,max=64"`
	Note string `json:"note"`
}

type cabinetRequest struct {
	Code    string `json:"code" validate:"required"`
	Shelves int    `json:"shelves" validate:"gt=0,max=99"`
	Note    string `json:"note"`
}

type provisionRequest struct {
	Room              string           `json:"room" validate:"required"`
	Cabinets          []cabinetRequest `json:"cabinets" validate:"required,min=1,dive"`
	PositionsPerShelf int              `json:"positions_per_shelf" validate:"gt=0,max=99"`
	OverwriteNote     bool             `json:"overwrite_note"`
}

func (p provisionRequest) toInput() catalog.ProvisionInput {
	input := catalog.ProvisionInput{
		Room:              strings.TrimSpace(p.Room),
		PositionsPerShelf: p.PositionsPerShelf,
		OverwriteNote:     p.OverwriteNote,
	}
	for _, c := range p.Cabinets {
		input.Cabinets = append(input.Cabinets, catalog.CabinetSpec{
			Code:    strings.TrimSpace(c.Code),
			Shelves: c.Shelves,
			Note:    note(c.Note),
		})
	}
	return input
}

func LocationCreate(svc locationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload locationCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code := strings.TrimSpace(payload.Code)
		created, err := svc.CreateLocation(r.Context(), code, note(payload.Note))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, createdStatus(created), map[string]any{"code": code, "created": created})
	}
}

// LocationProvision generates the shelf/position code space of a room.
func LocationProvision(svc locationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload provisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		n, err := svc.ProvisionLocations(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"processed": n})
	}
}

func LocationList(svc locationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locations, err := svc.ListLocations(r.Context(), queryValue(r, "prefix"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]catalog.LocationDTO, 0, len(locations))
		for _, l := range locations {
			out = append(out, catalog.NewLocationDTO(l))
		}
		responses.WriteSuccess(w, out)
	}
}
