package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/labstock-backend/api/responses"
	"github.com/angelmondragon/labstock-backend/api/validators"
	"github.com/angelmondragon/labstock-backend/internal/allocations"
	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
)

type allocationService interface {
	Reserve(ctx context.Context, input allocations.ReserveInput) (*models.Allocation, error)
	Release(ctx context.Context, id int64, note, operator string) (*models.Allocation, error)
	Consume(ctx context.Context, id int64, note, operator string) (*models.Allocation, error)
	Get(ctx context.Context, id int64) (*models.Allocation, error)
}

type reserveRequest struct {
	ProjectCode string `json:"project_code" validate:"required"`
	MPN         string `json:"mpn" validate:"required"`
	Location    string `json:"location"`
	Qty         int    `json:"qty" validate:"gt=0"`
	Note        string `json:"note"`
	Operator    string `json:"operator"`
}

type transitionRequest struct {
	Note     string `json:"note"`
	Operator string `json:"operator"`
}

type allocationResponse struct {
	ID        int64                  `json:"id"`
	ProjectID int64                  `json:"project_id"`
	PartID    int64                  `json:"part_id"`
	Location  *string                `json:"location"`
	Qty       int                    `json:"qty"`
	Status    enums.AllocationStatus `json:"status"`
	Note      string                 `json:"note,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func allocationResponseFromModel(m *models.Allocation) allocationResponse {
	return allocationResponse{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		PartID:    m.PartID,
		Location:  m.Location,
		Qty:       m.Qty,
		Status:    m.Status,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// AllocationReserve claims stock for a project, optionally at one location.
func AllocationReserve(svc allocationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload reserveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		alloc, err := svc.Reserve(r.Context(), allocations.ReserveInput{
			ProjectCode: strings.TrimSpace(payload.ProjectCode),
			MPN:         strings.TrimSpace(payload.MPN),
			Location:    strings.TrimSpace(payload.Location),
			Qty:         payload.Qty,
			Note:        note(payload.Note),
			Operator:    operatorFor(r, payload.Operator),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, allocationResponseFromModel(alloc))
	}
}

func AllocationRelease(svc allocationService, logg *logger.Logger) http.HandlerFunc {
	return allocationTransition(logg, svc.Release)
}

func AllocationConsume(svc allocationService, logg *logger.Logger) http.HandlerFunc {
	return allocationTransition(logg, svc.Consume)
}

func allocationTransition(logg *logger.Logger, apply func(context.Context, int64, string, string) (*models.Allocation, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transitionRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		alloc, err := apply(r.Context(), id, note(payload.Note), operatorFor(r, payload.Operator))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocationResponseFromModel(alloc))
	}
}

func AllocationGet(svc allocationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		alloc, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocationResponseFromModel(alloc))
	}
}
