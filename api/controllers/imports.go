package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/labstock-backend/api/responses"
	"github.com/angelmondragon/labstock-backend/api/validators"
	"github.com/angelmondragon/labstock-backend/internal/imports"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
)

type importService interface {
	Import(ctx context.Context, rows []imports.Row, mode enums.ImportMode) (*imports.Report, error)
}

type importRequest struct {
	Mode string        `json:"mode"`
	Rows []imports.Row `json:"rows" validate:"required,min=1"`
}

// ImportBatch applies a batch of parsed stock rows. A strict batch that
// failed and a lenient batch with failed rows both return the report next
// to the error.
func ImportBatch(svc importService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload importRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mode, err := enums.ParseImportMode(payload.Mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "mode must be strict or lenient"))
			return
		}

		operator := operatorFor(r, "")
		for i := range payload.Rows {
			if payload.Rows[i].Operator == "" {
				payload.Rows[i].Operator = operator
			}
		}

		report, err := svc.Import(r.Context(), payload.Rows, mode)
		switch {
		case err != nil && report != nil:
			responses.WritePartial(r.Context(), logg, w, report, err)
		case err != nil:
			responses.WriteError(r.Context(), logg, w, err)
		default:
			responses.WriteSuccessStatus(w, http.StatusCreated, report)
		}
	}
}
