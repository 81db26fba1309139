package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/labstock-backend/api/responses"
	"github.com/angelmondragon/labstock-backend/api/validators"
	"github.com/angelmondragon/labstock-backend/internal/stock"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
)

type stockService interface {
	In(ctx context.Context, input stock.InInput) (*stock.MovementResult, error)
	Out(ctx context.Context, input stock.OutInput) (*stock.MovementResult, error)
	Move(ctx context.Context, input stock.MoveInput) (*stock.MovementResult, error)
	Adjust(ctx context.Context, input stock.AdjustInput) (*stock.MovementResult, error)
}

type stockInRequest struct {
	MPN         string `json:"mpn" validate:"required"`
	Location    string `json:"location" validate:"required"`
	Qty         int    `json:"qty" validate:"gt=0"`
	Condition   string `json:"condition"`
	ProjectCode string `json:"project_code"`
	Ref         string `json:"ref"`
	Operator    string `json:"operator"`
	Note        string `json:"note"`
	UnitCost    string `json:"unit_cost"`
}

func (p stockInRequest) toInput(r *http.Request) (stock.InInput, error) {
	input := stock.InInput{
		MPN:         strings.TrimSpace(p.MPN),
		Location:    strings.TrimSpace(p.Location),
		Qty:         p.Qty,
		Condition:   strings.TrimSpace(p.Condition),
		ProjectCode: strings.TrimSpace(p.ProjectCode),
		Ref:         strings.TrimSpace(p.Ref),
		Operator:    operatorFor(r, p.Operator),
		Note:        note(p.Note),
	}
	if raw := strings.TrimSpace(p.UnitCost); raw != "" {
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return stock.InInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unit_cost must be a decimal number")
		}
		if cost.IsNegative() {
			return stock.InInput{}, pkgerrors.New(pkgerrors.CodeValidation, "unit_cost must not be negative")
		}
		input.UnitCost = decimal.NewNullDecimal(cost)
	}
	return input, nil
}

type stockOutRequest struct {
	MPN         string `json:"mpn" validate:"required"`
	Location    string `json:"location" validate:"required"`
	Qty         int    `json:"qty" validate:"gt=0"`
	ProjectCode string `json:"project_code"`
	Ref         string `json:"ref"`
	Operator    string `json:"operator"`
	Note        string `json:"note"`
}

type stockMoveRequest struct {
	MPN          string `json:"mpn" validate:"required"`
	FromLocation string `json:"from_location" validate:"required"`
	ToLocation   string `json:"to_location" validate:"required,nefield=FromLocation"`
	Qty          int    `json:"qty" validate:"gt=0"`
	Ref          string `json:"ref"`
	Operator     string `json:"operator"`
	Note         string `json:"note"`
}

type stockAdjustRequest struct {
	MPN      string `json:"mpn" validate:"required"`
	Location string `json:"location" validate:"required"`
	Add      int    `json:"add" validate:"gte=0"`
	Sub      int    `json:"sub" validate:"gte=0"`
	Ref      string `json:"ref"`
	Operator string `json:"operator"`
	Note     string `json:"note" validate:"required"`
}

// StockIn receives stock into a location.
func StockIn(svc stockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload stockInRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeMovement(w, r, logg)(svc.In(r.Context(), input))
	}
}

func StockOut(svc stockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload stockOutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeMovement(w, r, logg)(svc.Out(r.Context(), stock.OutInput{
			MPN:         strings.TrimSpace(payload.MPN),
			Location:    strings.TrimSpace(payload.Location),
			Qty:         payload.Qty,
			ProjectCode: strings.TrimSpace(payload.ProjectCode),
			Ref:         strings.TrimSpace(payload.Ref),
			Operator:    operatorFor(r, payload.Operator),
			Note:        note(payload.Note),
		}))
	}
}

func StockMove(svc stockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload stockMoveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeMovement(w, r, logg)(svc.Move(r.Context(), stock.MoveInput{
			MPN:          strings.TrimSpace(payload.MPN),
			FromLocation: strings.TrimSpace(payload.FromLocation),
			ToLocation:   strings.TrimSpace(payload.ToLocation),
			Qty:          payload.Qty,
			Ref:          strings.TrimSpace(payload.Ref),
			Operator:     operatorFor(r, payload.Operator),
			Note:         note(payload.Note),
		}))
	}
}

// StockAdjust applies a counted correction. Exactly one of add or sub
// must be positive; the service enforces that.
func StockAdjust(svc stockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload stockAdjustRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeMovement(w, r, logg)(svc.Adjust(r.Context(), stock.AdjustInput{
			MPN:      strings.TrimSpace(payload.MPN),
			Location: strings.TrimSpace(payload.Location),
			Add:      payload.Add,
			Sub:      payload.Sub,
			Ref:      strings.TrimSpace(payload.Ref),
			Operator: operatorFor(r, payload.Operator),
			Note:     note(payload.Note),
		}))
	}
}

func writeMovement(w http.ResponseWriter, r *http.Request, logg *logger.Logger) func(*stock.MovementResult, error) {
	return func(result *stock.MovementResult, err error) {
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
