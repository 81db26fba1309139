package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/labstock-backend/api/responses"
	"github.com/angelmondragon/labstock-backend/api/validators"
	"github.com/angelmondragon/labstock-backend/internal/ledger"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
	"github.com/angelmondragon/labstock-backend/pkg/pagination"
)

type ledgerReader interface {
	List(ctx context.Context, filter ledger.Filter) ([]ledger.Entry, string, error)
	ListTxns(ctx context.Context, filter ledger.TxnFilter) ([]ledger.TxnEntry, string, error)
}

// LedgerList returns ledger lines newest first.
func LedgerList(svc ledgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := ledger.Filter{
			ProjectCode: queryValue(r, "project"),
			MPN:         queryValue(r, "mpn"),
			Limit:       limit,
			Cursor:      queryValue(r, "cursor"),
		}
		if raw := queryValue(r, "doc_type"); raw != "" {
			docType, err := enums.ParseLedgerDocType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid doc_type"))
				return
			}
			filter.DocType = docType
		}
		if filter.Since, err = validators.ParseQueryTime(r, "since"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Until, err = validators.ParseQueryTime(r, "until"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, next, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Page[ledger.Entry]{Items: entries, NextCursor: next})
	}
}

// LedgerTxns returns inventory txn lines newest first.
func LedgerTxns(svc ledgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := ledger.TxnFilter{
			ProjectCode: queryValue(r, "project"),
			MPN:         queryValue(r, "mpn"),
			Location:    queryValue(r, "location"),
			Limit:       limit,
			Cursor:      queryValue(r, "cursor"),
		}
		if raw := queryValue(r, "txn_type"); raw != "" {
			txnType, err := enums.ParseTxnType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid txn_type"))
				return
			}
			filter.TxnType = txnType
		}
		if filter.Since, err = validators.ParseQueryTime(r, "since"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Until, err = validators.ParseQueryTime(r, "until"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, next, err := svc.ListTxns(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Page[ledger.TxnEntry]{Items: entries, NextCursor: next})
	}
}
