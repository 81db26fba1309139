package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/labstock-backend/api/middleware"
	"github.com/angelmondragon/labstock-backend/api/validators"
)

const (
	maxNoteLength     = 500
	maxOperatorLength = 64
)

// operatorFor prefers the operator named in the body and falls back to the
// X-Operator header.
func operatorFor(r *http.Request, fromBody string) string {
	if op := validators.SanitizeString(fromBody, maxOperatorLength); op != "" {
		return op
	}
	return middleware.OperatorFromContext(r.Context())
}

func note(value string) string {
	return validators.SanitizeString(value, maxNoteLength)
}

func createdStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
