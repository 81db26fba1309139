package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/labstock-backend/pkg/logger"
)

type contextKey string

const (
	ctxOperator contextKey = "operator"

	operatorHeader    = "X-Operator"
	maxOperatorLength = 64
)

// OperatorFromContext returns the operator name attached by Operator.
func OperatorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOperator).(string); ok {
		return v
	}
	return ""
}

// WithOperator injects the operator name into the context.
func WithOperator(ctx context.Context, operator string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxOperator, operator)
}

// Operator reads the optional X-Operator header so ledger rows can be
// attributed without a body field.
func Operator(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operator := strings.TrimSpace(r.Header.Get(operatorHeader))
			if operator == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(operator) > maxOperatorLength {
				operator = operator[:maxOperatorLength]
			}
			ctx := WithOperator(r.Context(), operator)
			if logg != nil {
				ctx = logg.WithOperator(ctx, operator)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
