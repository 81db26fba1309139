package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/labstock-backend/internal/app"
	"github.com/angelmondragon/labstock-backend/pkg/config"
	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/angelmondragon/labstock-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
	"github.com/angelmondragon/labstock-backend/pkg/metrics"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type harness struct {
	t       *testing.T
	handler http.Handler
}

func newHarness(t *testing.T) harness {
	t.Helper()
	client := dbtest.Open(t)
	cfg := &config.Config{App: config.AppConfig{Env: "test"}, Import: config.ImportConfig{MaxRows: 100}}
	reg := prometheus.NewRegistry()

	svcs, err := app.NewServices(app.Params{
		DB:       client.DB(),
		Retrier:  db.NoRetry(),
		Observer: metrics.NewOperationMetrics(reg),
		Logger:   logger.Nop(),
		Import:   cfg.Import,
	})
	require.NoError(t, err)

	handler := NewRouter(RouterParams{
		Config:      cfg,
		Logger:      logger.Nop(),
		DB:          client,
		Gatherer:    reg,
		Catalog:     svcs.Catalog,
		Stock:       svcs.Stock,
		Projects:    svcs.Projects,
		Allocations: svcs.Allocations,
		Imports:     svcs.Imports,
		Ledger:      svcs.Ledger,
	})
	return harness{t: t, handler: handler}
}

func (h harness) do(method, path string, body any) (int, envelope) {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Operator", "kim")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (h harness) mustStatus(want int, method, path string, body any) envelope {
	h.t.Helper()
	code, env := h.do(method, path, body)
	require.Equal(h.t, want, code, "%s %s: %s", method, path, string(env.Data))
	return env
}

func (h harness) seed() {
	h.mustStatus(http.StatusCreated, http.MethodPut, "/api/v1/parts/NE555", map[string]any{"name": "timer"})
	h.mustStatus(http.StatusCreated, http.MethodPost, "/api/v1/locations", map[string]any{"code": "A-01"})
	h.mustStatus(http.StatusCreated, http.MethodPost, "/api/v1/locations", map[string]any{"code": "A-02"})
	h.mustStatus(http.StatusCreated, http.MethodPut, "/api/v1/projects/PRJ-1", map[string]any{"name": "Pedal"})
	h.mustStatus(http.StatusCreated, http.MethodPost, "/api/v1/stock/in", map[string]any{
		"mpn": "NE555", "location": "A-01", "qty": 50, "unit_cost": "0.12",
	})
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	h.mustStatus(http.StatusOK, http.MethodGet, "/health/live", nil)
	env := h.mustStatus(http.StatusOK, http.MethodGet, "/health/ready", nil)
	require.Contains(t, string(env.Data), `"database":"ok"`)

	h.mustStatus(http.StatusCreated, http.MethodPut, "/api/v1/parts/NE555", map[string]any{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "upsert_part")
}

func TestReserveReleaseConsumeOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.seed()

	h.mustStatus(http.StatusOK, http.MethodPut, "/api/v1/projects/PRJ-1/bom", map[string]any{
		"lines": []map[string]any{{"mpn": "NE555", "req_qty": 60}},
	})

	env := h.mustStatus(http.StatusCreated, http.MethodPost, "/api/v1/allocations", map[string]any{
		"project_code": "PRJ-1", "mpn": "NE555", "location": "A-01", "qty": 40,
	})
	var alloc struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &alloc))
	require.Equal(t, "reserved", alloc.Status)

	code, env := h.do(http.MethodPost, "/api/v1/allocations", map[string]any{
		"project_code": "PRJ-1", "mpn": "NE555", "qty": 11,
	})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, string(pkgerrors.CodeOverReservation), env.Error.Code)

	code, env = h.do(http.MethodPost, "/api/v1/stock/out", map[string]any{
		"mpn": "NE555", "location": "A-01", "qty": 20,
	})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, string(pkgerrors.CodeOverReservation), env.Error.Code)

	env = h.mustStatus(http.StatusOK, http.MethodGet, "/api/v1/projects/PRJ-1/material-status", nil)
	var status []struct {
		AvailableStock       int `json:"available_stock"`
		ReservedForProject   int `json:"reserved_for_project"`
		ShortageIfReserveNow int `json:"shortage_if_reserve_now"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	require.Len(t, status, 1)
	require.Equal(t, 10, status[0].AvailableStock)
	require.Equal(t, 40, status[0].ReservedForProject)
	require.Equal(t, 10, status[0].ShortageIfReserveNow)

	h.mustStatus(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/v1/allocations/%d/consume", alloc.ID), map[string]any{"note": "built"})
	code, env = h.do(http.MethodPost, fmt.Sprintf("/api/v1/allocations/%d/consume", alloc.ID), nil)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Equal(t, string(pkgerrors.CodeStateConflict), env.Error.Code)

	env = h.mustStatus(http.StatusOK, http.MethodGet, "/api/v1/parts/NE555/availability", nil)
	require.Contains(t, string(env.Data), `"total_stock":10`)

	env = h.mustStatus(http.StatusOK, http.MethodGet, "/api/v1/projects/PRJ-1/allocations", nil)
	require.Contains(t, string(env.Data), `"consumed"`)

	env = h.mustStatus(http.StatusOK, http.MethodGet, "/api/v1/ledger?doc_type=CONSUME", nil)
	require.Contains(t, string(env.Data), `"operator":"kim"`)
}

func TestValidationAndNotFound(t *testing.T) {
	h := newHarness(t)
	h.seed()

	code, env := h.do(http.MethodPost, "/api/v1/stock/in", map[string]any{"mpn": "NE555", "location": "A-01", "qty": 0})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)
	require.Contains(t, string(env.Error.Details), "qty")

	code, env = h.do(http.MethodPost, "/api/v1/stock/move", map[string]any{
		"mpn": "NE555", "from_location": "A-01", "to_location": "A-01", "qty": 1,
	})
	require.Equal(t, http.StatusBadRequest, code)

	code, env = h.do(http.MethodGet, "/api/v1/parts/NOPE", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, string(pkgerrors.CodeNotFound), env.Error.Code)

	code, _ = h.do(http.MethodGet, "/api/v1/allocations/abc", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, env = h.do(http.MethodPost, "/api/v1/stock/out", map[string]any{"mpn": "NE555", "location": "A-02", "qty": 1})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, string(pkgerrors.CodeInsufficientStock), env.Error.Code)
}

func TestImportModesOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.seed()

	rows := []map[string]any{
		{"locator": "In!2", "type": "IN", "mpn": "NE555", "location": "A-02", "qty": 5},
		{"locator": "In!3", "type": "IN", "mpn": "MISSING", "location": "A-02", "qty": 5},
		{"locator": "In!4", "type": "OUT", "mpn": "NE555", "location": "A-02", "qty": 2},
	}

	code, env := h.do(http.MethodPost, "/api/v1/imports", map[string]any{"mode": "strict", "rows": rows})
	require.Equal(t, http.StatusNotFound, code)
	require.Contains(t, env.Error.Message, "row 2")
	require.Contains(t, string(env.Data), `"committed":false`)

	code, env = h.do(http.MethodPost, "/api/v1/imports", map[string]any{"mode": "lenient", "rows": rows})
	require.Equal(t, http.StatusMultiStatus, code)
	require.Equal(t, string(pkgerrors.CodePartialImport), env.Error.Code)
	var report struct {
		Succeeded int  `json:"succeeded"`
		Committed bool `json:"committed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Equal(t, 2, report.Succeeded)
	require.True(t, report.Committed)

	env = h.mustStatus(http.StatusOK, http.MethodGet, "/api/v1/ledger/txns?location=A-02", nil)
	require.Contains(t, string(env.Data), `"qty_delta":-2`)

	code, _ = h.do(http.MethodPost, "/api/v1/imports", map[string]any{"mode": "partial", "rows": rows})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestProjectsResourcesAndPaging(t *testing.T) {
	h := newHarness(t)
	h.seed()
	h.mustStatus(http.StatusCreated, http.MethodPut, "/api/v1/projects/PRJ-2", map[string]any{"name": "Synth"})
	h.mustStatus(http.StatusOK, http.MethodPut, "/api/v1/projects/PRJ-2", map[string]any{"owner": "lee"})

	env := h.mustStatus(http.StatusOK, http.MethodGet, "/api/v1/projects?limit=1", nil)
	var page struct {
		Items []struct {
			Code string `json:"code"`
		} `json:"items"`
		NextCursor string `json:"next_cursor"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	require.Equal(t, "PRJ-1", page.Items[0].Code)
	require.NotEmpty(t, page.NextCursor)

	env = h.mustStatus(http.StatusOK, http.MethodGet, "/api/v1/projects?limit=1&cursor="+page.NextCursor, nil)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Equal(t, "PRJ-2", page.Items[0].Code)

	env = h.mustStatus(http.StatusOK, http.MethodPost, "/api/v1/projects/PRJ-1/resources", map[string]any{
		"type": "repo", "name": "firmware", "uri": "https://example.com/fw.git",
	})
	var res struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))

	env = h.mustStatus(http.StatusOK, http.MethodGet, "/api/v1/projects/PRJ-1/resources/check", nil)
	require.Contains(t, string(env.Data), `"ok":true`)

	h.mustStatus(http.StatusOK, http.MethodDelete, fmt.Sprintf("/api/v1/resources/%d", res.ID), nil)
	code, _ := h.do(http.MethodDelete, fmt.Sprintf("/api/v1/resources/%d", res.ID), nil)
	require.Equal(t, http.StatusNotFound, code)

	env = h.mustStatus(http.StatusOK, http.MethodGet, "/api/v1/projects/overview", nil)
	require.Contains(t, string(env.Data), "PRJ-2")
}
