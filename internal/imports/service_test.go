package imports

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/angelmondragon/labstock-backend/internal/catalog"
	"github.com/angelmondragon/labstock-backend/internal/ledger"
	"github.com/angelmondragon/labstock-backend/internal/projects"
	"github.com/angelmondragon/labstock-backend/internal/stock"
	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/angelmondragon/labstock-backend/pkg/db/dbtest"
	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/outbox"
	"github.com/angelmondragon/labstock-backend/pkg/outbox/payloads"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	conn  *gorm.DB
	svc   *Service
	stock *stock.Service
}

func newFixture(t *testing.T, maxRows int) fixture {
	t.Helper()
	conn := dbtest.Open(t).DB()
	runner := db.NewRunner(conn, db.NoRetry(), nil)

	cat, err := catalog.NewService(catalog.ServiceParams{Runner: runner})
	require.NoError(t, err)
	proj, err := projects.NewService(projects.ServiceParams{Runner: runner, Catalog: cat})
	require.NoError(t, err)
	led, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	pub := outbox.NewService(outbox.NewRepository(conn), nil)
	stk, err := stock.NewService(stock.ServiceParams{
		Runner:   runner,
		Catalog:  cat,
		Projects: proj,
		Ledger:   led,
		Outbox:   pub,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Runner: runner, Stock: stk, Outbox: pub, MaxRows: maxRows})
	require.NoError(t, err)

	ctx := context.Background()
	for _, mpn := range []string{"NE555", "LM358"} {
		_, err := cat.UpsertPart(ctx, mpn, catalog.PartFields{})
		require.NoError(t, err)
	}
	_, err = cat.CreateLocation(ctx, "A-01", "")
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc, stock: stk}
}

func (f fixture) qty(t *testing.T, mpn string) int {
	t.Helper()
	levels, err := f.stock.Levels(context.Background(), mpn)
	require.NoError(t, err)
	total := 0
	for _, l := range levels {
		total += l.Qty
	}
	return total
}

func (f fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func (f fixture) importEvents(t *testing.T) []payloads.ImportCompletedEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", enums.EventImportBatchFinished).Find(&rows).Error)
	out := make([]payloads.ImportCompletedEvent, 0, len(rows))
	for _, row := range rows {
		var env outbox.PayloadEnvelope
		require.NoError(t, json.Unmarshal([]byte(row.Payload), &env))
		var evt payloads.ImportCompletedEvent
		require.NoError(t, json.Unmarshal(env.Data, &evt))
		out = append(out, evt)
	}
	return out
}

func batchWithBadThirdRow() []Row {
	return []Row{
		{Locator: "StockIn!2", Type: "IN", MPN: "NE555", Location: "A-01", Qty: 10},
		{Locator: "StockIn!3", Type: "IN", MPN: "LM358", Location: "A-01", Qty: 4},
		{Locator: "StockIn!4", Type: "IN", MPN: "NOPE-1", Location: "A-01", Qty: 2},
		{Locator: "StockIn!5", Type: "OUT", MPN: "NE555", Location: "A-01", Qty: 3},
		{Locator: "StockIn!6", Type: "ADJUST", MPN: "LM358", Location: "A-01", Qty: 1},
	}
}

func TestStrictImportDiscardsBatchOnFirstFailure(t *testing.T) {
	f := newFixture(t, 0)

	report, err := f.svc.Import(context.Background(), batchWithBadThirdRow(), enums.ImportStrict)
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Contains(t, err.Error(), "row 3")
	require.Contains(t, err.Error(), "StockIn!4")

	require.False(t, report.Committed)
	require.Equal(t, 0, report.Succeeded)
	require.Len(t, report.Failures, 1)
	require.Equal(t, 3, report.Failures[0].Index)
	require.Equal(t, "NOPE-1", report.Failures[0].Values.MPN)

	require.Equal(t, 0, f.qty(t, "NE555"))
	require.Equal(t, 0, f.qty(t, "LM358"))
	require.Zero(t, f.count(t, &models.LedgerDocument{}))
	require.Zero(t, f.count(t, &models.InventoryTxn{}))

	events := f.importEvents(t)
	require.Len(t, events, 1)
	require.False(t, events[0].Committed)
	require.Equal(t, 1, events[0].Failed)

	var byBatch []models.OutboxEvent
	require.NoError(t, f.conn.Where("aggregate_id = ?", report.BatchID.String()).Find(&byBatch).Error)
	require.Len(t, byBatch, 1)
	require.Equal(t, enums.AggregateImportBatch, byBatch[0].AggregateType)
}

func TestLenientImportCommitsGoodRows(t *testing.T) {
	f := newFixture(t, 0)

	report, err := f.svc.Import(context.Background(), batchWithBadThirdRow(), enums.ImportLenient)
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePartialImport))

	require.True(t, report.Committed)
	require.Equal(t, 4, report.Succeeded)
	require.Len(t, report.Failures, 1)
	require.Equal(t, 3, report.Failures[0].Index)
	require.Equal(t, pkgerrors.CodeNotFound, report.Failures[0].Code)

	require.Equal(t, 7, f.qty(t, "NE555"))
	require.Equal(t, 5, f.qty(t, "LM358"))
	require.Equal(t, int64(4), f.count(t, &models.LedgerDocument{}))

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	failures, ok := typed.Details().([]Failure)
	require.True(t, ok)
	require.Len(t, failures, 1)

	events := f.importEvents(t)
	require.Len(t, events, 1)
	require.True(t, events[0].Committed)
	require.Equal(t, 4, events[0].Succeeded)
}

func TestLenientRowFailureRollsBackOnlyThatRow(t *testing.T) {
	f := newFixture(t, 0)

	rows := []Row{
		{Type: "IN", MPN: "NE555", Location: "A-01", Qty: 5},
		{Type: "OUT", MPN: "NE555", Location: "A-01", Qty: 9},
		{Type: "OUT", MPN: "NE555", Location: "A-01", Qty: 2},
	}
	report, err := f.svc.Import(context.Background(), rows, enums.ImportLenient)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePartialImport))
	require.Equal(t, 2, report.Succeeded)
	require.Equal(t, pkgerrors.CodeInsufficientStock, report.Failures[0].Code)
	require.Equal(t, 3, f.qty(t, "NE555"))
}

func TestImportSkipsBlankRows(t *testing.T) {
	f := newFixture(t, 0)

	rows := []Row{
		{Type: "IN", MPN: "NE555", Location: "A-01", Qty: 5},
		{Locator: "StockIn!3"},
		{Type: " ", MPN: ""},
		{Type: "in", MPN: "NE555", Location: "A-01", Qty: 1},
	}
	report, err := f.svc.Import(context.Background(), rows, enums.ImportStrict)
	require.NoError(t, err)
	require.True(t, report.Committed)
	require.Equal(t, 4, report.Total)
	require.Equal(t, 2, report.Skipped)
	require.Equal(t, 2, report.Succeeded)
	require.Empty(t, report.Failures)
	require.Equal(t, 6, f.qty(t, "NE555"))
}

func TestImportRowValidation(t *testing.T) {
	f := newFixture(t, 0)

	rows := []Row{
		{Type: "MOVE", MPN: "NE555", Location: "A-01", Qty: 5},
		{Type: "IN", MPN: "NE555", Location: "A-01", Qty: 0},
		{Type: "ADJUST", MPN: "NE555", Location: "A-01", Qty: 2},
	}
	report, err := f.svc.Import(context.Background(), rows, enums.ImportLenient)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePartialImport))
	require.Len(t, report.Failures, 2)
	for _, failure := range report.Failures {
		require.Equal(t, pkgerrors.CodeValidation, failure.Code)
	}
	require.Equal(t, 2, f.qty(t, "NE555"))

	var doc models.LedgerDocument
	require.NoError(t, f.conn.Where("doc_type = ?", enums.LedgerDocAdjust).First(&doc).Error)
	require.Equal(t, defaultAdjustNote, doc.Note)
}

func TestImportRejectsBadModeAndOversizedBatch(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.svc.Import(ctx, nil, enums.ImportMode("partial"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	rows := make([]Row, 3)
	_, err = f.svc.Import(ctx, rows, enums.ImportLenient)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Empty(t, f.importEvents(t))
}
