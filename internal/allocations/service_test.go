package allocations

import (
	"context"
	"sync"
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	conn     *gorm.DB
	svc      *Service
	stock    *stock.Service
	projects *projects.Service
	ledger   ledger.Service
	part     *models.Part
}

func newFixture(t *testing.T, strictRelease bool) fixture {
	t.Helper()
	conn := dbtest.Open(t).DB()
	runner := db.NewRunner(conn, db.NoRetry(), nil)

	cat, err := catalog.NewService(catalog.ServiceParams{Runner: runner})
	require.NoError(t, err)
	proj, err := projects.NewService(projects.ServiceParams{Runner: runner, Catalog: cat})
	require.NoError(t, err)
	led, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	stk, err := stock.NewService(stock.ServiceParams{
		Runner:   runner,
		Catalog:  cat,
		Projects: proj,
		Ledger:   led,
		Outbox:   publisher,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Runner:        runner,
		Catalog:       cat,
		Projects:      proj,
		Stock:         stk,
		Ledger:        led,
		Outbox:        publisher,
		StrictRelease: strictRelease,
	})
	require.NoError(t, err)
	proj.SetAllocationLister(svc)

	ctx := context.Background()
	_, err = cat.UpsertPart(ctx, "NE555", catalog.PartFields{})
	require.NoError(t, err)
	part, err := cat.GetPart(ctx, "NE555")
	require.NoError(t, err)
	for _, code := range []string{"L-01", "L-02"} {
		_, err := cat.CreateLocation(ctx, code, "")
		require.NoError(t, err)
	}
	for _, code := range []string{"PRJ-1", "PRJ-2"} {
		name := "board " + code
		_, err := proj.UpsertProject(ctx, code, projects.ProjectFields{Name: &name})
		require.NoError(t, err)
	}
	return fixture{conn: conn, svc: svc, stock: stk, projects: proj, ledger: led, part: part}
}

func (f fixture) stockIn(t *testing.T, location string, qty int) {
	t.Helper()
	_, err := f.stock.In(context.Background(), stock.InInput{MPN: "NE555", Location: location, Qty: qty})
	require.NoError(t, err)
}

func (f fixture) qtyAt(t *testing.T, location string) int {
	t.Helper()
	line, err := f.stock.FindLine(context.Background(), f.part.ID, location)
	require.NoError(t, err)
	return line.Qty
}

func (f fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := f.conn.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestReserveRespectsLocationStock(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.stockIn(t, "L-01", 50)

	_, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Location: "L-01", Qty: 60})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOverReservation))
	require.Zero(t, f.count(t, &models.Allocation{}, ""))

	alloc, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Location: "L-01", Qty: 50, Note: "first batch"})
	require.NoError(t, err)
	require.Equal(t, enums.AllocationReserved, alloc.Status)
	require.Equal(t, "L-01", *alloc.Location)

	_, err = f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-2", MPN: "NE555", Location: "L-01", Qty: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOverReservation))

	require.Equal(t, int64(1), f.count(t, &models.LedgerDocument{}, "doc_type = ? AND allocation_id = ?", enums.LedgerDocReserve, alloc.ID))
	require.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventAllocationReserved))
}

func TestReserveGlobalAndLocatedClaimsShareStock(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.stockIn(t, "L-01", 10)
	f.stockIn(t, "L-02", 10)

	_, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Qty: 15})
	require.NoError(t, err)

	// L-02 still holds 10 unclaimed by location, but only 5 remain globally
	_, err = f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-2", MPN: "NE555", Location: "L-02", Qty: 6})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOverReservation))

	_, err = f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-2", MPN: "NE555", Location: "L-02", Qty: 5})
	require.NoError(t, err)
}

func TestReserveValidation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.stockIn(t, "L-01", 5)

	_, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Qty: 0})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.svc.Reserve(ctx, ReserveInput{ProjectCode: "NOPE", MPN: "NE555", Qty: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Location: "Z-9", Qty: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "UNKNOWN", Qty: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestReleaseRestoresAvailability(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.stockIn(t, "L-01", 20)

	before, err := f.svc.Availability(ctx, "NE555", "L-01")
	require.NoError(t, err)

	alloc, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Location: "L-01", Qty: 8, Note: "proto"})
	require.NoError(t, err)

	mid, err := f.svc.Availability(ctx, "NE555", "L-01")
	require.NoError(t, err)
	require.Equal(t, before.Coverage.AvailableAt-8, mid.Coverage.AvailableAt)

	released, err := f.svc.Release(ctx, alloc.ID, "", "kim")
	require.NoError(t, err)
	require.Equal(t, enums.AllocationReleased, released.Status)
	require.Equal(t, "proto | released", released.Note)
	require.Equal(t, 20, f.qtyAt(t, "L-01"))

	after, err := f.svc.Availability(ctx, "NE555", "L-01")
	require.NoError(t, err)
	require.Equal(t, before.Coverage, after.Coverage)

	docs, err := f.ledger.History(ctx, alloc.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	var release models.LedgerDocument
	require.NoError(t, f.conn.Preload("Lines").Where("doc_type = ?", enums.LedgerDocRelease).First(&release).Error)
	require.Equal(t, "L-01", *release.FromLocation)
	require.Equal(t, 8, release.Lines[0].Qty)
}

func TestReleaseAnyStatusByDefault(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.stockIn(t, "L-01", 5)
	alloc, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Location: "L-01", Qty: 2})
	require.NoError(t, err)
	_, err = f.svc.Consume(ctx, alloc.ID, "", "")
	require.NoError(t, err)

	released, err := f.svc.Release(ctx, alloc.ID, "undo", "")
	require.NoError(t, err)
	require.Equal(t, enums.AllocationReleased, released.Status)
	require.Equal(t, 3, f.qtyAt(t, "L-01"))

	_, err = f.svc.Release(ctx, 9999, "", "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestStrictReleaseOnlyFromReserved(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.stockIn(t, "L-01", 5)
	alloc, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Location: "L-01", Qty: 2})
	require.NoError(t, err)

	_, err = f.svc.Release(ctx, alloc.ID, "", "")
	require.NoError(t, err)
	_, err = f.svc.Release(ctx, alloc.ID, "", "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, int64(1), f.count(t, &models.LedgerDocument{}, "doc_type = ?", enums.LedgerDocRelease))
}

func TestConsumeDecrementsStock(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.stockIn(t, "L-01", 10)
	alloc, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Location: "L-01", Qty: 4})
	require.NoError(t, err)

	consumed, err := f.svc.Consume(ctx, alloc.ID, "", "kim")
	require.NoError(t, err)
	require.Equal(t, enums.AllocationConsumed, consumed.Status)
	require.Equal(t, "consumed", consumed.Note)
	require.Equal(t, 6, f.qtyAt(t, "L-01"))

	require.Equal(t, int64(1), f.count(t, &models.LedgerDocument{}, "doc_type = ? AND allocation_id = ?", enums.LedgerDocConsume, alloc.ID))
	require.Equal(t, int64(1), f.count(t, &models.InventoryTxnLine{}, "qty_delta = ?", -4))
	require.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventAllocationConsumed))

	_, err = f.svc.Consume(ctx, alloc.ID, "", "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 6, f.qtyAt(t, "L-01"))

	rows, err := f.projects.MaterialStatus(ctx, "PRJ-1")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestConsumeRequiresLocation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.stockIn(t, "L-01", 10)
	alloc, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Qty: 4})
	require.NoError(t, err)

	_, err = f.svc.Consume(ctx, alloc.ID, "", "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	got, err := f.svc.Get(ctx, alloc.ID)
	require.NoError(t, err)
	require.Equal(t, enums.AllocationReserved, got.Status)
}

func TestConsumeInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.stockIn(t, "L-01", 10)
	alloc, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Location: "L-01", Qty: 4})
	require.NoError(t, err)

	// drive the line below the claim behind the engine's back
	require.NoError(t, f.conn.Model(&models.StockLine{}).Where("location = ?", "L-01").Update("qty", 1).Error)

	_, err = f.svc.Consume(ctx, alloc.ID, "", "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	got, err := f.svc.Get(ctx, alloc.ID)
	require.NoError(t, err)
	require.Equal(t, enums.AllocationReserved, got.Status)
	require.Zero(t, f.count(t, &models.LedgerDocument{}, "doc_type = ?", enums.LedgerDocConsume))
}

func TestListByProjectNewestFirst(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.stockIn(t, "L-01", 10)
	first, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Location: "L-01", Qty: 1})
	require.NoError(t, err)
	second, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Location: "L-01", Qty: 2})
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-2", MPN: "NE555", Qty: 3})
	require.NoError(t, err)

	rows, err := f.projects.AllocationDetail(ctx, "PRJ-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, second.ID, rows[0].AllocationID)
	require.Equal(t, first.ID, rows[1].AllocationID)
	require.Equal(t, 10, rows[0].StockAtLocation)
	require.Equal(t, "NE555", rows[0].MPN)
}

func TestConcurrentReservationsNeverOversubscribe(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.stockIn(t, "L-01", 50)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
		other     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reserve(ctx, ReserveInput{ProjectCode: "PRJ-1", MPN: "NE555", Location: "L-01", Qty: 10})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeOverReservation):
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, other)
	require.Equal(t, 5, succeeded)
	require.Equal(t, 5, rejected)

	var reserved int
	require.NoError(t, f.conn.Model(&models.Allocation{}).Select("COALESCE(SUM(qty), 0)").Where("status = ?", enums.AllocationReserved).Scan(&reserved).Error)
	require.Equal(t, 50, reserved)
}
